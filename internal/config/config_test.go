package config

import (
	"testing"
	"time"

	"github.com/ztpublic/turtlesoup/internal/match"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SessionTTL != 4*time.Hour {
		t.Errorf("SessionTTL = %v, want 4h", cfg.SessionTTL)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.SweepInterval)
	}
	if cfg.ChatHistoryLimit != 200 || cfg.QuestionHistoryLimit != 100 {
		t.Errorf("history limits = %d/%d, want 200/100", cfg.ChatHistoryLimit, cfg.QuestionHistoryLimit)
	}
	if cfg.RevealThreshold != match.DefaultThreshold {
		t.Errorf("RevealThreshold = %v, want %v", cfg.RevealThreshold, match.DefaultThreshold)
	}
	if cfg.AIEnabled() {
		t.Error("AI enabled without an API key")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("REAPER_INTERVAL", "30s")
	t.Setenv("CHAT_HISTORY_LIMIT", "50")
	t.Setenv("REVEAL_THRESHOLD", "0.9")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Errorf("SessionTTL = %v, want 90m", cfg.SessionTTL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}
	if cfg.ChatHistoryLimit != 50 {
		t.Errorf("ChatHistoryLimit = %d, want 50", cfg.ChatHistoryLimit)
	}
	if cfg.RevealThreshold != 0.9 {
		t.Errorf("RevealThreshold = %v, want 0.9", cfg.RevealThreshold)
	}
	if !cfg.AIEnabled() {
		t.Error("AI disabled with an API key set")
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")
	t.Setenv("CHAT_HISTORY_LIMIT", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionTTL != 4*time.Hour {
		t.Errorf("SessionTTL = %v, want 4h fallback", cfg.SessionTTL)
	}
	if cfg.ChatHistoryLimit != 200 {
		t.Errorf("ChatHistoryLimit = %d, want 200 fallback", cfg.ChatHistoryLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"zero interval", func(c *Config) { c.SweepInterval = 0 }},
		{"zero chat limit", func(c *Config) { c.ChatHistoryLimit = 0 }},
		{"threshold above one", func(c *Config) { c.RevealThreshold = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
