// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ztpublic/turtlesoup/internal/match"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	SessionTTL    time.Duration
	SweepInterval time.Duration

	ChatHistoryLimit     int
	QuestionHistoryLimit int
	RevealThreshold      float64

	Gemini GeminiConfig
}

// GeminiConfig controls the optional LLM collaborator. An empty APIKey
// disables judging and keyword reveal; everything else keeps working.
type GeminiConfig struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	RequestTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		FrontendURL:          getEnv("FRONTEND_URL", ""),
		DBPath:               getEnv("DB_PATH", "./data/puzzles.db"),
		SessionTTL:           getEnvDuration("SESSION_TTL", 4*time.Hour),
		SweepInterval:        getEnvDuration("REAPER_INTERVAL", 5*time.Minute),
		ChatHistoryLimit:     getEnvInt("CHAT_HISTORY_LIMIT", 200),
		QuestionHistoryLimit: getEnvInt("QUESTION_HISTORY_LIMIT", 100),
		RevealThreshold:      getEnvFloat("REVEAL_THRESHOLD", match.DefaultThreshold),
		Gemini: GeminiConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			ChatModel:      getEnv("GEMINI_CHAT_MODEL", "gemini-1.5-flash-latest"),
			EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			RequestTimeout: getEnvDuration("GEMINI_REQUEST_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("REAPER_INTERVAL must be > 0")
	}
	if c.ChatHistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be > 0")
	}
	if c.QuestionHistoryLimit <= 0 {
		return fmt.Errorf("QUESTION_HISTORY_LIMIT must be > 0")
	}
	if c.RevealThreshold <= 0 || c.RevealThreshold > 1 {
		return fmt.Errorf("REVEAL_THRESHOLD must be in (0, 1]")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AIEnabled reports whether the Gemini collaborator is configured.
func (c *Config) AIEnabled() bool {
	return c.Gemini.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
