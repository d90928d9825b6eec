package game

import (
	"context"
	"log/slog"
	"time"
)

// Reaper defaults. The sweep interval is deliberately a small fraction of
// the TTL so eviction lag stays bounded.
const (
	DefaultSessionTTL    = 4 * time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// EvictionCallback is invoked with the ids evicted by a sweep, so the
// transport layer can notify observers. The reaper itself has no knowledge
// of transport.
type EvictionCallback func(sessionIDs []string)

// StartReaper runs a background goroutine that periodically evicts idle
// sessions from the store until ctx is canceled. The returned channel closes
// when the reaper has fully stopped, for tests and orderly shutdown.
func StartReaper(ctx context.Context, store *Store, ttl, interval time.Duration, onEvict EvictionCallback) <-chan struct{} {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case now := <-ticker.C:
				sweep(store, now, ttl, onEvict)
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// sweep runs one eviction pass. It never fails: a sweep that finds nothing
// eligible simply returns.
func sweep(store *Store, now time.Time, ttl time.Duration, onEvict EvictionCallback) {
	evicted := store.CleanupIdleSessions(now, ttl)
	if len(evicted) == 0 {
		return
	}

	slog.Info("Session reaper evicted idle sessions", "count", len(evicted), "session_ids", evicted)
	if onEvict != nil {
		onEvict(evicted)
	}
}
