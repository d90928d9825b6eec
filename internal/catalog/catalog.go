// Package catalog provides the puzzle content catalog: persistence
// interfaces and the SQLite implementation.
package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrPuzzleNotFound means the requested puzzle id is not in the catalog.
var ErrPuzzleNotFound = errors.New("puzzle not found")

// Puzzle is one catalog entry: the cryptic surface story, the hidden truth,
// and the facts/keywords revealed progressively during play.
type Puzzle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SurfaceText string    `json:"surface_text"`
	TruthText   string    `json:"truth_text"`
	Facts       []string  `json:"facts"`
	Keywords    []string  `json:"keywords"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository defines the interface for persisting and picking puzzles.
type Repository interface {
	// Get retrieves a puzzle by id.
	Get(ctx context.Context, id string) (*Puzzle, error)

	// Random picks one puzzle uniformly at random.
	Random(ctx context.Context) (*Puzzle, error)

	// List returns every puzzle, newest first.
	List(ctx context.Context) ([]*Puzzle, error)

	// Put creates or replaces a puzzle.
	Put(ctx context.Context, p *Puzzle) error

	// Count returns the number of puzzles in the catalog.
	Count(ctx context.Context) (int64, error)

	// Ping verifies catalog connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
