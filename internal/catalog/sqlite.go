package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCatalog implements Repository using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed puzzle catalog.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cat := &SQLiteCatalog{db: db}
	if err := cat.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return cat, nil
}

func (s *SQLiteCatalog) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS puzzles (
		puzzle_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		surface_text TEXT NOT NULL,
		truth_text TEXT NOT NULL,
		facts_json TEXT NOT NULL,
		keywords_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_puzzles_created ON puzzles(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteCatalog) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

// Get retrieves a puzzle by id.
func (s *SQLiteCatalog) Get(ctx context.Context, id string) (*Puzzle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT puzzle_id, title, surface_text, truth_text, facts_json, keywords_json, created_at
		FROM puzzles WHERE puzzle_id = ?`, id)
	return scanPuzzle(row)
}

// Random picks one puzzle uniformly at random.
func (s *SQLiteCatalog) Random(ctx context.Context) (*Puzzle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT puzzle_id, title, surface_text, truth_text, facts_json, keywords_json, created_at
		FROM puzzles ORDER BY RANDOM() LIMIT 1`)
	return scanPuzzle(row)
}

// List returns every puzzle, newest first.
func (s *SQLiteCatalog) List(ctx context.Context) ([]*Puzzle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT puzzle_id, title, surface_text, truth_text, facts_json, keywords_json, created_at
		FROM puzzles ORDER BY created_at DESC, puzzle_id`)
	if err != nil {
		return nil, fmt.Errorf("query puzzles: %w", err)
	}
	defer rows.Close()

	var out []*Puzzle
	for rows.Next() {
		p, err := scanPuzzle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzles: %w", err)
	}
	return out, nil
}

// Put creates or replaces a puzzle.
func (s *SQLiteCatalog) Put(ctx context.Context, p *Puzzle) error {
	facts, err := json.Marshal(p.Facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	keywords, err := json.Marshal(p.Keywords)
	if err != nil {
		return fmt.Errorf("marshal keywords: %w", err)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO puzzles (puzzle_id, title, surface_text, truth_text, facts_json, keywords_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(puzzle_id) DO UPDATE SET
			title = excluded.title,
			surface_text = excluded.surface_text,
			truth_text = excluded.truth_text,
			facts_json = excluded.facts_json,
			keywords_json = excluded.keywords_json`,
		p.ID, p.Title, p.SurfaceText, p.TruthText, string(facts), string(keywords), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert puzzle %s: %w", p.ID, err)
	}
	return nil
}

// Count returns the number of puzzles in the catalog.
func (s *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM puzzles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count puzzles: %w", err)
	}
	return n, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPuzzle(row scanner) (*Puzzle, error) {
	var p Puzzle
	var factsJSON, keywordsJSON string
	var createdAt int64

	err := row.Scan(&p.ID, &p.Title, &p.SurfaceText, &p.TruthText, &factsJSON, &keywordsJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrPuzzleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan puzzle row: %w", err)
	}

	if err := json.Unmarshal([]byte(factsJSON), &p.Facts); err != nil {
		return nil, fmt.Errorf("unmarshal facts for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(keywordsJSON), &p.Keywords); err != nil {
		return nil, fmt.Errorf("unmarshal keywords for %s: %w", p.ID, err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}
