package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seantiz/chatbridge/internal/model"

	_ "modernc.org/sqlite"
)

const createCompletionsTable = `
CREATE TABLE IF NOT EXISTS completions (
    id                TEXT PRIMARY KEY,
    model             TEXT NOT NULL,
    mode              TEXT NOT NULL,
    outcome           TEXT NOT NULL,
    finish_reason     TEXT,
    content_chars     INTEGER NOT NULL,
    prompt_tokens     INTEGER NOT NULL,
    completion_tokens INTEGER NOT NULL,
    total_tokens      INTEGER NOT NULL,
    created_at        DATETIME NOT NULL,
    finished_at       DATETIME NOT NULL,
    duration_ms       INTEGER NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createCompletionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create completions table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordCompletion inserts the terminal record of a request.
func (s *SQLiteStore) RecordCompletion(ctx context.Context, c *model.Completion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (
			id, model, mode, outcome, finish_reason, content_chars,
			prompt_tokens, completion_tokens, total_tokens,
			created_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Model, c.Mode, c.Outcome, c.FinishReason, c.ContentChars,
		c.PromptTokens, c.CompletionTokens, c.TotalTokens,
		c.CreatedAt, c.FinishedAt, c.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// GetCompletion retrieves a completion record by ID.
func (s *SQLiteStore) GetCompletion(ctx context.Context, id string) (*model.Completion, error) {
	c := &model.Completion{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, model, mode, outcome, finish_reason, content_chars,
			prompt_tokens, completion_tokens, total_tokens,
			created_at, finished_at, duration_ms
		FROM completions WHERE id = ?`, id,
	).Scan(
		&c.ID, &c.Model, &c.Mode, &c.Outcome, &c.FinishReason, &c.ContentChars,
		&c.PromptTokens, &c.CompletionTokens, &c.TotalTokens,
		&c.CreatedAt, &c.FinishedAt, &c.DurationMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// ListCompletions returns a paginated list of completions ordered by
// created_at DESC, along with the total record count.
func (s *SQLiteStore) ListCompletions(ctx context.Context, limit, offset int) ([]*model.Completion, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM completions").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count completions: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, model, mode, outcome, finish_reason, content_chars,
			prompt_tokens, completion_tokens, total_tokens,
			created_at, finished_at, duration_ms
		FROM completions ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []*model.Completion
	for rows.Next() {
		c := &model.Completion{}
		if err := rows.Scan(
			&c.ID, &c.Model, &c.Mode, &c.Outcome, &c.FinishReason, &c.ContentChars,
			&c.PromptTokens, &c.CompletionTokens, &c.TotalTokens,
			&c.CreatedAt, &c.FinishedAt, &c.DurationMS,
		); err != nil {
			return nil, 0, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate completions: %w", err)
	}

	return completions, total, nil
}

// GetCompletionStats aggregates counts, token totals, and average duration.
func (s *SQLiteStore) GetCompletionStats(ctx context.Context) (*CompletionStats, error) {
	stats := &CompletionStats{
		CountByOutcome: make(map[string]int),
		CountByModel:   make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(AVG(duration_ms), 0)
		FROM completions`,
	).Scan(&stats.Total, &stats.TotalTokens, &stats.AvgDurationMS)
	if err != nil {
		return nil, fmt.Errorf("aggregate completions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT outcome, COUNT(*) FROM completions GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("count by outcome: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		stats.CountByOutcome[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}

	modelRows, err := s.db.QueryContext(ctx,
		"SELECT model, COUNT(*) FROM completions GROUP BY model")
	if err != nil {
		return nil, fmt.Errorf("count by model: %w", err)
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var name string
		var n int
		if err := modelRows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan model count: %w", err)
		}
		stats.CountByModel[name] = n
	}
	if err := modelRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model counts: %w", err)
	}

	return stats, nil
}
