package store

import (
	"context"
	"errors"

	"github.com/seantiz/chatbridge/internal/model"
)

// ErrNotFound is returned when a completion record is not found.
var ErrNotFound = errors.New("completion not found")

// CompletionStats holds aggregate statistics over recorded completions.
type CompletionStats struct {
	Total          int            `json:"total"`
	CountByOutcome map[string]int `json:"count_by_outcome"`
	CountByModel   map[string]int `json:"count_by_model"`
	TotalTokens    int            `json:"total_tokens"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for completion history.
type Store interface {
	RecordCompletion(ctx context.Context, c *model.Completion) error
	GetCompletion(ctx context.Context, id string) (*model.Completion, error)
	ListCompletions(ctx context.Context, limit, offset int) ([]*model.Completion, int, error)
	GetCompletionStats(ctx context.Context) (*CompletionStats, error)
	Close() error
}
