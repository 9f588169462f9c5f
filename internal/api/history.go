package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/chatbridge/internal/model"
	"github.com/seantiz/chatbridge/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// listCompletionsResponse wraps the paginated history response.
type listCompletionsResponse struct {
	Completions []*model.Completion `json:"completions"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

func (s *Server) handleListCompletions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	completions, total, err := s.store.ListCompletions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list completions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}

	if completions == nil {
		completions = []*model.Completion{}
	}

	s.writeJSON(w, http.StatusOK, listCompletionsResponse{
		Completions: completions,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	})
}

func (s *Server) handleGetCompletion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.store.GetCompletion(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "completion not found")
		return
	}
	if err != nil {
		s.logger.Error("get completion", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get completion")
		return
	}

	s.writeJSON(w, http.StatusOK, c)
}

// completionStatsResponse is the JSON response for GET /v1/completions/stats.
type completionStatsResponse struct {
	Total         int            `json:"total"`
	ByOutcome     map[string]int `json:"by_outcome"`
	ByModel       map[string]int `json:"by_model"`
	TotalTokens   int            `json:"total_tokens"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

func (s *Server) handleCompletionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetCompletionStats(r.Context())
	if err != nil {
		s.logger.Error("get completion stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, completionStatsResponse{
		Total:         stats.Total,
		ByOutcome:     stats.CountByOutcome,
		ByModel:       stats.CountByModel,
		TotalTokens:   stats.TotalTokens,
		AvgDurationMS: stats.AvgDurationMS,
	})
}
