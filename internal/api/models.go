package api

import (
	"net/http"

	"github.com/seantiz/chatbridge/internal/model"
)

// catalogueCreated is the creation timestamp OpenAI uses for legacy model
// entries; clients expect a stable value here.
const catalogueCreated = 1677610602

// modelCatalogue lists the models the upstream page can be driven with. The
// bridge echoes whatever model the caller names; this list is advisory.
var modelCatalogue = []model.ModelInfo{
	{ID: "claude-sonnet-4-20250514", Object: "model", Created: catalogueCreated, OwnedBy: "anthropic"},
	{ID: "claude-opus-4-1-20250805", Object: "model", Created: catalogueCreated, OwnedBy: "anthropic"},
	{ID: "claude-opus-4-20250514", Object: "model", Created: catalogueCreated, OwnedBy: "anthropic"},
	{ID: "gpt-5", Object: "model", Created: catalogueCreated, OwnedBy: "openai"},
	{ID: "gemini-2.5-pro", Object: "model", Created: catalogueCreated, OwnedBy: "google"},
	{ID: "deepseek-v3.1", Object: "model", Created: catalogueCreated, OwnedBy: "deepseek"},
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, model.ModelList{
		Object: "list",
		Data:   modelCatalogue,
	})
}
