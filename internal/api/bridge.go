package api

import (
	"encoding/json"
	"net/http"

	"github.com/seantiz/chatbridge/internal/model"
)

// bridgeEventRequest is the JSON body posted by the injected worker script:
// {"type": "...", "data": {...}}.
type bridgeEventRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// bridgeEventData is the payload common to meta/delta/done/usage events.
type bridgeEventData struct {
	Rid   string        `json:"rid"`
	Delta string        `json:"delta"`
	Usage *usagePayload `json:"usage"`
}

// usagePayload tolerates both OpenAI-style and input/output token field
// names, since the worker relays whatever the upstream page reports.
type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
}

func (u *usagePayload) toUsage() model.Usage {
	if u == nil {
		return model.Usage{}
	}
	usage := model.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if usage.PromptTokens == 0 {
		usage.PromptTokens = u.InputTokens
	}
	if usage.CompletionTokens == 0 {
		usage.CompletionTokens = u.OutputTokens
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage
}

// handleBridgeEvent receives lifecycle events from the worker. The worker's
// delivery loop is fire-and-forget, so this always acknowledges success;
// unusable events are logged and dropped.
func (s *Server) handleBridgeEvent(w http.ResponseWriter, r *http.Request) {
	var req bridgeEventRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var data bridgeEventData
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			s.logger.Warn("undecodable event data", "type", req.Type, "error", err)
		}
	}

	switch req.Type {
	case "injected":
		s.engine.SetConnected(true)
	case "meta":
		s.engine.HandleMeta(data.Rid)
	case "delta":
		s.engine.HandleDelta(data.Rid, data.Delta)
	case "done":
		s.engine.HandleDone(data.Rid)
	case "usage":
		s.engine.HandleUsage(data.Rid, data.Usage.toUsage())
	default:
		s.logger.Debug("ignoring worker event", "type", req.Type)
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// pollTaskResponse is the body of GET /bridge/poll: either a task or the
// no_task sentinel after the bounded wait.
type pollTaskResponse struct {
	Type      string          `json:"type"`
	Rid       string          `json:"rid,omitempty"`
	Messages  []model.Message `json:"messages,omitempty"`
	Model     string          `json:"model,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

func (s *Server) handlePollTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.engine.PopTask(r.Context(), s.pollWait)
	if !ok {
		s.writeJSON(w, http.StatusOK, pollTaskResponse{Type: "no_task"})
		return
	}

	s.logger.Info("task handed to worker", "request_id", task.ID)
	s.writeJSON(w, http.StatusOK, pollTaskResponse{
		Type:      "send_message",
		Rid:       task.ID,
		Messages:  task.Messages,
		Model:     task.Model,
		Timestamp: task.EnqueuedAt.UnixMilli(),
	})
}

// handleBridgeSend acknowledges the worker's notification that it is about
// to submit a task upstream. Kept for protocol compatibility; the rid in the
// body is echoed back.
func (s *Server) handleBridgeSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rid string `json:"rid"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "rid": req.Rid})
}
