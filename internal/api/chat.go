package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/seantiz/chatbridge/internal/bridge"
	"github.com/seantiz/chatbridge/internal/model"
)

const maxBodySize = 1 << 20 // 1 MB

// apiError is the OpenAI-style error envelope.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

// writeOpenAIError writes an error in the envelope OpenAI clients expect.
func (s *Server) writeOpenAIError(w http.ResponseWriter, status int, errType, message string) {
	s.writeJSON(w, status, apiErrorResponse{Error: apiError{
		Message: message,
		Type:    errType,
	}})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req model.ChatCompletionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, model.ErrNoMessages) {
			msg = model.ErrNoMessages.Error()
		}
		s.writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", msg)
		return
	}

	modelName := req.Model
	if modelName == "" {
		modelName = s.defaultModel
	}

	if req.Stream {
		s.streamCompletion(w, r, modelName, req.Messages)
		return
	}
	s.bufferedCompletion(w, r, modelName, req.Messages)
}

// streamCompletion admits a streaming request and relays sink frames to the
// caller as SSE chunks until the sink closes or the caller disconnects.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, modelName string, messages []model.Message) {
	sink := bridge.NewStreamSink()
	snap, err := s.engine.Admit(model.ModeStream, modelName, messages, sink)
	if err != nil {
		s.rejectAdmission(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	created := snap.CreatedAt.Unix()

	// Initial chunk announcing the assistant role, matching OpenAI stream
	// framing.
	first := model.NewChunk(snap.ID, modelName, created, model.Delta{Role: "assistant"}, nil)
	if err := writeSSEChunk(w, first); err != nil {
		sink.Abandon()
		s.engine.Abort(snap.ID)
		return
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case frame, ok := <-sink.Frames():
			if !ok {
				// Final frame already written; channel drained.
				return
			}
			if frame.Final {
				reason := frame.FinishReason
				chunk := model.NewChunk(snap.ID, modelName, created, model.Delta{}, &reason)
				chunk.Usage = &frame.Usage
				if err := writeSSEChunk(w, chunk); err != nil {
					sink.Abandon()
					s.engine.Abort(snap.ID)
					return
				}
				if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
					return
				}
				if canFlush {
					flusher.Flush()
				}
				return
			}
			chunk := model.NewChunk(snap.ID, modelName, created, model.Delta{Content: frame.Text}, nil)
			if err := writeSSEChunk(w, chunk); err != nil {
				sink.Abandon()
				s.engine.Abort(snap.ID)
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			// Caller disconnected: evict immediately, nothing to retry.
			sink.Abandon()
			s.engine.Abort(snap.ID)
			return
		}
	}
}

// bufferedCompletion admits a buffered request and blocks until the sink
// settles or the caller disconnects.
func (s *Server) bufferedCompletion(w http.ResponseWriter, r *http.Request, modelName string, messages []model.Message) {
	sink := bridge.NewBufferSink()
	snap, err := s.engine.Admit(model.ModeBuffered, modelName, messages, sink)
	if err != nil {
		s.rejectAdmission(w, err)
		return
	}

	select {
	case res := <-sink.Result():
		if res.Err != nil {
			s.rejectResult(w, res.Err)
			return
		}
		s.writeJSON(w, http.StatusOK, model.ChatCompletionResponse{
			ID:      snap.ID,
			Object:  "chat.completion",
			Created: snap.CreatedAt.Unix(),
			Model:   modelName,
			Choices: []model.ChatChoice{{
				Index: 0,
				Message: model.AssistantMessage{
					Role:    "assistant",
					Content: res.Content,
				},
				FinishReason: model.FinishReasonStop,
			}},
			Usage: res.Usage,
		})
	case <-r.Context().Done():
		s.engine.Abort(snap.ID)
	}
}

// rejectAdmission maps admission errors to HTTP responses.
func (s *Server) rejectAdmission(w http.ResponseWriter, err error) {
	if errors.Is(err, bridge.ErrUnavailable) {
		s.writeOpenAIError(w, http.StatusServiceUnavailable, "service_unavailable",
			"browser worker not connected; inject the bridge script first")
		return
	}
	s.logger.Error("admit request", "error", err)
	s.writeOpenAIError(w, http.StatusInternalServerError, "server_error", "failed to admit request")
}

// rejectResult maps terminal buffered-mode errors to HTTP responses.
func (s *Server) rejectResult(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrStartTimeout), errors.Is(err, bridge.ErrIdleTimeout):
		s.writeOpenAIError(w, http.StatusGatewayTimeout, "timeout_error", err.Error())
	case errors.Is(err, bridge.ErrShutdown):
		s.writeOpenAIError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	default:
		s.writeOpenAIError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// writeSSEChunk writes one completion chunk as an SSE data event.
func writeSSEChunk(w http.ResponseWriter, chunk model.ChatCompletionChunk) error {
	b, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
