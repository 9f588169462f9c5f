package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validation errors for inbound chat requests.
var (
	ErrNoMessages = errors.New("messages is required and must be a non-empty array")
)

// Message is a single conversational entry. Content is kept raw because the
// engine passes it through to the worker untouched; callers may send plain
// strings or multimodal content arrays.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ChatCompletionRequest is the JSON body for POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// UnmarshalJSON decodes and validates the request in one step.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias ChatCompletionRequest
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode chat completion request: %w", err)
	}
	if len(raw.Messages) == 0 {
		return ErrNoMessages
	}
	r.Model = strings.TrimSpace(raw.Model)
	r.Messages = raw.Messages
	r.Stream = raw.Stream
	return nil
}

// Mode returns the delivery mode implied by the stream flag.
func (r *ChatCompletionRequest) Mode() string {
	if r.Stream {
		return ModeStream
	}
	return ModeBuffered
}

// Usage records token accounting reported by the worker.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AssistantMessage is the message block of a buffered completion response.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Delta is the incremental message block of a streamed chunk. The terminal
// chunk carries an empty delta with finish_reason set.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is a single choice in a streamed chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// ChatCompletionChunk is one SSE frame of a streamed completion.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChatChoice is a single choice in a buffered completion response.
type ChatChoice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// ChatCompletionResponse is the buffered (non-streaming) response body.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// FinishReasonStop is the only finish reason the worker protocol produces.
const FinishReasonStop = "stop"

// NewChunk builds a streamed chunk with a single choice.
func NewChunk(id, modelName string, createdUnix int64, delta Delta, finishReason *string) ChatCompletionChunk {
	return ChatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: createdUnix,
		Model:   modelName,
		Choices: []ChunkChoice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}
}

// ModelInfo describes one entry of the GET /v1/models catalogue.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the GET /v1/models response body.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}
