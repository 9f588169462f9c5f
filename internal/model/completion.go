package model

import "time"

// Completion is the persisted record of a request that reached a terminal
// phase. Live requests are never persisted; this is history only.
type Completion struct {
	ID               string    `json:"id"`
	Model            string    `json:"model"`
	Mode             string    `json:"mode"`
	Outcome          string    `json:"outcome"`
	FinishReason     string    `json:"finish_reason,omitempty"`
	ContentChars     int       `json:"content_chars"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
	FinishedAt       time.Time `json:"finished_at"`
	DurationMS       int       `json:"duration_ms"`
}
