package model

import "github.com/oklog/ulid/v2"

// NewCompletionID generates the externally visible completion identifier.
// The chatcmpl_ prefix matches what OpenAI clients expect to see.
func NewCompletionID() string {
	return "chatcmpl_" + ulid.Make().String()
}
