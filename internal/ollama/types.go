// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message represents a chat message on the wire: role and content only.
// Domain identifiers and timestamps are stripped before transmission.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options contains model parameters for inference, mapped 1:1 onto the
// Ollama option fields.
type Options struct {
	Temperature   float64 `json:"temperature,omitempty"`    // 0.0-2.0, default 0.8
	TopP          float64 `json:"top_p,omitempty"`          // 0.0-1.0, default 0.9
	TopK          int     `json:"top_k,omitempty"`          // default 40
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"` // default 1.1
	NumPredict    int     `json:"num_predict,omitempty"`    // max tokens to generate
}

// ChatStreamParams bundles the inputs of a chat call. A non-empty
// SystemPrompt is prepended to Messages as a synthetic system entry on the
// wire; it is never part of the caller's stored history.
type ChatStreamParams struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Options      *Options
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// chatLine is one newline-delimited JSON object of a streaming response.
// A non-streaming response is a single object of the same shape.
type chatLine struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
}

// ModelInfo contains information about an installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// ListModelsResponse is the response from the /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// apiError is the error body the Ollama server returns on failed requests.
type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is a single fragment delivered during streaming.
type StreamChunk struct {
	// Content is the incremental text fragment (message.content).
	Content string

	// Done is true on the final chunk of a completed stream.
	Done bool

	// Model is the model name reported by the stream, once known.
	Model string

	// Error is set only on chunks delivered through ChatStreamChan when the
	// underlying stream failed.
	Error error
}

// StreamCallback is invoked synchronously for each chunk, in arrival order.
type StreamCallback func(chunk StreamChunk)

// =============================================================================
// HELPER METHODS
// =============================================================================

// NewUserMessage creates a new user wire message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant wire message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system wire message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}
