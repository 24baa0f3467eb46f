// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/ollamachat/internal/ollama"
)

// DefaultTitle is the title a conversation carries until it is auto-titled
// from its first user message or renamed by the user.
const DefaultTitle = "New Chat"

// =============================================================================
// MODEL CONFIG
// =============================================================================

// ModelConfig holds the generation parameters applied to a conversation's
// requests. Each conversation owns a copy; configs are never shared.
type ModelConfig struct {
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`    // >= 0
	TopP          float64 `json:"top_p"`          // [0,1]
	TopK          int     `json:"top_k"`          // >= 1
	RepeatPenalty float64 `json:"repeat_penalty"` // >= 0
	MaxTokens     int     `json:"max_tokens"`     // >= 1
	SystemPrompt  string  `json:"system_prompt"`
}

// ModelConfigPatch carries partial updates to a ModelConfig. Only non-nil
// fields are applied.
type ModelConfigPatch struct {
	Model         *string
	Temperature   *float64
	TopP          *float64
	TopK          *int
	RepeatPenalty *float64
	MaxTokens     *int
	SystemPrompt  *string
}

// Apply merges the patch into the config.
func (c *ModelConfig) Apply(p ModelConfigPatch) {
	if p.Model != nil {
		c.Model = *p.Model
	}
	if p.Temperature != nil {
		c.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		c.TopP = *p.TopP
	}
	if p.TopK != nil {
		c.TopK = *p.TopK
	}
	if p.RepeatPenalty != nil {
		c.RepeatPenalty = *p.RepeatPenalty
	}
	if p.MaxTokens != nil {
		c.MaxTokens = *p.MaxTokens
	}
	if p.SystemPrompt != nil {
		c.SystemPrompt = *p.SystemPrompt
	}
}

// ToOptions maps the config onto the wire option fields.
func (c ModelConfig) ToOptions() *ollama.Options {
	return &ollama.Options{
		Temperature:   c.Temperature,
		TopP:          c.TopP,
		TopK:          c.TopK,
		RepeatPenalty: c.RepeatPenalty,
		NumPredict:    c.MaxTokens,
	}
}

// =============================================================================
// APP SETTINGS
// =============================================================================

// OllamaSettings identifies the model server.
type OllamaSettings struct {
	BaseURL string `json:"base_url"`
	Port    int    `json:"port"`
}

// Address returns the effective base address for API calls. An empty
// BaseURL means same-origin relative requests behind the relay.
func (o OllamaSettings) Address() string {
	if o.BaseURL == "" {
		return ""
	}
	if o.Port == 0 {
		return o.BaseURL
	}
	return o.BaseURL + ":" + itoa(o.Port)
}

// AppSettings is the process-wide, persisted settings object.
type AppSettings struct {
	Ollama   OllamaSettings `json:"ollama"`
	Theme    string         `json:"theme"`
	FontSize int            `json:"font_size"`
}

// AppSettingsPatch carries partial updates to AppSettings.
type AppSettingsPatch struct {
	Ollama   *OllamaSettings
	Theme    *string
	FontSize *int
}

// Apply merges the patch into the settings.
func (s *AppSettings) Apply(p AppSettingsPatch) {
	if p.Ollama != nil {
		s.Ollama = *p.Ollama
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a titled, ordered message sequence sharing one
// generation configuration. Message order is append order; there is no
// reordering operation.
type Conversation struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Messages    []*Message  `json:"messages"`
	ModelConfig ModelConfig `json:"model_config"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewConversation creates a new conversation seeded with a copy of the
// given default config.
func NewConversation(defaults ModelConfig) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:          uuid.NewString(),
		Title:       DefaultTitle,
		Messages:    make([]*Message, 0),
		ModelConfig: defaults,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MessageByID returns a message by its ID, or nil.
func (c *Conversation) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// WireHistory converts the first n messages to wire format, stripping IDs
// and timestamps. n < 0 means the whole history.
func (c *Conversation) WireHistory(n int) []ollama.Message {
	if n < 0 || n > len(c.Messages) {
		n = len(c.Messages)
	}
	out := make([]ollama.Message, 0, n)
	for _, msg := range c.Messages[:n] {
		out = append(out, ollama.Message{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return out
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:          c.ID,
		Title:       c.Title,
		ModelConfig: c.ModelConfig,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Messages:    make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}
	return clone
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// itoa formats an integer without using fmt.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	negative := n < 0
	if negative {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if negative {
		return "-" + string(digits)
	}
	return string(digits)
}
