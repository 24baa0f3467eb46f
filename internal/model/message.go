// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strconv"
	"sync/atomic"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
// Only Content is mutable after creation (streaming writes and user edits);
// ID, Role and Timestamp are fixed.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        nextMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantPlaceholder creates the empty assistant message that a
// generation streams into. Its timestamp is never earlier than the user
// message that triggered it because IDs and timestamps are taken after it.
func NewAssistantPlaceholder() *Message {
	return NewMessage(RoleAssistant, "")
}

// Preview returns a truncated single-line preview of the message content.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// =============================================================================
// ID GENERATION
// =============================================================================

// lastMessageStamp holds the last issued nanosecond stamp so IDs stay
// strictly increasing even when the clock returns the same value twice.
var lastMessageStamp atomic.Int64

// nextMessageID creates a time-derived message ID. Lexicographic-friendly
// base-36 encoding keeps IDs short; monotonicity preserves creation order.
func nextMessageID() string {
	now := time.Now().UnixNano()
	for {
		last := lastMessageStamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastMessageStamp.CompareAndSwap(last, now) {
			return "msg_" + strconv.FormatInt(now, 36)
		}
	}
}
