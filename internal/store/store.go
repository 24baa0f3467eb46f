// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the authoritative, persisted application state:
// conversations, selection, settings, model list and connectivity.
//
// The store is a mutex-guarded state container exposing versioned snapshots
// and a change-notification channel per subscriber. All mutations are
// synchronous and total: operations on a missing conversation or message ID
// are silent no-ops, so UI races between delete and update cannot corrupt
// state. Every mutation schedules a debounced whole-state persist.
package store

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/ollamachat/internal/model"
)

// SchemaVersion tags the persisted blob for future migrations.
const SchemaVersion = 1

// defaultSaveDelay is the debounce window between a mutation and the
// whole-state write behind it.
const defaultSaveDelay = 500 * time.Millisecond

// =============================================================================
// STATE
// =============================================================================

// State is the complete persisted application state.
type State struct {
	Version               int                   `json:"version"`
	Conversations         []*model.Conversation `json:"conversations"`
	CurrentConversationID string                `json:"current_conversation_id,omitempty"`
	Settings              model.AppSettings     `json:"settings"`
	Models                []string              `json:"models"`
	IsConnected           bool                  `json:"is_connected"`
}

// clone deep-copies the state so snapshots never alias live data.
func (s State) clone() State {
	out := s
	out.Conversations = make([]*model.Conversation, len(s.Conversations))
	for i, c := range s.Conversations {
		out.Conversations[i] = c.Clone()
	}
	out.Models = append([]string(nil), s.Models...)
	return out
}

// =============================================================================
// STORE
// =============================================================================

// Options configures a Store.
type Options struct {
	// Persister stores and restores the serialized state blob.
	// nil means in-memory only (used by tests).
	Persister Persister

	// Defaults seeds the ModelConfig of newly created conversations.
	Defaults model.ModelConfig

	// Settings is the initial AppSettings used when no persisted state exists.
	Settings model.AppSettings

	// SaveDelay overrides the persistence debounce window (0 = default).
	SaveDelay time.Duration
}

// Store is the single source of truth for application state.
type Store struct {
	mu       sync.Mutex
	state    State
	revision uint64
	defaults model.ModelConfig

	subscribers map[int]chan struct{}
	nextSubID   int

	persister Persister
	saveDelay time.Duration
	saveTimer *time.Timer
	closed    bool
}

// New creates a store, restoring persisted state if the persister has any.
// A store restored (or created) with zero conversations auto-creates one.
func New(opts Options) (*Store, error) {
	s := &Store{
		defaults:    opts.Defaults,
		subscribers: make(map[int]chan struct{}),
		persister:   opts.Persister,
		saveDelay:   opts.SaveDelay,
	}
	if s.saveDelay == 0 {
		s.saveDelay = defaultSaveDelay
	}

	s.state = State{
		Version:  SchemaVersion,
		Settings: opts.Settings,
	}

	if s.persister != nil {
		blob, err := s.persister.Load()
		if err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			var restored State
			if err := json.Unmarshal(blob, &restored); err != nil {
				// A corrupt blob must not brick startup; start fresh and log.
				log.Printf("STORE: discarding unreadable state blob: %v", err)
			} else {
				restored.Version = SchemaVersion
				s.state = restored
			}
		}
	}

	// Selection must never dangle, even against a hand-edited blob.
	if s.state.CurrentConversationID != "" && s.findLocked(s.state.CurrentConversationID) == nil {
		s.state.CurrentConversationID = ""
	}

	if len(s.state.Conversations) == 0 {
		conv := model.NewConversation(s.defaults)
		s.state.Conversations = []*model.Conversation{conv}
		s.state.CurrentConversationID = conv.ID
	}

	return s, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Revision returns the mutation counter. It advances on every state change.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Conversation returns a deep copy of the conversation, or nil if absent.
func (s *Store) Conversation(id string) *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(id); c != nil {
		return c.Clone()
	}
	return nil
}

// CurrentConversation returns a deep copy of the selected conversation,
// or nil when nothing is selected.
func (s *Store) CurrentConversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentConversationID == "" {
		return nil
	}
	if c := s.findLocked(s.state.CurrentConversationID); c != nil {
		return c.Clone()
	}
	return nil
}

// IsConnected returns the last recorded connectivity status.
func (s *Store) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsConnected
}

// Settings returns the current app settings.
func (s *Store) Settings() model.AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Settings
}

// =============================================================================
// CONVERSATION MUTATIONS
// =============================================================================

// CreateConversation creates a conversation seeded with a copy of the
// default ModelConfig, prepends it to the list and selects it.
// Returns the new conversation's ID.
func (s *Store) CreateConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation(s.defaults)
	s.state.Conversations = append([]*model.Conversation{conv}, s.state.Conversations...)
	s.state.CurrentConversationID = conv.ID
	s.commitLocked()
	return conv.ID
}

// SelectConversation selects a conversation by ID. No-op if absent.
func (s *Store) SelectConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return
	}
	s.state.CurrentConversationID = id
	s.commitLocked()
}

// DeleteConversation removes a conversation. No-op if absent. Deleting the
// selected conversation clears the selection; it never dangles.
func (s *Store) DeleteConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.state.Conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	s.state.Conversations = append(s.state.Conversations[:idx], s.state.Conversations[idx+1:]...)
	if s.state.CurrentConversationID == id {
		s.state.CurrentConversationID = ""
	}
	s.commitLocked()
}

// RenameConversation sets a conversation's title. No-op if absent.
func (s *Store) RenameConversation(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(id)
	if c == nil {
		return
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	s.commitLocked()
}

// AddMessage appends a message to a conversation. No-op if the conversation
// is absent or a message with the same ID already exists there.
func (s *Store) AddMessage(conversationID string, msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(conversationID)
	if c == nil || msg == nil {
		return
	}
	if c.MessageByID(msg.ID) != nil {
		return
	}

	msgCopy := *msg
	c.Messages = append(c.Messages, &msgCopy)
	c.UpdatedAt = time.Now()

	// First user message titles a still-untitled conversation.
	if c.Title == model.DefaultTitle && msgCopy.Role == model.RoleUser {
		c.Title = msgCopy.Preview(50)
	}
	s.commitLocked()
}

// UpdateMessageContent replaces a message's content with the complete text
// supplied. Streaming writers pass the full accumulated text each time, not
// a delta. No-op if the conversation or message is absent.
func (s *Store) UpdateMessageContent(conversationID, messageID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(conversationID)
	if c == nil {
		return
	}
	msg := c.MessageByID(messageID)
	if msg == nil {
		return
	}
	msg.Content = content
	c.UpdatedAt = time.Now()
	s.commitLocked()
}

// UpdateModelConfig merges a partial config update into a conversation's
// ModelConfig. No-op if the conversation is absent.
func (s *Store) UpdateModelConfig(conversationID string, patch model.ModelConfigPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(conversationID)
	if c == nil {
		return
	}
	c.ModelConfig.Apply(patch)
	c.UpdatedAt = time.Now()
	s.commitLocked()
}

// =============================================================================
// SETTINGS AND STATUS MUTATIONS
// =============================================================================

// UpdateSettings merges a partial settings update.
func (s *Store) UpdateSettings(patch model.AppSettingsPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Settings.Apply(patch)
	s.commitLocked()
}

// SetModels records the last known model list.
func (s *Store) SetModels(models []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Models = append([]string(nil), models...)
	s.commitLocked()
}

// SetConnected records the last known connectivity status.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsConnected = connected
	s.commitLocked()
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers a change-notification channel. The channel receives a
// coalesced signal after every mutation. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan struct{}, 1)
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// notifyLocked signals all subscribers without blocking; a subscriber that
// has not drained its channel keeps exactly one pending signal.
func (s *Store) notifyLocked() {
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// commitLocked finalizes a mutation: bump revision, notify, schedule a save.
func (s *Store) commitLocked() {
	s.revision++
	s.notifyLocked()
	s.scheduleSaveLocked()
}

// scheduleSaveLocked (re)arms the debounce timer for a whole-state persist.
func (s *Store) scheduleSaveLocked() {
	if s.persister == nil || s.closed {
		return
	}
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.saveDelay, func() {
		if err := s.Flush(); err != nil {
			log.Printf("STORE: persist failed: %v", err)
		}
	})
}

// Flush serializes the current state and writes it through the persister
// immediately, bypassing the debounce.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.persister == nil {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.state.clone()
	persister := s.persister
	s.mu.Unlock()

	blob, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return persister.Save(blob)
}

// Close flushes pending state and releases the persister.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	persister := s.persister
	s.mu.Unlock()

	if persister == nil {
		return nil
	}
	if err := s.Flush(); err != nil {
		return err
	}
	return persister.Close()
}

// =============================================================================
// HELPERS
// =============================================================================

// findLocked returns the live conversation for an ID, or nil.
func (s *Store) findLocked(id string) *model.Conversation {
	for _, c := range s.state.Conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}
