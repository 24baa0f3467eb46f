// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates message generation between the conversation
// store and the Ollama transport client.
//
// The orchestrator owns the lifecycle of a generation: it appends the user
// message and the assistant placeholder, streams fragments into the
// placeholder and finalizes or fails the exchange. At most one generation
// runs per conversation; different conversations generate independently.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
	"github.com/jeranaias/ollamachat/internal/store"
)

// Failure texts written into the assistant message when generation fails.
// These are user-facing and deliberately generic; the underlying error goes
// to the log.
const (
	SendFailureText       = "Error: Failed to generate response. Please check your connection settings."
	RegenerateFailureText = "Error: Failed to regenerate response. Please check your connection settings."
)

// =============================================================================
// PHASES
// =============================================================================

// Phase is the generation state of a single conversation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseCompleted
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// CLIENT INTERFACE
// =============================================================================

// Client is the transport surface the orchestrator needs. *ollama.Client
// satisfies it; tests substitute fakes.
type Client interface {
	ChatStream(ctx context.Context, params ollama.ChatStreamParams, callback ollama.StreamCallback) error
	CheckAvailability(ctx context.Context) bool
	ModelNames(ctx context.Context) []string
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives generations against the store. Safe for concurrent use.
type Orchestrator struct {
	store  *store.Store
	client Client

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	phases   map[string]Phase
}

// New creates an orchestrator over the given store and transport client.
func New(st *store.Store, client Client) *Orchestrator {
	return &Orchestrator{
		store:    st,
		client:   client,
		inflight: make(map[string]context.CancelFunc),
		phases:   make(map[string]Phase),
	}
}

// PhaseOf returns the current generation phase of a conversation.
func (o *Orchestrator) PhaseOf(conversationID string) Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phases[conversationID]
}

// InFlight reports whether a generation is running for the conversation.
func (o *Orchestrator) InFlight(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[conversationID]
	return ok
}

// Cancel stops the running generation for a conversation, if any. Fragments
// already written stand; the partial assistant message is kept.
func (o *Orchestrator) Cancel(conversationID string) {
	o.mu.Lock()
	cancel := o.inflight[conversationID]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// =============================================================================
// SEND
// =============================================================================

// Send submits user input to a conversation and streams the assistant reply
// into the store. It blocks until the generation completes, fails or is
// cancelled.
//
// Send is a silent no-op when the trimmed input is empty, the conversation
// does not exist, the server is disconnected, or a generation is already
// running for the conversation.
func (o *Orchestrator) Send(ctx context.Context, conversationID, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil
	}
	if o.store.Conversation(conversationID) == nil {
		return nil
	}
	if !o.store.IsConnected() {
		return nil
	}

	ctx, ok := o.begin(ctx, conversationID)
	if !ok {
		return nil
	}
	defer o.end(conversationID)

	userMsg := model.NewUserMessage(text)
	o.store.AddMessage(conversationID, userMsg)

	placeholder := model.NewAssistantPlaceholder()
	o.store.AddMessage(conversationID, placeholder)

	// Config and history are read after the appends so the request reflects
	// the conversation exactly as the user submitted it.
	conv := o.store.Conversation(conversationID)
	history := conv.WireHistory(conv.MessageCount() - 1)

	if err := o.generate(ctx, conv, history, placeholder.ID); err != nil {
		if errors.Is(err, context.Canceled) {
			// User-initiated stop: fragments already written stand.
			return err
		}
		log.Printf("CHAT: generation failed: %v", err)
		o.store.UpdateMessageContent(conversationID, placeholder.ID, SendFailureText)
		o.setPhase(conversationID, PhaseFailed)
		return err
	}

	o.setPhase(conversationID, PhaseCompleted)
	return nil
}

// =============================================================================
// REGENERATE
// =============================================================================

// Regenerate replaces an assistant message in place with a fresh generation
// from the history strictly before it. The message keeps its ID and position.
//
// Regenerate is a silent no-op when the conversation or message is missing,
// the message is not an assistant message, the message is first in the
// conversation, the server is disconnected, or a generation is already
// running for the conversation.
func (o *Orchestrator) Regenerate(ctx context.Context, conversationID, messageID string) error {
	conv := o.store.Conversation(conversationID)
	if conv == nil {
		return nil
	}

	idx := -1
	for i, msg := range conv.Messages {
		if msg.ID == messageID {
			idx = i
			break
		}
	}
	if idx <= 0 || conv.Messages[idx].Role != model.RoleAssistant {
		return nil
	}
	if !o.store.IsConnected() {
		return nil
	}

	ctx, ok := o.begin(ctx, conversationID)
	if !ok {
		return nil
	}
	defer o.end(conversationID)

	// Config is re-read at call time; the history excludes the target and
	// everything after it.
	conv = o.store.Conversation(conversationID)
	history := conv.WireHistory(idx)

	o.store.UpdateMessageContent(conversationID, messageID, "")

	if err := o.generate(ctx, conv, history, messageID); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Printf("CHAT: regeneration failed: %v", err)
		o.store.UpdateMessageContent(conversationID, messageID, RegenerateFailureText)
		o.setPhase(conversationID, PhaseFailed)
		return err
	}

	o.setPhase(conversationID, PhaseCompleted)
	return nil
}

// =============================================================================
// STATUS
// =============================================================================

// RefreshStatus probes the server and records connectivity and the model
// list in the store. A failed probe records disconnected; it never errors.
func (o *Orchestrator) RefreshStatus(ctx context.Context) {
	connected := o.client.CheckAvailability(ctx)
	o.store.SetConnected(connected)
	if connected {
		if names := o.client.ModelNames(ctx); names != nil {
			o.store.SetModels(names)
		}
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

// generate streams a completion into the target message, writing the full
// accumulated text to the store on every fragment.
func (o *Orchestrator) generate(ctx context.Context, conv *model.Conversation, history []ollama.Message, targetID string) error {
	cfg := conv.ModelConfig

	params := ollama.ChatStreamParams{
		Model:        cfg.Model,
		Messages:     history,
		SystemPrompt: cfg.SystemPrompt,
		Options:      cfg.ToOptions(),
	}

	var sb strings.Builder
	first := true
	return o.client.ChatStream(ctx, params, func(chunk ollama.StreamChunk) {
		if first {
			o.setPhase(conv.ID, PhaseStreaming)
			first = false
		}
		if chunk.Content == "" {
			return
		}
		sb.WriteString(chunk.Content)
		o.store.UpdateMessageContent(conv.ID, targetID, sb.String())
	})
}

// begin claims the conversation's in-flight slot. Returns false when a
// generation is already running.
func (o *Orchestrator) begin(ctx context.Context, conversationID string) (context.Context, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inflight[conversationID]; busy {
		return ctx, false
	}
	ctx, cancel := context.WithCancel(ctx)
	o.inflight[conversationID] = cancel
	o.phases[conversationID] = PhaseSending
	return ctx, true
}

// end releases the in-flight slot and returns the conversation to idle.
func (o *Orchestrator) end(conversationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if cancel, ok := o.inflight[conversationID]; ok {
		cancel()
		delete(o.inflight, conversationID)
	}
	o.phases[conversationID] = PhaseIdle
}

// setPhase records a phase transition for observers polling PhaseOf.
func (o *Orchestrator) setPhase(conversationID string, p Phase) {
	o.mu.Lock()
	o.phases[conversationID] = p
	o.mu.Unlock()
}
