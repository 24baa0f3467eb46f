// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
	"github.com/jeranaias/ollamachat/internal/store"
)

// fakeClient scripts the transport: it delivers the configured fragments or
// fails, and records every request it sees.
type fakeClient struct {
	mu        sync.Mutex
	fragments []string
	err       error
	available bool
	models    []string

	requests []ollama.ChatStreamParams
	started  chan struct{} // closed when a stream begins, if set
	release  chan struct{} // stream blocks until closed, if set
}

func (f *fakeClient) ChatStream(ctx context.Context, params ollama.ChatStreamParams, cb ollama.StreamCallback) error {
	f.mu.Lock()
	f.requests = append(f.requests, params)
	started := f.started
	release := f.release
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	for _, frag := range f.fragments {
		cb(ollama.StreamChunk{Content: frag})
	}
	cb(ollama.StreamChunk{Done: true})
	return nil
}

func (f *fakeClient) CheckAvailability(ctx context.Context) bool { return f.available }
func (f *fakeClient) ModelNames(ctx context.Context) []string    { return f.models }

func (f *fakeClient) lastRequest(t *testing.T) ollama.ChatStreamParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return f.requests[len(f.requests)-1]
}

func newTestSetup(t *testing.T, client *fakeClient) (*store.Store, *Orchestrator, string) {
	t.Helper()
	st, err := store.New(store.Options{
		Defaults: model.ModelConfig{Model: "qwen3:32b", Temperature: 0.7, MaxTokens: 2048},
	})
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	st.SetConnected(true)
	orch := New(st, client)
	return st, orch, st.Snapshot().CurrentConversationID
}

// =============================================================================
// SEND
// =============================================================================

func TestSendStreamsIntoPlaceholder(t *testing.T) {
	client := &fakeClient{fragments: []string{"He", "llo"}}
	st, orch, convID := newTestSetup(t, client)

	if err := orch.Send(context.Background(), convID, "hi there"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	conv := st.Conversation(convID)
	if conv.MessageCount() != 2 {
		t.Fatalf("expected user + assistant, got %d messages", conv.MessageCount())
	}
	if conv.Messages[0].Role != model.RoleUser || conv.Messages[0].Content != "hi there" {
		t.Errorf("user message wrong: %+v", conv.Messages[0])
	}
	if conv.Messages[1].Role != model.RoleAssistant || conv.Messages[1].Content != "Hello" {
		t.Errorf("assistant content = %q, want %q", conv.Messages[1].Content, "Hello")
	}
	if got := orch.PhaseOf(convID); got != PhaseIdle {
		t.Errorf("phase after Send = %v, want idle", got)
	}
}

func TestSendTrimsInputAndSkipsEmpty(t *testing.T) {
	client := &fakeClient{fragments: []string{"x"}}
	st, orch, convID := newTestSetup(t, client)

	if err := orch.Send(context.Background(), convID, "   \n\t  "); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := st.Conversation(convID).MessageCount(); got != 0 {
		t.Errorf("whitespace-only input must be a no-op, got %d messages", got)
	}

	if err := orch.Send(context.Background(), convID, "  hi  "); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := st.Conversation(convID).Messages[0].Content; got != "hi" {
		t.Errorf("stored input = %q, want trimmed %q", got, "hi")
	}
}

func TestSendNoOpWhenDisconnected(t *testing.T) {
	client := &fakeClient{fragments: []string{"x"}}
	st, orch, convID := newTestSetup(t, client)
	st.SetConnected(false)

	if err := orch.Send(context.Background(), convID, "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := st.Conversation(convID).MessageCount(); got != 0 {
		t.Errorf("disconnected Send must be a no-op, got %d messages", got)
	}
}

func TestSendNoOpOnMissingConversation(t *testing.T) {
	client := &fakeClient{fragments: []string{"x"}}
	_, orch, _ := newTestSetup(t, client)

	if err := orch.Send(context.Background(), "no-such-id", "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(client.requests) != 0 {
		t.Errorf("missing conversation must not reach the transport")
	}
}

func TestSendFailureWritesFixedText(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	st, orch, convID := newTestSetup(t, client)

	if err := orch.Send(context.Background(), convID, "hi"); err == nil {
		t.Fatal("expected an error")
	}

	conv := st.Conversation(convID)
	if conv.MessageCount() != 2 {
		t.Fatalf("user message and placeholder must both persist, got %d", conv.MessageCount())
	}
	if got := conv.Messages[1].Content; got != SendFailureText {
		t.Errorf("assistant content = %q, want the fixed failure text", got)
	}
	if got := orch.PhaseOf(convID); got != PhaseIdle {
		t.Errorf("phase after failed Send = %v, want idle", got)
	}
}

func TestSendRejectsConcurrentGeneration(t *testing.T) {
	client := &fakeClient{
		fragments: []string{"slow"},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	st, orch, convID := newTestSetup(t, client)
	started := client.started

	done := make(chan error, 1)
	go func() { done <- orch.Send(context.Background(), convID, "first") }()
	<-started

	// Second send against the same conversation while the first streams.
	if err := orch.Send(context.Background(), convID, "second"); err != nil {
		t.Fatalf("busy Send should be a silent no-op, got: %v", err)
	}

	close(client.release)
	if err := <-done; err != nil {
		t.Fatalf("first Send failed: %v", err)
	}

	conv := st.Conversation(convID)
	if conv.MessageCount() != 2 {
		t.Errorf("busy Send must not append messages, got %d", conv.MessageCount())
	}
	if len(client.requests) != 1 {
		t.Errorf("busy Send must not reach the transport, got %d requests", len(client.requests))
	}
}

func TestSendUsesConversationConfig(t *testing.T) {
	client := &fakeClient{fragments: []string{"ok"}}
	st, orch, convID := newTestSetup(t, client)

	prompt := "You are terse."
	modelName := "llama3:8b"
	st.UpdateModelConfig(convID, model.ModelConfigPatch{
		SystemPrompt: &prompt,
		Model:        &modelName,
	})

	if err := orch.Send(context.Background(), convID, "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	req := client.lastRequest(t)
	if req.Model != "llama3:8b" {
		t.Errorf("Model = %q, want llama3:8b", req.Model)
	}
	if req.SystemPrompt != "You are terse." {
		t.Errorf("SystemPrompt = %q", req.SystemPrompt)
	}
	// The request history excludes the placeholder; the prompt rides in
	// SystemPrompt, never in the history itself.
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("history = %+v, want only the user message", req.Messages)
	}
}

// =============================================================================
// REGENERATE
// =============================================================================

func seedExchange(t *testing.T, st *store.Store, convID string) (userID, assistantID string) {
	t.Helper()
	user := model.NewUserMessage("question")
	st.AddMessage(convID, user)
	assistant := model.NewMessage(model.RoleAssistant, "old answer")
	st.AddMessage(convID, assistant)
	return user.ID, assistant.ID
}

func TestRegenerateOverwritesInPlace(t *testing.T) {
	client := &fakeClient{fragments: []string{"new ", "answer"}}
	st, orch, convID := newTestSetup(t, client)
	_, assistantID := seedExchange(t, st, convID)
	st.AddMessage(convID, model.NewUserMessage("later message"))

	if err := orch.Regenerate(context.Background(), convID, assistantID); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	conv := st.Conversation(convID)
	if conv.MessageCount() != 3 {
		t.Fatalf("regenerate must not change message count, got %d", conv.MessageCount())
	}
	msg := conv.Messages[1]
	if msg.ID != assistantID {
		t.Errorf("message must keep its ID and position")
	}
	if msg.Content != "new answer" {
		t.Errorf("content = %q, want %q", msg.Content, "new answer")
	}

	// History is strictly before the target: the later user message is out.
	req := client.lastRequest(t)
	if len(req.Messages) != 1 || req.Messages[0].Content != "question" {
		t.Errorf("history = %+v, want only the preceding user message", req.Messages)
	}
}

func TestRegenerateNoOpOnUserMessage(t *testing.T) {
	client := &fakeClient{fragments: []string{"x"}}
	st, orch, convID := newTestSetup(t, client)
	userID, _ := seedExchange(t, st, convID)

	if err := orch.Regenerate(context.Background(), convID, userID); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if len(client.requests) != 0 {
		t.Errorf("regenerating a user message must be a no-op")
	}
}

func TestRegenerateNoOpOnFirstMessage(t *testing.T) {
	client := &fakeClient{fragments: []string{"x"}}
	st, orch, convID := newTestSetup(t, client)
	first := model.NewMessage(model.RoleAssistant, "orphan greeting")
	st.AddMessage(convID, first)

	if err := orch.Regenerate(context.Background(), convID, first.ID); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if len(client.requests) != 0 {
		t.Errorf("a first-position message has no history to regenerate from")
	}
	if got := st.Conversation(convID).Messages[0].Content; got != "orphan greeting" {
		t.Errorf("no-op regenerate must not clear content, got %q", got)
	}
}

func TestRegenerateFailureWritesFixedText(t *testing.T) {
	client := &fakeClient{err: errors.New("boom")}
	st, orch, convID := newTestSetup(t, client)
	_, assistantID := seedExchange(t, st, convID)

	if err := orch.Regenerate(context.Background(), convID, assistantID); err == nil {
		t.Fatal("expected an error")
	}
	if got := st.Conversation(convID).MessageByID(assistantID).Content; got != RegenerateFailureText {
		t.Errorf("content = %q, want the fixed regenerate failure text", got)
	}
}

// =============================================================================
// STATUS
// =============================================================================

func TestRefreshStatusRecordsConnectivityAndModels(t *testing.T) {
	client := &fakeClient{available: true, models: []string{"qwen3:32b", "llama3:8b"}}
	st, orch, _ := newTestSetup(t, client)
	st.SetConnected(false)

	orch.RefreshStatus(context.Background())

	snap := st.Snapshot()
	if !snap.IsConnected {
		t.Errorf("expected connected")
	}
	if len(snap.Models) != 2 {
		t.Errorf("models = %v", snap.Models)
	}

	client.available = false
	orch.RefreshStatus(context.Background())
	if st.IsConnected() {
		t.Errorf("expected disconnected after failed probe")
	}
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancelStopsGenerationKeepsPartial(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{started: make(chan struct{}), release: release}
	st, orch, convID := newTestSetup(t, client)
	started := client.started

	done := make(chan error, 1)
	go func() { done <- orch.Send(context.Background(), convID, "hi") }()
	<-started

	orch.Cancel(convID)
	err := <-done
	if err == nil {
		t.Fatal("cancelled Send should return the context error")
	}

	// The exchange stays in the store; only the stream stopped.
	if got := st.Conversation(convID).MessageCount(); got != 2 {
		t.Errorf("expected user + placeholder to persist, got %d", got)
	}
	if orch.InFlight(convID) {
		t.Errorf("in-flight flag must clear after cancellation")
	}
}
