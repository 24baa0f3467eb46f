// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Concurrent access tests: writers, readers and subscribers must be able to
// hit the store from separate goroutines without races or lost updates.

package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollamachat/internal/model"
)

// TestStore_ConcurrentAddMessage hammers one conversation with parallel
// writers. Every message must land exactly once.
func TestStore_ConcurrentAddMessage(t *testing.T) {
	s, err := New(Options{Defaults: testDefaults()})
	require.NoError(t, err)
	id := s.Snapshot().CurrentConversationID

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.AddMessage(id, model.NewUserMessage(fmt.Sprintf("message %d", n)))
		}(i)
	}
	wg.Wait()

	conv := s.Conversation(id)
	require.NotNil(t, conv)
	require.Equal(t, writers, conv.MessageCount())

	seen := make(map[string]bool, writers)
	for _, msg := range conv.Messages {
		require.False(t, seen[msg.ID], "duplicate message ID %s", msg.ID)
		seen[msg.ID] = true
	}
}

// TestStore_ConcurrentReadersAndWriters interleaves snapshots with mutations.
// Snapshots are deep copies, so readers never observe a torn state.
func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s, err := New(Options{Defaults: testDefaults()})
	require.NoError(t, err)
	id := s.Snapshot().CurrentConversationID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.AddMessage(id, model.NewUserMessage(fmt.Sprintf("w%d", n)))
			s.SetConnected(n%2 == 0)
		}(i)
		go func() {
			defer wg.Done()
			snap := s.Snapshot()
			for _, c := range snap.Conversations {
				for _, m := range c.Messages {
					_ = m.Content
				}
			}
			_ = s.Revision()
			_ = s.CurrentConversation()
		}()
	}
	wg.Wait()

	conv := s.Conversation(id)
	require.NotNil(t, conv)
	require.Equal(t, 20, conv.MessageCount())
}

// TestStore_ConcurrentSubscribers checks that subscribing, receiving and
// unsubscribing while mutations run never deadlocks.
func TestStore_ConcurrentSubscribers(t *testing.T) {
	s, err := New(Options{Defaults: testDefaults()})
	require.NoError(t, err)
	id := s.Snapshot().CurrentConversationID

	const subs = 10
	var wg sync.WaitGroup
	for i := 0; i < subs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := s.Subscribe()
			defer cancel()
			s.AddMessage(id, model.NewUserMessage("ping"))
			<-ch
		}()
	}
	wg.Wait()

	conv := s.Conversation(id)
	require.NotNil(t, conv)
	require.Equal(t, subs, conv.MessageCount())
}

// TestStore_ConcurrentFlush runs explicit flushes against live mutations.
func TestStore_ConcurrentFlush(t *testing.T) {
	p := &MemoryPersister{}
	s, err := New(Options{Defaults: testDefaults(), Persister: p})
	require.NoError(t, err)
	id := s.Snapshot().CurrentConversationID

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			s.AddMessage(id, model.NewUserMessage(fmt.Sprintf("f%d", n)))
		}(i)
		go func() {
			defer wg.Done()
			require.NoError(t, s.Flush())
		}()
	}
	wg.Wait()

	require.NoError(t, s.Close())

	restored, err := New(Options{Defaults: testDefaults(), Persister: p})
	require.NoError(t, err)
	conv := restored.Conversation(id)
	require.NotNil(t, conv)
	require.Equal(t, 10, conv.MessageCount())
}
