// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the terminal chat interface: a viewport of the
// selected conversation, an input line, and a status header, kept in sync
// with the application store through its change notifications.
package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	orchestrator "github.com/jeranaias/ollamachat/internal/chat"
	"github.com/jeranaias/ollamachat/internal/store"
)

// Model is the Bubble Tea model for the chat view.
type Model struct {
	store *store.Store
	orch  *orchestrator.Orchestrator

	changes     <-chan struct{}
	unsubscribe func()

	// Cached store snapshot, refreshed on StoreChangedMsg.
	snapshot store.State

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	keyMap KeyMap
	theme  Theme

	exportDir string

	width  int
	height int
	ready  bool

	statusMsg string
}

// New creates the chat view over the given store and orchestrator.
// exportDir is where Ctrl+E writes transcripts.
func New(st *store.Store, orch *orchestrator.Orchestrator, exportDir string) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 0
	input.Focus()

	snapshot := st.Snapshot()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	theme := NewTheme(snapshot.Settings.Theme)
	spin.Style = theme.Spinner

	changes, unsubscribe := st.Subscribe()

	return Model{
		store:       st,
		orch:        orch,
		changes:     changes,
		unsubscribe: unsubscribe,
		snapshot:    snapshot,
		input:       input,
		spin:        spin,
		keyMap:      DefaultKeyMap(),
		theme:       theme,
		exportDir:   exportDir,
	}
}

// Init starts the background listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		m.waitForChange(),
		m.refreshStatus(),
		m.scheduleStatusTick(),
	)
}

// currentConversationID returns the selected conversation's ID, or "".
func (m *Model) currentConversationID() string {
	return m.snapshot.CurrentConversationID
}

// generating reports whether the selected conversation is streaming.
func (m *Model) generating() bool {
	id := m.currentConversationID()
	return id != "" && m.orch.InFlight(id)
}
