// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollamachat/internal/model"
)

// headerHeight and footerHeight are the fixed chrome rows around the viewport.
const (
	headerHeight = 2
	footerHeight = 3
)

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.refreshViewport(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StoreChangedMsg:
		atBottom := m.viewport.AtBottom()
		m.snapshot = m.store.Snapshot()
		m.refreshViewport(atBottom)
		return m, m.waitForChange()

	case GenerationFinishedMsg:
		if msg.Err != nil {
			m.statusMsg = "generation stopped"
		} else {
			m.statusMsg = ""
		}
		return m, nil

	case StatusTickMsg:
		return m, tea.Batch(m.refreshStatus(), m.scheduleStatusTick())

	case StatusRefreshedMsg:
		return m, nil

	case ExportedMsg:
		if msg.Err != nil {
			m.statusMsg = "export failed: " + msg.Err.Error()
		} else {
			m.statusMsg = "exported to " + msg.Path
		}
		return m, nil

	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey dispatches keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.keyMap

	switch {
	case key.Matches(msg, keys.Quit):
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, keys.Submit):
		text := m.input.Value()
		id := m.currentConversationID()
		if id == "" || m.generating() {
			return m, nil
		}
		m.input.SetValue("")
		m.statusMsg = ""
		return m, m.send(id, text)

	case key.Matches(msg, keys.Cancel):
		if id := m.currentConversationID(); id != "" {
			m.orch.Cancel(id)
		}
		return m, nil

	case key.Matches(msg, keys.NewChat):
		m.store.CreateConversation()
		return m, nil

	case key.Matches(msg, keys.NextChat):
		m.selectAdjacent(1)
		return m, nil

	case key.Matches(msg, keys.PrevChat):
		m.selectAdjacent(-1)
		return m, nil

	case key.Matches(msg, keys.DeleteChat):
		if id := m.currentConversationID(); id != "" && !m.generating() {
			m.store.DeleteConversation(id)
			// Always leave something selected.
			snap := m.store.Snapshot()
			if snap.CurrentConversationID == "" {
				if len(snap.Conversations) > 0 {
					m.store.SelectConversation(snap.Conversations[0].ID)
				} else {
					m.store.CreateConversation()
				}
			}
		}
		return m, nil

	case key.Matches(msg, keys.Regenerate):
		id := m.currentConversationID()
		if id == "" || m.generating() {
			return m, nil
		}
		if msgID := m.lastAssistantMessageID(); msgID != "" {
			return m, m.regenerate(id, msgID)
		}
		return m, nil

	case key.Matches(msg, keys.Export):
		if conv := m.store.CurrentConversation(); conv != nil && !conv.IsEmpty() {
			return m, m.exportCurrent(conv)
		}
		return m, nil

	case key.Matches(msg, keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, keys.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// selectAdjacent moves the selection within the conversation list.
func (m *Model) selectAdjacent(delta int) {
	convs := m.snapshot.Conversations
	if len(convs) == 0 {
		return
	}
	current := m.currentConversationID()
	idx := 0
	for i, c := range convs {
		if c.ID == current {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 {
		idx = len(convs) - 1
	}
	if idx >= len(convs) {
		idx = 0
	}
	m.store.SelectConversation(convs[idx].ID)
}

// lastAssistantMessageID finds the trailing assistant message of the
// selected conversation, skipping nothing: only the last message qualifies.
func (m *Model) lastAssistantMessageID() string {
	conv := m.store.CurrentConversation()
	if conv == nil || conv.IsEmpty() {
		return ""
	}
	last := conv.Messages[len(conv.Messages)-1]
	if last.Role != model.RoleAssistant {
		return ""
	}
	return last.ID
}

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport(gotoBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}
