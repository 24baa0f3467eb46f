// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollamachat/internal/export"
	"github.com/jeranaias/ollamachat/internal/model"
)

// statusInterval is how often the server is probed for connectivity.
const statusInterval = 10 * time.Second

// waitForChange blocks on the store's notification channel and converts the
// signal into a message. Re-issued after every StoreChangedMsg.
func (m *Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return StoreChangedMsg{}
	}
}

// send runs a generation in the background. The store updates stream in via
// change notifications; this command only reports the final outcome.
func (m *Model) send(conversationID, text string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		err := orch.Send(context.Background(), conversationID, text)
		return GenerationFinishedMsg{ConversationID: conversationID, Err: err}
	}
}

// regenerate re-runs the generation behind an assistant message.
func (m *Model) regenerate(conversationID, messageID string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		err := orch.Regenerate(context.Background(), conversationID, messageID)
		return GenerationFinishedMsg{ConversationID: conversationID, Err: err}
	}
}

// refreshStatus probes the server once.
func (m *Model) refreshStatus() tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		orch.RefreshStatus(ctx)
		return StatusRefreshedMsg{}
	}
}

// scheduleStatusTick arms the next periodic probe.
func (m *Model) scheduleStatusTick() tea.Cmd {
	return tea.Tick(statusInterval, func(time.Time) tea.Msg {
		return StatusTickMsg{}
	})
}

// exportCurrent writes the selected conversation as Markdown.
func (m *Model) exportCurrent(conv *model.Conversation) tea.Cmd {
	dir := m.exportDir
	return func() tea.Msg {
		opts := export.DefaultOptions()
		if dir != "" {
			opts.OutputDir = dir
		}
		path, err := export.ExportMarkdown(conv, opts)
		return ExportedMsg{Path: path, Err: err}
	}
}
