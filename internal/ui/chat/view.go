// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/util"
)

// View renders the full chat screen.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.renderInput())
	sb.WriteString("\n")
	sb.WriteString(m.renderFooter())
	return sb.String()
}

// renderHeader shows the conversation title, model and connection status.
func (m *Model) renderHeader() string {
	title := "ollamachat"
	modelName := ""
	if conv := m.currentConversation(); conv != nil {
		title = util.TruncateString(conv.Title, 40)
		modelName = conv.ModelConfig.Model
	}

	status := m.theme.StatusDown.Render("● offline")
	if m.snapshot.IsConnected {
		status = m.theme.StatusOK.Render("● " + modelName)
	}

	left := m.theme.Title.Render(title)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + status)
}

// renderInput shows the prompt line, with a spinner while streaming.
func (m *Model) renderInput() string {
	if m.generating() {
		return m.spin.View() + " generating... (Esc to stop)"
	}
	return m.input.View()
}

// renderFooter shows key hints and the transient status message.
func (m *Model) renderFooter() string {
	hints := "Enter send · C-n new · C-h/C-l switch · C-r regen · C-e export · C-c quit"
	line := m.theme.Footer.Render(util.TruncateString(hints, m.width))
	if m.statusMsg != "" {
		line += "\n" + m.theme.Footer.Render(util.TruncateString(m.statusMsg, m.width))
	} else {
		line += "\n"
	}
	return line
}

// renderConversation renders the transcript for the viewport.
func (m *Model) renderConversation() string {
	conv := m.currentConversation()
	if conv == nil || conv.IsEmpty() {
		return m.theme.SystemText.Render("No messages yet. Type below to start.")
	}

	width := m.viewport.Width
	if width < 10 {
		width = 10
	}
	wrap := lipgloss.NewStyle().Width(width)

	var sb strings.Builder
	for i, msg := range conv.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(msg, wrap))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderMessage renders one message with its role label.
func (m *Model) renderMessage(msg *model.Message, wrap lipgloss.Style) string {
	label := msg.Role.DisplayName() + " · " + msg.Timestamp.Format("15:04")

	var labelStyle, bodyStyle lipgloss.Style
	switch msg.Role {
	case model.RoleUser:
		labelStyle = m.theme.UserLabel
		bodyStyle = m.theme.AssistantText
	case model.RoleAssistant:
		labelStyle = m.theme.Title
		bodyStyle = m.theme.AssistantText
		if strings.HasPrefix(msg.Content, "Error: ") {
			bodyStyle = m.theme.ErrorText
		}
	default:
		labelStyle = m.theme.Footer
		bodyStyle = m.theme.SystemText
	}

	body := msg.Content
	if body == "" && m.generating() {
		body = "..."
	}

	return labelStyle.Render(label) + "\n" + wrap.Render(bodyStyle.Render(body))
}

// currentConversation returns the selected conversation from the cached
// snapshot, or nil.
func (m *Model) currentConversation() *model.Conversation {
	id := m.snapshot.CurrentConversationID
	if id == "" {
		return nil
	}
	for _, c := range m.snapshot.Conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}
