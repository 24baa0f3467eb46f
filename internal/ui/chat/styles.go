// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the lipgloss styles for the chat view.
type Theme struct {
	Header        lipgloss.Style
	Title         lipgloss.Style
	StatusOK      lipgloss.Style
	StatusDown    lipgloss.Style
	UserLabel     lipgloss.Style
	AssistantText lipgloss.Style
	SystemText    lipgloss.Style
	ErrorText     lipgloss.Style
	InputPrompt   lipgloss.Style
	Footer        lipgloss.Style
	Spinner       lipgloss.Style
}

// NewTheme builds a theme for the given name ("light" or "dark").
func NewTheme(name string) Theme {
	dark := name == "dark"

	text := lipgloss.Color("235")
	dim := lipgloss.Color("243")
	if dark {
		text = lipgloss.Color("252")
		dim = lipgloss.Color("245")
	}

	return Theme{
		Header: lipgloss.NewStyle().
			Foreground(dim).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(text),
		StatusOK: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		StatusDown: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		UserLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		AssistantText: lipgloss.NewStyle().
			Foreground(text),
		SystemText: lipgloss.NewStyle().
			Italic(true).
			Foreground(dim),
		ErrorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		InputPrompt: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		Footer: lipgloss.NewStyle().
			Foreground(dim),
		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")),
	}
}
