// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// StoreChangedMsg signals that the application state changed; the view
// re-reads its snapshot.
type StoreChangedMsg struct{}

// GenerationFinishedMsg signals that a Send or Regenerate returned.
type GenerationFinishedMsg struct {
	ConversationID string
	Err            error
}

// StatusTickMsg triggers a periodic connectivity probe.
type StatusTickMsg struct{}

// StatusRefreshedMsg signals that a connectivity probe completed.
type StatusRefreshedMsg struct{}

// ExportedMsg reports the outcome of an export triggered from the view.
type ExportedMsg struct {
	Path string
	Err  error
}
