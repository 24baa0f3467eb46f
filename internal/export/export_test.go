// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/ollamachat/internal/model"
)

func sampleConversation() *model.Conversation {
	conv := model.NewConversation(model.ModelConfig{
		Model:       "qwen3:32b",
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	conv.Title = "Capital of France"
	conv.Messages = []*model.Message{
		model.NewUserMessage("What is the capital of France?"),
		model.NewMessage(model.RoleAssistant, "The capital of France is Paris."),
	}
	return conv
}

func TestMarkdownExport(t *testing.T) {
	conv := sampleConversation()

	content, err := NewMarkdownExporter(nil).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	out := string(content)

	for _, want := range []string{
		"# Capital of France",
		"model: qwen3:32b",
		"### You",
		"### Assistant",
		"The capital of France is Paris.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	conv := sampleConversation()
	opts := &Options{OutputDir: ".", IncludeMetadata: false, IncludeTimestamps: false}

	content, err := NewMarkdownExporter(opts).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	out := string(content)

	if strings.Contains(out, "---") {
		t.Errorf("frontmatter present despite IncludeMetadata=false")
	}
	if strings.Contains(out, "<sub>") {
		t.Errorf("timestamps present despite IncludeTimestamps=false")
	}
}

func TestMarkdownExportRejectsEmpty(t *testing.T) {
	conv := model.NewConversation(model.ModelConfig{Model: "m"})
	if _, err := NewMarkdownExporter(nil).Export(conv); err == nil {
		t.Error("expected an error for an empty conversation")
	}
	if _, err := NewMarkdownExporter(nil).Export(nil); err == nil {
		t.Error("expected an error for a nil conversation")
	}
}

func TestJSONExportRoundTrip(t *testing.T) {
	conv := sampleConversation()

	content, err := NewJSONExporter().Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var doc struct {
		Generator    string              `json:"generator"`
		ExportedAt   time.Time           `json:"exported_at"`
		Conversation *model.Conversation `json:"conversation"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.Generator != "ollamachat" {
		t.Errorf("generator = %q", doc.Generator)
	}
	if doc.Conversation.ID != conv.ID || len(doc.Conversation.Messages) != 2 {
		t.Errorf("conversation did not round-trip: %+v", doc.Conversation)
	}
}

func TestExportToFileWritesAndNames(t *testing.T) {
	conv := sampleConversation()
	conv.Title = "a/b:c?d e"
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()

	path, err := ExportMarkdown(conv, opts)
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}

	base := strings.TrimPrefix(path, opts.OutputDir+"/")
	if strings.ContainsAny(base, "/:?* ") {
		t.Errorf("filename not sanitized: %q", base)
	}
	if !strings.HasSuffix(path, ".md") {
		t.Errorf("path = %q, want .md suffix", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "Paris") {
		t.Errorf("exported file missing content")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello_world"},
		{"a/b\\c", "a-b-c"},
		{"", "conversation"},
		{"tabs\tand\nnewlines", "tabs_and_newlines"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
