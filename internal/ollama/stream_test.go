// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"strings"
	"testing"
)

func collect(t *testing.T, body string) ([]StreamChunk, error) {
	t.Helper()
	reader := NewStreamReader(strings.NewReader(body))
	var chunks []StreamChunk
	err := reader.Process(context.Background(), func(c StreamChunk) {
		chunks = append(chunks, c)
	})
	return chunks, err
}

func TestStreamAccumulatesFragments(t *testing.T) {
	body := `{"model":"qwen3:32b","message":{"content":"He"},"done":false}
{"message":{"content":"llo"},"done":false}
{"message":{"content":""},"done":true,"done_reason":"stop"}
`
	chunks, err := collect(t, body)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
	}
	if sb.String() != "Hello" {
		t.Errorf("accumulated = %q, want %q", sb.String(), "Hello")
	}
	if !chunks[len(chunks)-1].Done {
		t.Errorf("final chunk must carry Done")
	}
	if chunks[0].Model != "qwen3:32b" {
		t.Errorf("model = %q", chunks[0].Model)
	}
}

func TestStreamChunkingInvariance(t *testing.T) {
	// The same text split differently across lines yields the same result.
	bodies := []string{
		`{"message":{"content":"Hello"},"done":false}` + "\n" + `{"done":true}` + "\n",
		`{"message":{"content":"H"},"done":false}` + "\n" +
			`{"message":{"content":"e"},"done":false}` + "\n" +
			`{"message":{"content":"llo"},"done":false}` + "\n" +
			`{"done":true}` + "\n",
	}

	for i, body := range bodies {
		reader := NewStreamReader(strings.NewReader(body))
		err := reader.Process(context.Background(), func(StreamChunk) {})
		if err != nil {
			t.Fatalf("body %d: Process failed: %v", i, err)
		}
		if got := reader.Accumulated(); got != "Hello" {
			t.Errorf("body %d: accumulated = %q, want %q", i, got, "Hello")
		}
	}
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	body := `{"message":{"content":"He"},"done":false}
{corrupt json!!
{"message":{"content":"llo"},"done":false}
{"done":true}
`
	chunks, err := collect(t, body)
	if err != nil {
		t.Fatalf("one corrupt line must not abort the stream: %v", err)
	}

	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
	}
	if sb.String() != "Hello" {
		t.Errorf("accumulated = %q, want %q", sb.String(), "Hello")
	}
}

func TestStreamSkipsBlankLines(t *testing.T) {
	body := "\n\n" + `{"message":{"content":"x"},"done":false}` + "\n\n" + `{"done":true}` + "\n"
	chunks, err := collect(t, body)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Errorf("got %d chunks, want 2", len(chunks))
	}
}

func TestStreamSingleObjectBody(t *testing.T) {
	// A non-streaming response is one object with no trailing newline.
	body := `{"message":{"content":"complete answer"},"done":true}`
	chunks, err := collect(t, body)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "complete answer" || !chunks[0].Done {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestStreamEndsWithoutDone(t *testing.T) {
	// EOF before a done line is a clean end, not an error.
	body := `{"message":{"content":"partial"},"done":false}` + "\n"
	chunks, err := collect(t, body)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "partial" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestStreamContentlessLinesYieldNothing(t *testing.T) {
	body := `{"message":{"content":""},"done":false}
{"message":{"content":"x"},"done":false}
{"done":true}
`
	chunks, err := collect(t, body)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	// Empty non-done line is dropped; done line still delivered.
	if len(chunks) != 2 {
		t.Errorf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
}

func TestStreamCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := NewStreamReader(strings.NewReader(`{"message":{"content":"x"},"done":false}` + "\n"))
	err := reader.Process(ctx, func(StreamChunk) {
		t.Error("callback must not fire after cancellation")
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
