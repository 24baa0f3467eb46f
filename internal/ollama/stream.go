// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader handles line-by-line JSON parsing of streaming responses.
// It never buffers more than one line plus the running accumulator.
type StreamReader struct {
	reader *bufio.Reader
	// strings.Builder avoids quadratic allocations while accumulating
	accumulator strings.Builder
	model       string
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
	}
}

// Process reads the stream and calls the callback for each content-bearing
// chunk. Blocks until the stream ends, the final done chunk arrives, or the
// context is cancelled. One corrupt line does not lose subsequent lines.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			chunk, err := s.readChunk()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
			}

			if chunk != nil {
				callback(*chunk)
				if chunk.Done {
					return nil
				}
			}
		}
	}
}

// readChunk reads and parses a single line from the stream.
// Returns (nil, nil) for blank or malformed lines.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		// A final line without a trailing newline still gets processed;
		// this also covers single-object non-streaming bodies.
		if len(line) == 0 {
			return nil, err
		}
	}

	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil, nil
	}

	var response chatLine
	if err := json.Unmarshal([]byte(trimmed), &response); err != nil {
		log.Printf("STREAM: skipping malformed line: %v", err)
		return nil, nil
	}

	if response.Model != "" {
		s.model = response.Model
	}

	// A line that decodes but carries no content yields no fragment unless
	// it terminates the stream.
	content := response.Message.Content
	if content == "" && !response.Done {
		return nil, nil
	}

	if content != "" {
		s.accumulator.WriteString(content)
	}

	return &StreamChunk{
		Content: content,
		Done:    response.Done,
		Model:   s.model,
	}, nil
}

// Accumulated returns all content received so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// Model returns the model name reported by the stream, if any.
func (s *StreamReader) Model() string {
	return s.model
}
