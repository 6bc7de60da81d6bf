// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is a single Server-Sent Event parsed from a stream.
type SSEEvent struct {
	// Type is the event type from the "event:" field, or the empty
	// string when none was given (the spec's default event type).
	Type string

	// Data is the payload, assembled from one or more "data:" lines
	// joined with newlines per the SSE specification.
	Data string
}

// SSEScanner reads Server-Sent Events from an [io.Reader].
//
// Events are delimited by blank lines. Lines starting with "data:"
// carry the payload, "event:" sets the event type, comment lines
// (leading ":") and unknown fields are ignored.
//
// Usage:
//
//	scanner := NewSSEScanner(reader)
//	for scanner.Next() {
//	    event := scanner.Event()
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type SSEScanner struct {
	lines   *bufio.Scanner
	current SSEEvent
	err     error
}

// NewSSEScanner creates a scanner that reads SSE events from reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	lines := bufio.NewScanner(reader)
	// Individual data lines can carry large JSON chunks; the default
	// 64KB token limit is too small for verbose tool arguments.
	lines.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{lines: lines}
}

// Next advances to the next event. Returns false when the stream ends
// or an error occurs; call [Err] afterward to distinguish.
func (scanner *SSEScanner) Next() bool {
	if scanner.err != nil {
		return false
	}

	var eventType string
	var data []string

	flush := func() bool {
		if len(data) == 0 {
			return false
		}
		scanner.current = SSEEvent{Type: eventType, Data: strings.Join(data, "\n")}
		return true
	}

	for scanner.lines.Scan() {
		line := strings.TrimSuffix(scanner.lines.Text(), "\r")

		// Blank line terminates the current event.
		if line == "" {
			if flush() {
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue // comment
		}

		field, value, _ := strings.Cut(line, ":")
		// Per spec: a single leading space in the value is stripped.
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
		case "event":
			eventType = value
		default:
			// "id", "retry", and unknown fields are ignored.
		}
	}

	if err := scanner.lines.Err(); err != nil {
		scanner.err = err
		return false
	}

	// EOF without a trailing blank line: emit any accumulated event.
	scanner.err = io.EOF
	return flush()
}

// Event returns the most recently parsed event. Only valid after
// [Next] returned true.
func (scanner *SSEScanner) Event() SSEEvent {
	return scanner.current
}

// Err returns the first error encountered during scanning, or nil if
// scanning ended at a clean EOF.
func (scanner *SSEScanner) Err() error {
	if scanner.err == io.EOF {
		return nil
	}
	return scanner.err
}
