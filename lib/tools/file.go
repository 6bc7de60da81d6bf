// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileTools returns the file read/write tool set.
func fileTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name:        "read_file",
			Description: "Read the contents of a file. Returns the full text with line numbers.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace root"}
				},
				"required": ["path"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path string `json:"path"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				return workspace.readFile(params.Path, 0, 0)
			},
		},
		{
			Name:        "read_lines",
			Description: "Read a specific line range from a file. Use for large files where read_file would return too much.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace root"},
					"start_line": {"type": "integer", "description": "First line to read (1-based)"},
					"end_line": {"type": "integer", "description": "Last line to read, inclusive. Defaults to 100 lines after start_line."}
				},
				"required": ["path", "start_line"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path      string `json:"path"`
					StartLine int    `json:"start_line"`
					EndLine   int    `json:"end_line"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				if params.StartLine < 1 {
					return "", fmt.Errorf("start_line must be at least 1")
				}
				if params.EndLine == 0 {
					params.EndLine = params.StartLine + 99
				}
				if params.EndLine < params.StartLine {
					return "", fmt.Errorf("end_line %d is before start_line %d", params.EndLine, params.StartLine)
				}
				return workspace.readFile(params.Path, params.StartLine, params.EndLine)
			},
		},
		{
			Name:        "count_lines",
			Description: "Count the lines in a file without reading its content into context.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace root"}
				},
				"required": ["path"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path string `json:"path"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				resolved, err := workspace.resolve(params.Path)
				if err != nil {
					return "", err
				}
				data, err := os.ReadFile(resolved)
				if err != nil {
					return "", err
				}
				lines := strings.Count(string(data), "\n")
				if len(data) > 0 && data[len(data)-1] != '\n' {
					lines++
				}
				return fmt.Sprintf("%s: %d lines, %d bytes", params.Path, lines, len(data)), nil
			},
		},
		{
			Name:        "write_file",
			Description: "Create a file or replace its entire contents. Parent directories are created as needed.",
			Mutating:    true,
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace root"},
					"content": {"type": "string", "description": "Complete new file content"}
				},
				"required": ["path", "content"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path    string `json:"path"`
					Content string `json:"content"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				resolved, err := workspace.resolve(params.Path)
				if err != nil {
					return "", err
				}
				if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
					return "", err
				}
				if err := os.WriteFile(resolved, []byte(params.Content), 0644); err != nil {
					return "", err
				}
				return fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path), nil
			},
		},
		{
			Name: "edit_file",
			Description: "Replace an exact string in a file with a new string. " +
				"old_string must appear exactly once; include surrounding lines to disambiguate.",
			Mutating: true,
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace root"},
					"old_string": {"type": "string", "description": "Exact text to replace"},
					"new_string": {"type": "string", "description": "Replacement text"}
				},
				"required": ["path", "old_string", "new_string"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path      string `json:"path"`
					OldString string `json:"old_string"`
					NewString string `json:"new_string"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				return workspace.editFile(params.Path, params.OldString, params.NewString)
			},
		},
	}
}

// readFile reads a file, optionally restricted to a 1-based inclusive
// line range (startLine == 0 means the whole file). Output lines are
// numbered so the model can reference them in later edits.
func (workspace *Workspace) readFile(path string, startLine, endLine int) (string, error) {
	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory; use list_files", path)
	}
	if startLine == 0 && info.Size() > int64(workspace.maxFileSize) {
		return "", fmt.Errorf("%s is %d bytes (limit %d); use read_lines for a range",
			path, info.Size(), workspace.maxFileSize)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	first, last := 1, len(lines)
	if startLine > 0 {
		if startLine > len(lines) {
			return "", fmt.Errorf("start_line %d is past the end of %s (%d lines)",
				startLine, path, len(lines))
		}
		first = startLine
		last = min(endLine, len(lines))
	}

	var builder strings.Builder
	for i := first; i <= last; i++ {
		fmt.Fprintf(&builder, "%6d\t%s\n", i, lines[i-1])
	}
	return builder.String(), nil
}

// editFile replaces old with new in the file at path. The old string
// must match exactly once; zero or multiple matches fail without
// modifying the file. When no exact match exists, a line-trimmed
// match is tried, since models often reproduce code with indentation
// that differs from the file.
func (workspace *Workspace) editFile(path, old, replacement string) (string, error) {
	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	content := string(data)

	switch count := strings.Count(content, old); {
	case count == 0:
		block, blockCount := lineTrimmedMatch(content, old)
		if blockCount == 1 {
			old = block
			break
		}
		if blockCount > 1 {
			return "", fmt.Errorf("old_string matches %d blocks in %s (ignoring indentation); add surrounding context to make it unique", blockCount, path)
		}
		return "", fmt.Errorf("old_string not found in %s", path)
	case count > 1:
		return "", fmt.Errorf("old_string appears %d times in %s; add surrounding context to make it unique", count, path)
	}

	updated := strings.Replace(content, old, replacement, 1)
	if err := os.WriteFile(resolved, []byte(updated), 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Edited %s (%+d bytes)", path, len(updated)-len(content)), nil
}

// lineTrimmedMatch locates a block of consecutive lines in content
// whose whitespace-trimmed form equals the trimmed form of want. It
// returns the block as it actually appears in the file, with its
// original indentation, and how many such blocks exist.
func lineTrimmedMatch(content, want string) (string, int) {
	contentLines := strings.Split(content, "\n")
	wantLines := strings.Split(want, "\n")
	if len(wantLines) > 0 && wantLines[len(wantLines)-1] == "" {
		wantLines = wantLines[:len(wantLines)-1]
	}
	if len(wantLines) == 0 {
		return "", 0
	}

	var match string
	count := 0
	for i := 0; i+len(wantLines) <= len(contentLines); i++ {
		aligned := true
		for j, wantLine := range wantLines {
			if strings.TrimSpace(contentLines[i+j]) != strings.TrimSpace(wantLine) {
				aligned = false
				break
			}
		}
		if aligned {
			count++
			if count == 1 {
				match = strings.Join(contentLines[i:i+len(wantLines)], "\n")
			}
		}
	}
	return match, count
}
