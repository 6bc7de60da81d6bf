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

// patchTools returns the whole-file patch tool set.
func patchTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name: "apply_patch",
			Description: "Replace a file's entire contents, creating it if absent. " +
				"Returns a unified diff of the change. Prefer edit_file for small targeted edits.",
			Mutating: true,
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path relative to the workspace root"},
					"new_content": {"type": "string", "description": "The complete new content for the file"}
				},
				"required": ["path", "new_content"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path       string `json:"path"`
					NewContent string `json:"new_content"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				return workspace.applyPatch(params.Path, params.NewContent)
			},
		},
	}
}

// applyPatch writes newContent to path and reports the change as a
// unified diff so the model can verify what it changed without
// re-reading the file.
func (workspace *Workspace) applyPatch(path, newContent string) (string, error) {
	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}
	if len(newContent) > workspace.maxFileSize {
		return "", fmt.Errorf("new content is %d bytes (limit %d)",
			len(newContent), workspace.maxFileSize)
	}

	oldContent := ""
	exists := false
	if data, readErr := os.ReadFile(resolved); readErr == nil {
		oldContent = string(data)
		exists = true
	}
	if exists && oldContent == newContent {
		return fmt.Sprintf("No changes to %s", path), nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(resolved, []byte(newContent), 0644); err != nil {
		return "", err
	}

	verb := "Created"
	if exists {
		verb = "Updated"
	}
	return fmt.Sprintf("%s %s\n\n%s", verb, path, unifiedDiff(oldContent, newContent, path)), nil
}

// unifiedDiff renders the difference between two file versions as a
// single unified-diff hunk covering the region between the common
// prefix and suffix. Not a minimal diff, but line-accurate: every
// changed line appears exactly once.
func unifiedDiff(oldContent, newContent, path string) string {
	oldLines := diffLines(oldContent)
	newLines := diffLines(newContent)

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	removed := oldLines[prefix : len(oldLines)-suffix]
	added := newLines[prefix : len(newLines)-suffix]

	var builder strings.Builder
	fmt.Fprintf(&builder, "--- %s (before)\n+++ %s (after)\n", path, path)
	fmt.Fprintf(&builder, "@@ -%s +%s @@\n", hunkRange(prefix, len(removed)), hunkRange(prefix, len(added)))
	for _, line := range removed {
		builder.WriteString("-" + line + "\n")
	}
	for _, line := range added {
		builder.WriteString("+" + line + "\n")
	}
	return strings.TrimSuffix(builder.String(), "\n")
}

// hunkRange formats one side of a @@ header. An empty side points at
// the line before the change, per the unified format.
func hunkRange(prefix, count int) string {
	if count == 0 {
		return fmt.Sprintf("%d,0", prefix)
	}
	return fmt.Sprintf("%d,%d", prefix+1, count)
}

// diffLines splits file content for diffing. Empty content is zero
// lines, not one empty line.
func diffLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}
