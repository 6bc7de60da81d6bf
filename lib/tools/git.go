// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// gitTools returns the read-only git query tool set. All commands
// target the workspace root via "git -C".
func gitTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name:        "git_status",
			Description: "Show the git working tree status in short format.",
			Parameters:  schema(`{"type": "object", "properties": {}}`),
			run: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return workspace.git(ctx, "status", "--short", "--branch")
			},
		},
		{
			Name:        "git_diff",
			Description: "Show uncommitted changes as a unified diff.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Restrict the diff to this path"},
					"staged": {"type": "boolean", "description": "Show staged changes instead of unstaged. Defaults to false."}
				}
			}`),
			run: func(ctx context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path   string `json:"path"`
					Staged bool   `json:"staged"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				args := []string{"diff"}
				if params.Staged {
					args = append(args, "--staged")
				}
				if params.Path != "" {
					if _, err := workspace.resolve(params.Path); err != nil {
						return "", err
					}
					args = append(args, "--", params.Path)
				}
				return workspace.git(ctx, args...)
			},
		},
		{
			Name:        "git_log",
			Description: "Show recent commit history, one line per commit.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"max_count": {"type": "integer", "description": "Number of commits to show. Defaults to 20."},
					"path": {"type": "string", "description": "Restrict history to this path"}
				}
			}`),
			run: func(ctx context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					MaxCount int    `json:"max_count"`
					Path     string `json:"path"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				if params.MaxCount <= 0 {
					params.MaxCount = 20
				}
				args := []string{"log", "--oneline", "--max-count=" + strconv.Itoa(params.MaxCount)}
				if params.Path != "" {
					if _, err := workspace.resolve(params.Path); err != nil {
						return "", err
					}
					args = append(args, "--", params.Path)
				}
				return workspace.git(ctx, args...)
			},
		},
	}
}

// git runs a git command targeting the workspace root and returns
// stdout. Stderr is captured separately and included in error
// messages on failure.
func (workspace *Workspace) git(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", workspace.root}, args...)

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w (stderr: %s)",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	output := stdout.String()
	if strings.TrimSpace(output) == "" {
		return "(no output)", nil
	}
	return output, nil
}
