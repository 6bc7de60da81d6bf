// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// forbiddenCommands are privilege-escalation commands blocked unless
// the workspace explicitly allows them. The list is deliberately
// short: the permission layer gates shell execution as a whole, this
// is only the hard floor beneath it.
var forbiddenCommands = []string{"sudo", "su"}

// shellTools returns the shell execution tool set.
func shellTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name: "run_shell",
			Description: "Run a shell command in the workspace root and return its combined output. " +
				"Commands are killed after the configured timeout.",
			Mutating: true,
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"command": {"type": "string", "description": "Shell command to execute"}
				},
				"required": ["command"]
			}`),
			run: func(ctx context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Command string `json:"command"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				return workspace.runShell(ctx, params.Command)
			},
		},
	}
}

// blockedCommand returns the first forbidden command appearing in any
// position of the command line, or "". Compound commands are split on
// the common shell operators so "true && sudo rm" is still caught.
func blockedCommand(command string) string {
	replacer := strings.NewReplacer("&&", "\n", "||", "\n", ";", "\n", "|", "\n")
	for _, segment := range strings.Split(replacer.Replace(command), "\n") {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		for _, forbidden := range forbiddenCommands {
			if fields[0] == forbidden {
				return forbidden
			}
		}
	}
	return ""
}

func (workspace *Workspace) runShell(ctx context.Context, command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("empty command")
	}
	if !workspace.allowSudo {
		if blocked := blockedCommand(command); blocked != "" {
			return "", fmt.Errorf("command %q is blocked", blocked)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, workspace.shellTimeout)
	defer cancel()

	shellCommand := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	shellCommand.Dir = workspace.root

	var output bytes.Buffer
	shellCommand.Stdout = &output
	shellCommand.Stderr = &output

	err := shellCommand.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("command timed out after %s", workspace.shellTimeout)
	}

	text := output.String()
	var exitError *exec.ExitError
	switch {
	case err == nil:
		if text == "" {
			return "(no output)", nil
		}
		return text, nil
	case errors.As(err, &exitError):
		// Non-zero exit is a tool-level failure the model should see,
		// with whatever the command printed.
		return fmt.Sprintf("%s\n[exit status %d]", text, exitError.ExitCode()), nil
	default:
		return "", err
	}
}
