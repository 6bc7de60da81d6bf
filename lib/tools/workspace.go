// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Default workspace limits.
const (
	// defaultMaxFileSize caps how much of a file read_file returns.
	// Large enough for real source files, small enough that one read
	// cannot flood the context window.
	defaultMaxFileSize = 500 * 1024

	// defaultMaxOutputBytes caps every tool's output text.
	defaultMaxOutputBytes = 256 * 1024

	// defaultShellTimeout bounds run_shell execution.
	defaultShellTimeout = 60 * time.Second
)

// WorkspaceOptions tunes workspace limits. Zero values select the
// defaults.
type WorkspaceOptions struct {
	MaxFileSize    int
	MaxOutputBytes int
	ShellTimeout   time.Duration

	// AllowSudo disables the privilege-escalation command block.
	AllowSudo bool
}

// Workspace is the directory all tools operate in, together with the
// execution limits they share. All file paths resolve relative to the
// root and must stay beneath it.
type Workspace struct {
	root           string
	maxFileSize    int
	maxOutputBytes int
	shellTimeout   time.Duration
	allowSudo      bool
}

// NewWorkspace creates a workspace rooted at root. The root is
// resolved to an absolute path once; relative tool paths resolve
// against it.
func NewWorkspace(root string, options WorkspaceOptions) (*Workspace, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("tools: resolving workspace root: %w", err)
	}

	if options.MaxFileSize == 0 {
		options.MaxFileSize = defaultMaxFileSize
	}
	if options.MaxOutputBytes == 0 {
		options.MaxOutputBytes = defaultMaxOutputBytes
	}
	if options.ShellTimeout == 0 {
		options.ShellTimeout = defaultShellTimeout
	}

	return &Workspace{
		root:           absRoot,
		maxFileSize:    options.MaxFileSize,
		maxOutputBytes: options.MaxOutputBytes,
		shellTimeout:   options.ShellTimeout,
		allowSudo:      options.AllowSudo,
	}, nil
}

// Root returns the absolute workspace root.
func (workspace *Workspace) Root() string {
	return workspace.root
}

// resolve converts a tool-supplied path into an absolute path beneath
// the workspace root. Absolute paths and ".." traversal that escape
// the root are rejected. An empty path resolves to the root itself.
func (workspace *Workspace) resolve(path string) (string, error) {
	if path == "" || path == "." {
		return workspace.root, nil
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspace.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	relative, err := filepath.Rel(workspace.root, candidate)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return candidate, nil
}

// relative converts an absolute path back to workspace-relative form
// for display in tool output.
func (workspace *Workspace) relative(path string) string {
	relative, err := filepath.Rel(workspace.root, path)
	if err != nil {
		return path
	}
	return relative
}

// capOutput truncates output to the workspace byte limit, appending a
// truncation marker when anything was cut.
func (workspace *Workspace) capOutput(output string) string {
	if len(output) <= workspace.maxOutputBytes {
		return output
	}
	return truncateToRune(output, workspace.maxOutputBytes) +
		fmt.Sprintf("\n[output truncated: %d of %d bytes shown]",
			workspace.maxOutputBytes, len(output))
}

// truncateToRune shortens s to at most n bytes without splitting a
// multi-byte rune. Tool output feeds back into provider requests,
// which reject invalid UTF-8.
func truncateToRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
