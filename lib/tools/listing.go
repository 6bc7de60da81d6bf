// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDir reports whether a directory should be excluded from
// listings and searches. VCS metadata and dependency trees dominate
// walk output while carrying no signal for the model.
func skipDir(name string) bool {
	switch name {
	case ".git", ".hg", ".svn", "node_modules", "__pycache__", ".venv", "venv":
		return true
	}
	return false
}

// listingTools returns the directory listing and file-finding tool set.
func listingTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name:        "list_files",
			Description: "List the files and directories at a path, one entry per line. Directories have a trailing slash.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Directory to list. Defaults to the workspace root."}
				}
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path string `json:"path"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				return workspace.listFiles(params.Path)
			},
		},
		{
			Name:        "tree",
			Description: "Show a directory tree with indentation, down to a depth limit.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Directory to show. Defaults to the workspace root."},
					"max_depth": {"type": "integer", "description": "Maximum depth to descend. Defaults to 3."},
					"show_hidden": {"type": "boolean", "description": "Include dotfiles. Defaults to false."}
				}
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path       string `json:"path"`
					MaxDepth   int    `json:"max_depth"`
					ShowHidden bool   `json:"show_hidden"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				if params.MaxDepth <= 0 {
					params.MaxDepth = 3
				}
				return workspace.tree(params.Path, params.MaxDepth, params.ShowHidden)
			},
		},
		{
			Name:        "find_files",
			Description: "Find files whose name matches a glob pattern (e.g. \"*.go\", \"config*\"), searching recursively.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string", "description": "Glob pattern matched against file names"},
					"path": {"type": "string", "description": "Directory to search from. Defaults to the workspace root."},
					"case_sensitive": {"type": "boolean", "description": "Match case-sensitively. Defaults to false."}
				},
				"required": ["pattern"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Pattern       string `json:"pattern"`
					Path          string `json:"path"`
					CaseSensitive bool   `json:"case_sensitive"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				return workspace.findFiles(params.Pattern, params.Path, params.CaseSensitive)
			},
		},
		{
			Name:        "get_file_info",
			Description: "Get metadata for files: size, modification time, type. Accepts a file, a directory, or a glob pattern.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File, directory, or glob pattern (e.g. \"lib/*.go\") relative to the workspace root"}
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
				return workspace.fileInfo(params.Path)
			},
		},
	}
}

func (workspace *Workspace) listFiles(path string) (string, error) {
	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", err
	}

	var lines []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	if len(lines) == 0 {
		return "(empty directory)", nil
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

func (workspace *Workspace) tree(path string, maxDepth int, showHidden bool) (string, error) {
	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(workspace.relative(resolved) + "/\n")

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > maxDepth {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			name := entry.Name()
			if !showHidden && strings.HasPrefix(name, ".") {
				continue
			}
			if entry.IsDir() && skipDir(name) {
				continue
			}
			indent := strings.Repeat("  ", depth)
			if entry.IsDir() {
				fmt.Fprintf(&builder, "%s%s/\n", indent, name)
				if err := walk(filepath.Join(dir, name), depth+1); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(&builder, "%s%s\n", indent, name)
			}
		}
		return nil
	}

	if err := walk(resolved, 1); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func (workspace *Workspace) findFiles(pattern, path string, caseSensitive bool) (string, error) {
	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}

	matchPattern := pattern
	if !caseSensitive {
		matchPattern = strings.ToLower(pattern)
	}
	// Validate the pattern up front so a malformed glob fails loudly
	// instead of silently matching nothing.
	if _, err := filepath.Match(matchPattern, ""); err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var matches []string
	err = filepath.WalkDir(resolved, func(walkPath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if entry.IsDir() {
			if skipDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		name := entry.Name()
		if !caseSensitive {
			name = strings.ToLower(name)
		}
		if ok, _ := filepath.Match(matchPattern, name); ok {
			matches = append(matches, workspace.relative(walkPath))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No files matching %q", pattern), nil
	}
	return strings.Join(matches, "\n"), nil
}

// fileInfo formats metadata for the files named by path: a single
// file, the files directly inside a directory, or a glob pattern
// expanded beneath the workspace root.
func (workspace *Workspace) fileInfo(path string) (string, error) {
	var files []string

	if strings.ContainsAny(path, "*?[") {
		if strings.Contains(path, "..") {
			return "", fmt.Errorf("path %q is outside the workspace", path)
		}
		matches, err := filepath.Glob(filepath.Join(workspace.root, path))
		if err != nil {
			return "", fmt.Errorf("invalid pattern %q: %w", path, err)
		}
		for _, match := range matches {
			if info, statErr := os.Stat(match); statErr == nil && !info.IsDir() {
				files = append(files, match)
			}
		}
		if len(files) == 0 {
			return fmt.Sprintf("No files matching %q", path), nil
		}
	} else {
		resolved, err := workspace.resolve(path)
		if err != nil {
			return "", err
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			entries, readErr := os.ReadDir(resolved)
			if readErr != nil {
				return "", readErr
			}
			for _, entry := range entries {
				if !entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
					files = append(files, filepath.Join(resolved, entry.Name()))
				}
			}
			if len(files) == 0 {
				return fmt.Sprintf("No files in directory %s", path), nil
			}
		} else {
			files = []string{resolved}
		}
	}
	sort.Strings(files)

	var builder strings.Builder
	fmt.Fprintf(&builder, "%-50s %10s  %-19s  %s\n", "Path", "Size", "Modified", "Type")
	builder.WriteString(strings.Repeat("-", 90) + "\n")
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			fmt.Fprintf(&builder, "%-50s ERROR: %v\n", workspace.relative(file), err)
			continue
		}
		fmt.Fprintf(&builder, "%-50s %10s  %s  %s\n",
			workspace.relative(file),
			fileSizeString(info.Size()),
			info.ModTime().Format("2006-01-02 15:04:05"),
			fileTypeString(file))
	}
	return strings.TrimSuffix(builder.String(), "\n"), nil
}

// fileSizeString renders a byte count in human units.
func fileSizeString(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%dB", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(size)/(1024*1024))
	}
}

// fileTypeString classifies a file as binary, a known MIME type, or
// text. Binary sniffing looks for NUL in the first bytes, same as the
// grep skip rule.
func fileTypeString(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return "unknown"
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := file.Read(head)
	if strings.ContainsRune(string(head[:n]), 0) {
		return "binary"
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(path)); mimeType != "" {
		return mimeType
	}
	return "text"
}
