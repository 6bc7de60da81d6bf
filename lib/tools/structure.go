// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Structure outline limits.
const (
	// defaultMaxSymbols caps how many declarations code_structure
	// shows for one file.
	defaultMaxSymbols = 50

	// repoMapMaxFiles caps how many files get_repo_map covers.
	repoMapMaxFiles = 100

	// repoMapSymbolsPerFile keeps per-file outlines dense in the
	// repository map.
	repoMapSymbolsPerFile = 12

	// declarationLineWidth truncates long declaration lines.
	declarationLineWidth = 100
)

// languageByExtension maps file extensions to outline languages.
var languageByExtension = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "javascript",
	".tsx":  "javascript",
	".rs":   "rust",
	".rb":   "ruby",
	".java": "java",
}

// declarationPatterns match the lines an outline keeps: function,
// method, and type declarations. Line-pattern matching rather than
// parsing — an outline only needs declaration text and line numbers,
// and it must never fail on code that does not parse.
var declarationPatterns = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^(func |type \w+ (struct|interface)\b)`),
	"python":     regexp.MustCompile(`^\s*(async def |def |class )\w`),
	"javascript": regexp.MustCompile(`^\s*(export\s+)?(default\s+)?((async\s+)?function\s|class\s)|^\s*(export\s+)?const\s+\w+\s*=\s*(async\s+)?\(`),
	"rust":       regexp.MustCompile(`^\s*(pub(\([\w:]+\))?\s+)?((async\s+)?fn|struct|enum|trait|impl)\s`),
	"ruby":       regexp.MustCompile(`^\s*(def |class |module )\w`),
	"java":       regexp.MustCompile(`^\s*(public|protected|private)\s.*[({]\s*$`),
}

// structureTools returns the code outline tool set.
func structureTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name: "code_structure",
			Description: "Outline a code file: functions, methods, and type declarations with their line numbers. " +
				"Much cheaper than read_file for understanding a large file's layout.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "Code file to outline, relative to the workspace root"},
					"max_symbols": {"type": "integer", "description": "Maximum declarations to show. Defaults to 50."}
				},
				"required": ["path"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Path       string `json:"path"`
					MaxSymbols int    `json:"max_symbols"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				if params.MaxSymbols <= 0 {
					params.MaxSymbols = defaultMaxSymbols
				}
				return workspace.codeStructure(params.Path, params.MaxSymbols)
			},
		},
		{
			Name: "get_repo_map",
			Description: "Outline every recognized code file in the workspace in one compact map. " +
				"Cheaper than calling code_structure per file when orienting in an unfamiliar codebase.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"max_files": {"type": "integer", "description": "Maximum files to include. Defaults to 100."}
				}
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					MaxFiles int `json:"max_files"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				if params.MaxFiles <= 0 {
					params.MaxFiles = repoMapMaxFiles
				}
				return workspace.repoMap(params.MaxFiles)
			},
		},
	}
}

// codeStructure outlines one file. Files in languages without a
// declaration pattern get basic size information instead, which is
// still enough to decide between read_file and read_lines.
func (workspace *Workspace) codeStructure(path string, maxSymbols int) (string, error) {
	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	content := string(data)
	lineCount := strings.Count(content, "\n") + 1

	header := fmt.Sprintf("File: %s (%d lines, %s)", path, lineCount, fileSizeString(int64(len(data))))

	pattern, ok := declarationPatterns[languageByExtension[filepath.Ext(resolved)]]
	if !ok {
		return header + fmt.Sprintf("\n\nNo outline for this file type. Use read_lines(%q, start, end) for sections.", path), nil
	}

	declarations := outlineContent(content, pattern, maxSymbols)
	if len(declarations) == 0 {
		return header + "\n\n(no declarations found)", nil
	}
	return header + "\n\n" + strings.Join(declarations, "\n"), nil
}

// repoMap concatenates dense outlines for the first maxFiles
// recognized code files under the workspace root.
func (workspace *Workspace) repoMap(maxFiles int) (string, error) {
	var sections []string
	truncated := false

	err := filepath.WalkDir(workspace.root, func(walkPath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if entry.IsDir() {
			if walkPath == workspace.root {
				return nil
			}
			if skipDir(entry.Name()) || strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		pattern, ok := declarationPatterns[languageByExtension[filepath.Ext(walkPath)]]
		if !ok {
			return nil
		}
		if len(sections) >= maxFiles {
			truncated = true
			return fs.SkipAll
		}

		data, readErr := os.ReadFile(walkPath)
		if readErr != nil {
			return nil
		}
		declarations := outlineContent(string(data), pattern, repoMapSymbolsPerFile)
		if len(declarations) == 0 {
			return nil
		}
		sections = append(sections,
			workspace.relative(walkPath)+":\n"+strings.Join(declarations, "\n"))
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(sections) == 0 {
		return "No recognized code files in the workspace.", nil
	}
	output := strings.Join(sections, "\n\n")
	if truncated {
		output += fmt.Sprintf("\n\n[map truncated at %d files]", maxFiles)
	}
	return output, nil
}

// outlineContent returns "  Line N: declaration" entries for lines
// matching pattern, with an omitted-count marker past maxSymbols.
func outlineContent(content string, pattern *regexp.Regexp, maxSymbols int) []string {
	var declarations []string
	omitted := 0
	for i, line := range strings.Split(content, "\n") {
		if !pattern.MatchString(line) {
			continue
		}
		if len(declarations) >= maxSymbols {
			omitted++
			continue
		}
		text := strings.TrimRight(strings.TrimSuffix(strings.TrimSpace(line), "{"), " ")
		text = truncateToRune(text, declarationLineWidth)
		declarations = append(declarations, fmt.Sprintf("  Line %4d: %s", i+1, text))
	}
	if omitted > 0 {
		declarations = append(declarations, fmt.Sprintf("  [... %d more declarations omitted]", omitted))
	}
	return declarations
}
