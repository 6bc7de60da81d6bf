// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// grepMaxResults is the default cap on matches returned by one grep
// call. Keeps a broad pattern from dumping a whole repository into the
// conversation.
const grepMaxResults = 100

// searchTools returns the content search tool set.
func searchTools(workspace *Workspace) []*Tool {
	return []*Tool{
		{
			Name:        "grep",
			Description: "Search file contents with a regular expression. Returns path:line: matches.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string", "description": "Regular expression to search for"},
					"path": {"type": "string", "description": "Directory or file to search. Defaults to the workspace root."},
					"file_glob": {"type": "string", "description": "Only search files whose name matches this glob (e.g. \"*.go\")"},
					"case_sensitive": {"type": "boolean", "description": "Match case-sensitively. Defaults to false."},
					"max_results": {"type": "integer", "description": "Cap on returned matches. Defaults to 100."}
				},
				"required": ["pattern"]
			}`),
			run: func(_ context.Context, arguments json.RawMessage) (string, error) {
				var params struct {
					Pattern       string `json:"pattern"`
					Path          string `json:"path"`
					FileGlob      string `json:"file_glob"`
					CaseSensitive bool   `json:"case_sensitive"`
					MaxResults    int    `json:"max_results"`
				}
				if err := decodeArguments(arguments, &params); err != nil {
					return "", err
				}
				if params.MaxResults <= 0 {
					params.MaxResults = grepMaxResults
				}
				return workspace.grep(params.Pattern, params.Path, params.FileGlob,
					params.CaseSensitive, params.MaxResults)
			},
		},
	}
}

func (workspace *Workspace) grep(pattern, path, fileGlob string, caseSensitive bool, maxResults int) (string, error) {
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + expr
	}
	matcher, err := regexp.Compile(expr)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	resolved, err := workspace.resolve(path)
	if err != nil {
		return "", err
	}

	var matches []string
	truncated := false
	err = filepath.WalkDir(resolved, func(walkPath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if entry.IsDir() {
			if skipDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if fileGlob != "" {
			if ok, _ := filepath.Match(fileGlob, entry.Name()); !ok {
				return nil
			}
		}

		found, err := grepFile(walkPath, workspace.relative(walkPath), matcher,
			maxResults-len(matches))
		if err != nil {
			return nil // unreadable or binary files are skipped
		}
		matches = append(matches, found...)
		if len(matches) >= maxResults {
			truncated = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No matches for %q", pattern), nil
	}
	output := strings.Join(matches, "\n")
	if truncated {
		output += fmt.Sprintf("\n[results capped at %d matches]", maxResults)
	}
	return output, nil
}

// grepFile scans one file line by line, returning up to limit
// "path:line: text" matches. Files with NUL bytes in the first line
// are treated as binary and skipped.
func grepFile(path, displayPath string, matcher *regexp.Regexp, limit int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var matches []string
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if lineNumber == 1 && strings.ContainsRune(line, 0) {
			return nil, nil
		}
		if matcher.MatchString(line) {
			matches = append(matches, fmt.Sprintf("%s:%d: %s", displayPath, lineNumber, line))
			if len(matches) >= limit {
				break
			}
		}
	}
	// Scanner errors (oversized lines in minified files) end the scan
	// but keep the matches already found.
	return matches, nil
}
