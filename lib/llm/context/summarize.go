// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Tool-specific summarization. Each strategy preserves a different
// high-value signal, trading completeness for density in inverse
// proportion to how re-derivable the output is: a directory listing
// can be re-fetched cheaply, a grep match list cannot be perfectly
// reconstructed, so grep keeps a larger verbatim sample.

// summarizer reduces one tool output to a dense summary. arguments is
// the raw JSON arguments string of the originating tool call (may be
// empty when the call could not be located).
type summarizer func(content, arguments string) string

// toolSummarizers maps tool-name sets to strategies, first match
// wins. An explicit ordered table rather than a switch keeps the
// dispatch auditable and testable in isolation.
var toolSummarizers = []struct {
	tools     []string
	summarize summarizer
}{
	{[]string{"list_files", "tree", "find_files", "get_repo_map"}, summarizeListing},
	{[]string{"git_status"}, summarizeGitStatus},
	{[]string{"run_shell"}, summarizeShellOutput},
	{[]string{"grep", "web_search"}, summarizeSearchResults},
	{[]string{"read_file", "read_lines"}, summarizeFileContent},
	{[]string{"code_structure", "git_diff", "git_log"}, summarizeStructural},
}

// summarizeToolOutput dispatches to the strategy registered for
// toolName. Unrecognized tools get the lowest-information generic
// marker.
func summarizeToolOutput(toolName, content, arguments string) string {
	for _, entry := range toolSummarizers {
		for _, name := range entry.tools {
			if name == toolName {
				return entry.summarize(content, arguments)
			}
		}
	}
	return fmt.Sprintf("[pruned: %d chars]", len(content))
}

// listingSampleCount is how many entry names a pruned listing keeps.
const listingSampleCount = 5

// summarizeListing reduces a file/directory listing to a count plus a
// few sample names. Full enumerations are low-value once stale — the
// listing can be re-fetched cheaply if needed again.
func summarizeListing(content, _ string) string {
	entries := nonEmptyLines(content)
	if len(entries) == 0 {
		return "[pruned: empty listing]"
	}

	samples := entries
	if len(samples) > listingSampleCount {
		samples = samples[:listingSampleCount]
	}
	for i := range samples {
		samples[i] = strings.TrimSpace(samples[i])
	}

	return fmt.Sprintf("%d files (pruned listing; sample: %s, ...)",
		len(entries), strings.Join(samples, ", "))
}

// summarizeGitStatus reduces status output to modified/untracked/
// staged counts. Handles both porcelain XY codes and long-format
// "modified:" lines.
func summarizeGitStatus(content, _ string) string {
	var modified, untracked, staged int
	for _, line := range nonEmptyLines(content) {
		switch {
		case strings.HasPrefix(line, "??") || strings.Contains(line, "untracked"):
			untracked++
		case strings.Contains(line, "modified:") || (len(line) > 1 && line[1] == 'M'):
			modified++
		case strings.Contains(line, "new file:") || (len(line) > 0 && (line[0] == 'A' || line[0] == 'M')):
			staged++
		}
	}
	return fmt.Sprintf("[git status pruned: %d modified, %d untracked, %d staged]",
		modified, untracked, staged)
}

// shellNumberPattern finds numeric tokens in shell output: counts,
// exit codes, durations, test tallies — usually the part worth keeping.
var shellNumberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

// summarizeShellOutput keeps the command text, a success/failure
// signal, and the first few numeric tokens from the output.
func summarizeShellOutput(content, arguments string) string {
	command := gjson.Get(arguments, "command").String()
	if command == "" {
		command = "(unknown command)"
	}

	lower := strings.ToLower(content)
	signal := "succeeded"
	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") ||
		strings.Contains(lower, "non-zero exit") {
		signal = "failed"
	}

	numbers := shellNumberPattern.FindAllString(content, 5)
	summary := fmt.Sprintf("[shell output pruned: `%s` %s", command, signal)
	if len(numbers) > 0 {
		summary += "; numbers seen: " + strings.Join(numbers, ", ")
	}
	return summary + "]"
}

// searchSampleCount is how many matches a pruned search result keeps
// verbatim. Larger than the listing sample because a match list
// cannot be perfectly reconstructed by re-running the search against
// a changed tree.
const searchSampleCount = 3

// summarizeSearchResults keeps the match count and the first matches
// verbatim, noting how many were dropped.
func summarizeSearchResults(content, _ string) string {
	matches := nonEmptyLines(content)
	if len(matches) == 0 {
		return "[pruned: no matches]"
	}

	kept := matches
	if len(kept) > searchSampleCount {
		kept = kept[:searchSampleCount]
	}

	summary := fmt.Sprintf("%d matches (pruned):\n%s", len(matches), strings.Join(kept, "\n"))
	if remainder := len(matches) - len(kept); remainder > 0 {
		summary += fmt.Sprintf("\n[... %d more matches omitted]", remainder)
	}
	return summary
}

// File-content summarization window sizes.
const (
	fileContentEdgeLines = 10
	fileContentEdgeChars = 500
)

// summarizeFileContent keeps the first and last lines of a file read
// verbatim with an omitted-count marker between them. Content that is
// large but has very few lines (minified or binary-like) falls back
// to character windows, since line-based trimming would keep nearly
// everything.
func summarizeFileContent(content, _ string) string {
	lines := strings.Split(content, "\n")

	if len(lines) <= 2*fileContentEdgeLines {
		if len(content) <= 2*fileContentEdgeChars {
			return content
		}
		// Few lines but lots of characters: minified or binary-like.
		omitted := len(content) - 2*fileContentEdgeChars
		return headBytes(content, fileContentEdgeChars) +
			fmt.Sprintf("\n[... %d chars omitted ...]\n", omitted) +
			tailBytes(content, fileContentEdgeChars)
	}

	head := lines[:fileContentEdgeLines]
	tail := lines[len(lines)-fileContentEdgeLines:]
	omitted := len(lines) - 2*fileContentEdgeLines

	return strings.Join(head, "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(tail, "\n")
}

// structuralPrefixChars is the prefix budget for diff-like output.
const structuralPrefixChars = 1_000

// summarizeStructural truncates structural/diff-like output to a
// fixed prefix with an omitted-count suffix. The head of a diff or
// log carries the most recent (most relevant) hunks and entries.
func summarizeStructural(content, _ string) string {
	if len(content) <= structuralPrefixChars {
		return content
	}
	return headBytes(content, structuralPrefixChars) +
		fmt.Sprintf("\n[... %d more chars omitted]", len(content)-structuralPrefixChars)
}

// headBytes returns a prefix of at most n bytes, shortened as needed
// so a multi-byte rune is never split. Replacements go back to the
// provider, which rejects invalid UTF-8.
func headBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// tailBytes returns a suffix of at most n bytes on a rune boundary.
func tailBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// nonEmptyLines splits content into lines, dropping blank ones.
func nonEmptyLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
