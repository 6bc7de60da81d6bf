// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/mendhq/mend/lib/llm"
)

// validToolName matches tool-call function names that providers
// accept: alphanumerics, underscore, and hyphen only. Models
// occasionally hallucinate names with dots or spaces, which at least
// one downstream provider rejects for the whole request.
var validToolName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// PruneToolOutputs reclaims token budget by degrading old tool
// outputs while preserving recent ones verbatim. It returns a new
// message slice (the input is never mutated) and the estimated tokens
// saved; the caller must adopt the returned slice as authoritative.
//
// Candidate selection walks the conversation backward, accumulating
// the token weight of tool-role messages. Tool outputs inside the
// protected floor (the most recent ~40k tokens' worth) are kept
// verbatim; everything older is a candidate. Candidacy depends only
// on token-weighted recency, never on message count. If the total
// candidate mass is below the minimum-prunable floor the conversation
// is returned with zero tokens saved — pruning has overhead and must
// not fire for marginal gains.
//
// With intelligent true, each pruned output is replaced by a
// tool-specific summary that keeps that tool's highest-value signal
// (see summarizeToolOutput); otherwise a short marker stating the
// original length is used.
//
// Regardless of whether any output was pruned, the result is
// sanitized: assistant tool calls with invalid names are removed and
// any tool responses they orphan are dropped, so the returned
// conversation is always structurally valid for replay.
func (manager *Manager) PruneToolOutputs(messages []llm.Message, intelligent bool) ([]llm.Message, int) {
	result := slices.Clone(messages)

	// Backward walk: protect the most recent tool outputs by token
	// weight, collect everything older as candidates.
	protectedTokens := 0
	prunableTokens := 0
	candidates := make(map[int]bool)

	for i := len(result) - 1; i >= 0; i-- {
		if result[i].Role != llm.RoleTool {
			continue
		}
		tokens := manager.estimator.EstimateMessageTokens(result[i])
		if protectedTokens < manager.pruneProtect {
			protectedTokens += tokens
			continue
		}
		candidates[i] = true
		prunableTokens += tokens
	}

	if prunableTokens < manager.pruneMinimum {
		return sanitizeToolCalls(result), 0
	}

	tokensSaved := 0
	for i := range result {
		if !candidates[i] {
			continue
		}

		original := result[i].Content
		var replacement string
		if intelligent {
			replacement = summarizeToolOutput(result[i].Name, original, toolCallArguments(result, i))
		} else {
			replacement = fmt.Sprintf("[Tool output pruned - was %s chars]", groupDigits(len(original)))
		}
		result[i].Content = replacement

		tokensSaved += manager.estimator.EstimateTokens(original) -
			manager.estimator.EstimateTokens(replacement)
	}

	return sanitizeToolCalls(result), tokensSaved
}

// toolCallArguments finds the arguments string of the tool call that
// produced the tool-role message at index. Summarizers use it to
// recover the invoked command or search pattern.
func toolCallArguments(messages []llm.Message, index int) string {
	callID := messages[index].ToolCallID
	if callID == "" {
		return ""
	}
	for i := index - 1; i >= 0; i-- {
		if messages[i].Role != llm.RoleAssistant {
			continue
		}
		for _, call := range messages[i].ToolCalls {
			if call.ID == callID {
				return call.Arguments
			}
		}
	}
	return ""
}

// sanitizeToolCalls enforces the structural invariant: assistant
// tool calls whose names fail the provider validity pattern are
// removed (valid siblings untouched), and tool-role responses whose
// tool_call_id no longer resolves to a surviving call are dropped.
// LLM-generated names are untrusted input; repair beats rejection.
func sanitizeToolCalls(messages []llm.Message) []llm.Message {
	removedCallIDs := make(map[string]bool)

	for i := range messages {
		if messages[i].Role != llm.RoleAssistant || len(messages[i].ToolCalls) == 0 {
			continue
		}
		var kept []llm.ToolCall
		for _, call := range messages[i].ToolCalls {
			if validToolName.MatchString(call.Name) {
				kept = append(kept, call)
			} else {
				removedCallIDs[call.ID] = true
			}
		}
		if len(kept) != len(messages[i].ToolCalls) {
			messages[i].ToolCalls = kept
		}
	}

	if len(removedCallIDs) == 0 {
		return messages
	}

	sanitized := messages[:0]
	for _, message := range messages {
		if message.Role == llm.RoleTool && removedCallIDs[message.ToolCallID] {
			continue
		}
		sanitized = append(sanitized, message)
	}
	return sanitized
}

// groupDigits formats n with thousands separators ("12,345").
func groupDigits(n int) string {
	digits := strconv.Itoa(n)
	if len(digits) <= 3 {
		return digits
	}
	var out []byte
	for i, digit := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, digit)
	}
	return string(out)
}
