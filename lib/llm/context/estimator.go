// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "github.com/mendhq/mend/lib/llm"

// charsPerTokenFallback is the character-ratio divisor used when no
// tokenizer is available. 3 chars per token is conservative for
// code-dense content — BPE tokenizers average 3.5-4.5 chars per token
// on English prose, less on symbol-heavy code. Conservative means we
// overestimate token counts, which triggers compaction slightly early
// rather than risking context overflow from the provider.
const charsPerTokenFallback = 3

// Per-message structural overhead constants. These are calibration
// knobs, not load-bearing logic: the additive structure (overhead
// scales with message complexity, not just content length) is what
// matters.
const (
	// roleOverheadTokens covers role markers and message framing.
	roleOverheadTokens = 4

	// toolCallOverheadTokens covers the id, type discriminator, and
	// function-object framing of one tool call.
	toolCallOverheadTokens = 10

	// toolCallIDOverheadTokens covers the tool_call_id back-reference
	// on tool-role messages.
	toolCallIDOverheadTokens = 5
)

// Estimator produces approximate token counts for strings, messages,
// and conversations. It uses a real tokenizer when one is available
// for the model family and a character-ratio heuristic otherwise.
// Estimates are always non-negative; no method ever fails.
type Estimator struct {
	modelID   string
	tokenizer Tokenizer
}

// NewEstimator creates an estimator for the given model, loading the
// best-available tokenizer via [TokenizerForModel].
func NewEstimator(modelID string) *Estimator {
	return NewEstimatorWithTokenizer(modelID, TokenizerForModel(modelID))
}

// NewEstimatorWithTokenizer creates an estimator with an explicitly
// injected tokenizer. Pass [NoTokenizer] (or nil) to force the
// character-heuristic path.
func NewEstimatorWithTokenizer(modelID string, tokenizer Tokenizer) *Estimator {
	return &Estimator{modelID: modelID, tokenizer: tokenizer}
}

// EstimateTokens returns the approximate token count of text.
// Returns 0 for empty input. Tokenizer failures degrade silently to
// the len/3 heuristic — never surfaced, never a panic.
func (estimator *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if estimator.tokenizer != nil {
		if ids, err := estimator.tokenizer.Encode(text); err == nil {
			return len(ids)
		}
	}
	return len(text) / charsPerTokenFallback
}

// EstimateMessageTokens returns the approximate token count of one
// message: role overhead, content, tool calls (framing plus name and
// arguments), the tool_call_id back-reference, and the name field.
func (estimator *Estimator) EstimateMessageTokens(message llm.Message) int {
	tokens := roleOverheadTokens
	tokens += estimator.EstimateTokens(message.Content)

	for _, call := range message.ToolCalls {
		tokens += toolCallOverheadTokens
		tokens += estimator.EstimateTokens(call.Name)
		tokens += estimator.EstimateTokens(call.Arguments)
	}

	if message.ToolCallID != "" {
		tokens += toolCallIDOverheadTokens
	}
	if message.Name != "" {
		tokens += estimator.EstimateTokens(message.Name)
	}

	return tokens
}

// EstimateMessagesTokens returns the summed estimate for a
// conversation. Called once per usage check; no memoization.
func (estimator *Estimator) EstimateMessagesTokens(messages []llm.Message) int {
	total := 0
	for i := range messages {
		total += estimator.EstimateMessageTokens(messages[i])
	}
	return total
}
