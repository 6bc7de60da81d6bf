// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "testing"

func TestResolveContextLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		modelID string
		want    int
	}{
		// Exact table matches.
		{"anthropic/claude-sonnet-4", 200_000},
		{"openai/gpt-4o", 128_000},
		{"openai/gpt-4o-mini", 128_000},
		{"openai/gpt-3.5-turbo", 16_385},
		{"gpt-4", 8_000},
		{"GPT-4", 8_000}, // case-insensitive

		// Family fallback for ids not in the table.
		{"x-ai/grok-4-fast", 131_072},
		{"deepseek/deepseek-chat-v3", 64_000},
		{"qwen/qwen-2.5-coder", 131_072},
		{"moonshot/kimi-k2", 131_072},
		{"cohere/command-r-plus", 128_000},

		// Unknown model: conservative global default.
		{"unknown/model", 128_000},
		{"", 128_000},
	}

	for _, test := range tests {
		if got := resolveContextLimit(test.modelID, 0); got != test.want {
			t.Errorf("resolveContextLimit(%q) = %d, want %d", test.modelID, got, test.want)
		}
	}
}

func TestResolveContextLimit_LongestMatchWins(t *testing.T) {
	t.Parallel()

	// "openai/gpt-5.1" contains both the "gpt-5" and "gpt-5.1" keys.
	// Longest-match-first must resolve to the gpt-5.1 limit; naive
	// any-substring matching would stop at whichever key came first.
	if got := resolveContextLimit("openai/gpt-5.1", 0); got != 400_000 {
		t.Errorf("gpt-5.1 resolved to %d, want 400000 (gpt-5.1 entry)", got)
	}
	if got := resolveContextLimit("openai/gpt-5", 0); got != 272_000 {
		t.Errorf("gpt-5 resolved to %d, want 272000 (gpt-5 entry)", got)
	}
}

func TestResolveContextLimit_OverrideWins(t *testing.T) {
	t.Parallel()

	// An explicit override is used verbatim, even over a table match.
	if got := resolveContextLimit("gpt-4o", 9_999); got != 9_999 {
		t.Errorf("override resolved to %d, want 9999", got)
	}
}
