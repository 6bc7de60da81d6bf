// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "strings"

// modelLimit pairs a model-id substring with its context window in
// tokens. Lookup is longest-match: a model id containing both "gpt-5"
// and "gpt-5.1" resolves through the longer key. An explicit slice
// (rather than a map) keeps the match semantics auditable and the
// table diffable.
type modelLimit struct {
	key   string
	limit int
}

// modelLimits holds per-model context windows from provider
// documentation as of mid-2026. Values are input-window sizes; the
// manager separately reserves output headroom.
var modelLimits = []modelLimit{
	// Anthropic Claude. All current models ship 200k windows.
	{"claude-3-5-sonnet", 200_000},
	{"claude-3-5-haiku", 200_000},
	{"claude-sonnet", 200_000},
	{"claude-opus", 200_000},
	{"claude-haiku", 200_000},

	// OpenAI. The gpt-5 entry tracks usable input (400k total minus
	// the 128k output ceiling); gpt-5.1 documentation reports the
	// full window as input-addressable.
	{"gpt-5.1", 400_000},
	{"gpt-5", 272_000},
	{"gpt-4-turbo", 128_000},
	{"gpt-4o", 128_000},
	{"gpt-4", 8_000}, // original GPT-4
	{"gpt-3.5-turbo", 16_385},

	// Google Gemini.
	{"gemini-pro", 32_000},
	{"gemini-1.5-pro", 1_000_000},
	{"gemini-1.5-flash", 1_000_000},
	{"gemini-2.0-flash", 1_048_576},
}

// modelFamilies is the coarse fallback consulted when no table key
// matches. First match wins, so more specific substrings come first
// ("gpt-4" before "gpt-3").
var modelFamilies = []modelLimit{
	{"claude", 200_000},
	{"gpt-4", 128_000},
	{"gpt-3", 16_385},
	{"gemini", 32_000},
	{"grok", 131_072},
	{"deepseek", 64_000},
	{"qwen", 131_072},
	{"llama", 128_000},
	{"mistral", 128_000},
	{"command", 128_000},
	{"kimi", 131_072},
	{"minimax", 1_000_000},
}

// defaultContextLimit is the conservative global default for unknown
// models: large enough for anything modern, small enough not to
// wildly overestimate capacity for older or local models.
const defaultContextLimit = 128_000

// resolveContextLimit maps a model identifier to its context window.
// Resolution order is a hard requirement: explicit override, then the
// longest matching key in [modelLimits], then family fallback, then
// the global default. Naive any-substring matching would misclassify
// versioned names ("gpt-5.1" contains "gpt-5").
func resolveContextLimit(modelID string, override int) int {
	if override > 0 {
		return override
	}

	lower := strings.ToLower(modelID)

	bestLimit, bestLength := 0, 0
	for _, entry := range modelLimits {
		if strings.Contains(lower, entry.key) && len(entry.key) > bestLength {
			bestLimit, bestLength = entry.limit, len(entry.key)
		}
	}
	if bestLength > 0 {
		return bestLimit
	}

	for _, family := range modelFamilies {
		if strings.Contains(lower, family.key) {
			return family.limit
		}
	}

	return defaultContextLimit
}
