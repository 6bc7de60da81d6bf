// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"strings"
	"testing"

	"github.com/mendhq/mend/lib/llm"
)

// heuristicManager creates a manager on the deterministic character-
// heuristic path.
func heuristicManager(modelID, systemPrompt string, options Options) *Manager {
	options.Tokenizer = NoTokenizer
	return NewManager(modelID, systemPrompt, options)
}

func TestNewManager_Defaults(t *testing.T) {
	t.Parallel()

	manager := heuristicManager("gpt-4", "You are a helpful assistant.", Options{})

	if manager.ContextLimit() != 8_000 {
		t.Errorf("ContextLimit() = %d, want 8000 for gpt-4", manager.ContextLimit())
	}
	if manager.outputReserve != defaultOutputReserve {
		t.Errorf("outputReserve = %d, want %d", manager.outputReserve, defaultOutputReserve)
	}
	if manager.pruneProtect != defaultPruneProtect ||
		manager.pruneMinimum != defaultPruneMinimum {
		t.Errorf("prune floors = %d/%d, want %d/%d",
			manager.pruneProtect, manager.pruneMinimum,
			defaultPruneProtect, defaultPruneMinimum)
	}
	if manager.compactThreshold != defaultCompactThreshold {
		t.Errorf("compactThreshold = %v, want %v", manager.compactThreshold, defaultCompactThreshold)
	}
}

func TestUsageStats(t *testing.T) {
	t.Parallel()

	// System prompt: 30 chars / 3 = 10 tokens.
	manager := heuristicManager("gpt-4", strings.Repeat("s", 30), Options{})

	// One user message: role(4) + 300/3 = 104 tokens.
	messages := []llm.Message{llm.UserMessage(strings.Repeat("m", 300))}

	stats := manager.UsageStats(messages)

	if stats.SystemTokens != 10 {
		t.Errorf("SystemTokens = %d, want 10", stats.SystemTokens)
	}
	if stats.MessageTokens != 104 {
		t.Errorf("MessageTokens = %d, want 104", stats.MessageTokens)
	}
	wantTotal := 10 + 104 + defaultOutputReserve
	if stats.TotalTokens != wantTotal {
		t.Errorf("TotalTokens = %d, want %d", stats.TotalTokens, wantTotal)
	}
	if stats.ContextLimit != 8_000 {
		t.Errorf("ContextLimit = %d, want 8000", stats.ContextLimit)
	}
	wantRatio := float64(wantTotal) / 8_000
	if stats.UsageRatio != wantRatio {
		t.Errorf("UsageRatio = %v, want %v", stats.UsageRatio, wantRatio)
	}
	if stats.UsagePercent != int(wantRatio*100) {
		t.Errorf("UsagePercent = %d, want %d", stats.UsagePercent, int(wantRatio*100))
	}
}

func TestNeedsCompaction_BelowThreshold(t *testing.T) {
	t.Parallel()

	manager := heuristicManager("gpt-4", "Short prompt", Options{})
	messages := []llm.Message{
		llm.UserMessage("Hello!"),
		llm.AssistantMessage("Hi!"),
	}

	if manager.NeedsCompaction(messages) {
		t.Error("NeedsCompaction = true for a short conversation, want false")
	}
}

func TestNeedsCompaction_AboveThreshold(t *testing.T) {
	t.Parallel()

	manager := heuristicManager("gpt-4", "Short prompt", Options{})

	// gpt-4 resolves to an 8000-token limit. A 30000-char message is
	// ~10000 tokens at len/3, pushing usage well past the 0.75
	// threshold.
	messages := []llm.Message{llm.UserMessage(strings.Repeat("x", 30_000))}

	if !manager.NeedsCompaction(messages) {
		t.Error("NeedsCompaction = false after a 30k-char message on an 8k model, want true")
	}
}

func TestUsageStats_UnchangedByNoOpPrune(t *testing.T) {
	t.Parallel()

	manager := heuristicManager("gpt-4", "test", Options{})

	messages := []llm.Message{
		llm.UserMessage("Read a file"),
		{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "read_file", Arguments: `{"path":"main.go"}`},
			},
		},
		llm.ToolResultMessage("call_1", "read_file", "package main"),
	}

	before := manager.UsageStats(messages)

	// Total tool-output mass is far below the 20k minimum-prunable
	// floor: the prune is a no-op.
	pruned, saved := manager.PruneToolOutputs(messages, false)
	if saved != 0 {
		t.Fatalf("PruneToolOutputs saved %d tokens, want 0", saved)
	}

	after := manager.UsageStats(pruned)
	if before.TotalTokens != after.TotalTokens {
		t.Errorf("TotalTokens changed across no-op prune: %d != %d",
			before.TotalTokens, after.TotalTokens)
	}
}
