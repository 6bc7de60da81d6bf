// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

// Package context manages the context-window budget for LLM agent
// sessions: token estimation, usage-threshold detection, tool-output
// pruning, and conversation compaction.
//
// The central type is [Manager], owned one-per-session. The agent
// loop feeds it the full message history after each turn; the manager
// answers "how full is the window" ([Manager.UsageStats]) and "do I
// need to act" ([Manager.NeedsCompaction]), and provides the two
// remediation primitives: [Manager.PruneToolOutputs], which degrades
// old tool outputs in place, and [Manager.CreateCompaction], which
// collapses the whole conversation into one LLM-generated summary
// message. Policy — when to prune versus compact, and splicing the
// summary into the history — stays with the caller.
//
// Token counting is approximate by design. [Estimator] uses a real
// tokenizer when one can be loaded for the model family and degrades
// silently to a character-ratio heuristic otherwise. The heuristic
// deliberately overestimates: triggering compaction slightly early is
// recoverable, overflowing the provider's context window is not.
//
// Pruning preserves the conversation's structural invariant: every
// surviving tool-role message still references a tool call on a
// preceding assistant message.
package context
