// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import "github.com/mendhq/mend/lib/llm"

// Defaults for the manager's tunables. The compaction threshold is
// deliberately conservative: the estimator is approximate, so waiting
// for 90%+ risks overshooting the real window.
const (
	// defaultOutputReserve is headroom reserved for the model's own
	// output, subtracted from the usable budget.
	defaultOutputReserve = 4_096

	// defaultPruneProtect is the token weight of the most recent tool
	// outputs that pruning never touches.
	defaultPruneProtect = 40_000

	// defaultPruneMinimum is the smallest prunable token mass worth
	// acting on. Pruning has overhead and loses information; firing
	// for marginal gains is a bad trade.
	defaultPruneMinimum = 20_000

	// defaultCompactThreshold is the usage ratio at which compaction
	// is needed.
	defaultCompactThreshold = 0.75
)

// Options configures a [Manager]. The zero value of every field means
// "use the default", so callers set only what they override. Session
// configuration (environment variables, config file) is parsed by the
// caller — the manager takes explicit values, never reads the
// environment, and multiple managers with different budgets can
// coexist in one process.
type Options struct {
	// ContextLimit overrides model-based context window resolution
	// when positive.
	ContextLimit int

	// OutputReserve is the output-token headroom. Default 4096.
	OutputReserve int

	// PruneProtect is the protected recent-tool-output token floor.
	// Default 40000.
	PruneProtect int

	// PruneMinimum is the minimum worthwhile prunable token mass.
	// Default 20000.
	PruneMinimum int

	// CompactThreshold is the usage ratio that triggers compaction.
	// Default 0.75.
	CompactThreshold float64

	// Tokenizer injects the estimator's tokenizer capability. Nil
	// loads the best available via [TokenizerForModel]; use
	// [NoTokenizer] to force the character heuristic.
	Tokenizer Tokenizer
}

// Manager tracks the context-window budget for one model/session and
// provides threshold detection, pruning, and compaction. It never
// mutates a caller's message slice in place: pruning returns a new
// slice the caller must adopt as authoritative.
//
// Not safe for concurrent use; the agent loop owning a session is
// single-threaded.
type Manager struct {
	modelID      string
	systemPrompt string
	estimator    *Estimator

	contextLimit     int
	outputReserve    int
	pruneProtect     int
	pruneMinimum     int
	compactThreshold float64
}

// NewManager creates a manager for one model/session.
func NewManager(modelID, systemPrompt string, options Options) *Manager {
	tokenizer := options.Tokenizer
	if tokenizer == nil {
		tokenizer = TokenizerForModel(modelID)
	}

	manager := &Manager{
		modelID:          modelID,
		systemPrompt:     systemPrompt,
		estimator:        NewEstimatorWithTokenizer(modelID, tokenizer),
		contextLimit:     resolveContextLimit(modelID, options.ContextLimit),
		outputReserve:    defaultOutputReserve,
		pruneProtect:     defaultPruneProtect,
		pruneMinimum:     defaultPruneMinimum,
		compactThreshold: defaultCompactThreshold,
	}
	if options.OutputReserve > 0 {
		manager.outputReserve = options.OutputReserve
	}
	if options.PruneProtect > 0 {
		manager.pruneProtect = options.PruneProtect
	}
	if options.PruneMinimum > 0 {
		manager.pruneMinimum = options.PruneMinimum
	}
	if options.CompactThreshold > 0 {
		manager.compactThreshold = options.CompactThreshold
	}
	return manager
}

// Estimator returns the manager's token estimator.
func (manager *Manager) Estimator() *Estimator {
	return manager.estimator
}

// ContextLimit returns the resolved context window in tokens.
func (manager *Manager) ContextLimit() int {
	return manager.contextLimit
}

// UsageStats is a point-in-time snapshot of context-window usage,
// derived on demand and never stored.
type UsageStats struct {
	SystemTokens  int
	MessageTokens int
	OutputReserve int
	TotalTokens   int
	ContextLimit  int
	UsageRatio    float64
	UsagePercent  int
}

// UsageStats computes the usage snapshot for the given conversation.
// Pure function of its inputs; no side effects.
func (manager *Manager) UsageStats(messages []llm.Message) UsageStats {
	systemTokens := manager.estimator.EstimateTokens(manager.systemPrompt)
	messageTokens := manager.estimator.EstimateMessagesTokens(messages)
	totalTokens := systemTokens + messageTokens + manager.outputReserve
	ratio := float64(totalTokens) / float64(manager.contextLimit)

	return UsageStats{
		SystemTokens:  systemTokens,
		MessageTokens: messageTokens,
		OutputReserve: manager.outputReserve,
		TotalTokens:   totalTokens,
		ContextLimit:  manager.contextLimit,
		UsageRatio:    ratio,
		UsagePercent:  int(ratio * 100),
	}
}

// NeedsCompaction reports whether estimated usage has reached the
// compaction threshold.
func (manager *Manager) NeedsCompaction(messages []llm.Message) bool {
	return manager.UsageStats(messages).UsageRatio >= manager.compactThreshold
}
