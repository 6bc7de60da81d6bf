// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mendhq/mend/lib/llm"
	llmcontext "github.com/mendhq/mend/lib/llm/context"
	"github.com/mendhq/mend/lib/permission"
	"github.com/mendhq/mend/lib/tools"
)

// compactionLoopGuard is the minimum number of messages that must be
// added after a compaction before the next one is allowed. Compacting
// a conversation that is mostly the previous summary just burns an
// LLM call without freeing tokens.
const compactionLoopGuard = 3

// compactionKeepTurns is how many trailing complete turns survive a
// compaction alongside the summary. Keeping recent turns intact
// preserves tool call/result pairing and the immediate working state.
const compactionKeepTurns = 2

// session is one interactive agent session: the conversation, its
// context manager, and the loop that drives request→think→act→observe.
type session struct {
	provider llm.Provider
	registry *tools.Registry
	gate     *permission.Gate
	manager  *llmcontext.Manager

	model     string
	system    string
	maxTokens int

	// autoCompact enables threshold-triggered compaction; manual
	// /compact works regardless.
	autoCompact bool

	// proactiveThreshold is the usage ratio at which content-aware
	// pruning runs ahead of compaction. Zero disables it.
	proactiveThreshold float64

	input  io.Reader
	output io.Writer
	logger *slog.Logger

	messages []llm.Message

	// lastCompactionCount is len(messages) right after the previous
	// compaction, for the loop guard. Zero means never compacted.
	lastCompactionCount int
}

// runREPL reads user input line by line until /quit or EOF,
// dispatching slash commands and conversation turns.
func (agent *session) runREPL(ctx context.Context) error {
	scanner := bufio.NewScanner(agent.input)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprintf(agent.output, "\n%s ", agent.promptLine())
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := agent.runCommand(ctx, line); quit {
				return nil
			}
			continue
		}

		if err := agent.runTurn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Provider failures end the turn, not the session.
			fmt.Fprintln(agent.output, renderError("turn failed: "+err.Error()))
			agent.logger.Warn("turn failed", "error", err)
		}
	}
}

// runCommand dispatches one slash command. Returns true when the
// session should end.
func (agent *session) runCommand(ctx context.Context, line string) bool {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true
	case "/status":
		agent.printStatus()
	case "/prune":
		saved := agent.prune(true)
		fmt.Fprintln(agent.output, renderNotice(fmt.Sprintf("pruned ~%d tokens", saved)))
	case "/compact":
		agent.compact(ctx, true)
	default:
		fmt.Fprintln(agent.output, renderError("unknown command "+line))
	}
	return false
}

// runTurn processes one user request: send it to the model, execute
// any tool calls, feed results back, and repeat until the model
// answers in text. Context management runs after every round of tool
// results, so a single turn that reads many large files cannot
// overflow the window.
func (agent *session) runTurn(ctx context.Context, userInput string) error {
	agent.messages = append(agent.messages, llm.UserMessage(userInput))

	for {
		response, err := agent.callModel(ctx)
		if err != nil {
			return err
		}
		agent.messages = append(agent.messages, response.Message)

		if len(response.Message.ToolCalls) == 0 {
			return nil
		}

		for _, call := range response.Message.ToolCalls {
			agent.messages = append(agent.messages, agent.executeToolCall(ctx, call))
		}

		agent.manageContext(ctx)
	}
}

// callModel streams one completion, echoing text deltas to the
// terminal as they arrive, and returns the accumulated response.
func (agent *session) callModel(ctx context.Context) (llm.Response, error) {
	stream, err := agent.provider.Stream(ctx, llm.Request{
		Model:     agent.model,
		System:    agent.system,
		Messages:  agent.messages,
		Tools:     agent.registry.Definitions(),
		MaxTokens: agent.maxTokens,
	})
	if err != nil {
		return llm.Response{}, err
	}
	defer stream.Close()

	for {
		event, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return llm.Response{}, err
		}
		switch event.Type {
		case llm.EventTextDelta:
			fmt.Fprint(agent.output, event.Text)
		case llm.EventError:
			return llm.Response{}, event.Error
		}
	}
	fmt.Fprintln(agent.output)

	response := stream.Response()
	agent.logger.Debug("completion finished",
		"stop", response.StopReason,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
	)
	return response, nil
}

// executeToolCall runs one tool call through the permission gate and
// the registry, returning the tool-result message for the model.
func (agent *session) executeToolCall(ctx context.Context, call llm.ToolCall) llm.Message {
	fmt.Fprintln(agent.output, renderToolCall(call.Name, toolCallSummary(call)))

	if agent.registry.Mutating(call.Name) {
		allowed, err := agent.gate.Request(call.Name, toolCallSummary(call))
		if err != nil {
			agent.logger.Warn("permission prompt failed", "tool", call.Name, "error", err)
			allowed = false
		}
		if !allowed {
			fmt.Fprintln(agent.output, renderNotice("denied"))
			return llm.ToolResultMessage(call.ID, call.Name, "Operation denied by user.")
		}
	}

	output, isError, err := agent.registry.Call(ctx, call.Name, json.RawMessage(call.Arguments))
	if err != nil {
		agent.logger.Warn("tool dispatch failed", "tool", call.Name, "error", err)
		return llm.ToolResultMessage(call.ID, call.Name, "Error: "+err.Error())
	}
	if isError {
		agent.logger.Debug("tool reported error", "tool", call.Name)
	}
	return llm.ToolResultMessage(call.ID, call.Name, output)
}

// toolCallSummary extracts the human-relevant argument for display:
// the command for shell calls, the path or pattern otherwise.
func toolCallSummary(call llm.ToolCall) string {
	for _, key := range []string{"command", "path", "pattern", "url"} {
		if value := gjson.Get(call.Arguments, key).String(); value != "" {
			return value
		}
	}
	return call.Arguments
}

// manageContext keeps the conversation inside the window. Runs after
// every round of tool results: proactive content-aware pruning when
// usage crosses the early threshold, then threshold-triggered
// compaction.
func (agent *session) manageContext(ctx context.Context) {
	if agent.proactiveThreshold > 0 {
		stats := agent.manager.UsageStats(agent.messages)
		if stats.UsageRatio >= agent.proactiveThreshold {
			if saved := agent.prune(true); saved > 0 {
				fmt.Fprintln(agent.output, renderNotice(
					fmt.Sprintf("summarized old tool outputs (~%d tokens saved)", saved)))
			}
		}
	}

	if agent.autoCompact && agent.manager.NeedsCompaction(agent.messages) {
		agent.compact(ctx, false)
	}
}

// prune replaces the conversation with the manager's pruned copy and
// returns the estimated tokens saved.
func (agent *session) prune(intelligent bool) int {
	pruned, saved := agent.manager.PruneToolOutputs(agent.messages, intelligent)
	agent.messages = pruned
	if saved > 0 {
		agent.logger.Info("pruned tool outputs", "tokens_saved", saved, "intelligent", intelligent)
	}
	return saved
}

// compact reduces the conversation: simple pruning first, and when
// that is not enough, an LLM-generated summary spliced in place of
// the history. forced bypasses the needs-compaction check (manual
// /compact) but not the loop guard.
func (agent *session) compact(ctx context.Context, forced bool) {
	sinceLast := len(agent.messages) - agent.lastCompactionCount
	if agent.lastCompactionCount > 0 && sinceLast < compactionLoopGuard {
		fmt.Fprintln(agent.output, renderNotice(fmt.Sprintf(
			"skipping compaction: only %d messages since the last one", sinceLast)))
		return
	}

	before := agent.manager.UsageStats(agent.messages)

	// Phase 1: simple pruning may be enough to get back under the
	// threshold without spending an LLM call.
	agent.prune(false)
	if !forced && !agent.manager.NeedsCompaction(agent.messages) {
		after := agent.manager.UsageStats(agent.messages)
		fmt.Fprintln(agent.output, renderNotice(fmt.Sprintf(
			"context reduced by pruning (%.0f%% → %.0f%%)",
			before.UsageRatio*100, after.UsageRatio*100)))
		agent.lastCompactionCount = len(agent.messages)
		return
	}

	// Phase 2: full summarization.
	fmt.Fprintln(agent.output, renderNotice("compacting conversation..."))
	summaryMessage, _, err := agent.manager.CreateCompaction(ctx, agent.messages, agent.completeText)
	if err != nil {
		// Failure is surfaced but never kills the session: the user
		// can retry or keep working toward the hard limit.
		fmt.Fprintln(agent.output, renderError("compaction failed: "+err.Error()))
		agent.logger.Warn("compaction failed", "error", err)
		return
	}

	agent.messages = spliceCompaction(agent.messages, summaryMessage, compactionKeepTurns)
	agent.lastCompactionCount = len(agent.messages)

	after := agent.manager.UsageStats(agent.messages)
	fmt.Fprintln(agent.output, renderNotice(fmt.Sprintf(
		"compaction complete: %d → %d tokens (%.0f%% → %.0f%%)",
		before.TotalTokens, after.TotalTokens,
		before.UsageRatio*100, after.UsageRatio*100)))
	agent.logger.Info("compacted conversation",
		"tokens_before", before.TotalTokens,
		"tokens_after", after.TotalTokens,
		"messages", len(agent.messages),
	)
}

// completeText runs one blocking completion for compaction and
// returns the response text.
func (agent *session) completeText(ctx context.Context, messages []llm.Message) (string, error) {
	response, err := agent.provider.Complete(ctx, llm.Request{
		Model:     agent.model,
		System:    agent.system,
		Messages:  messages,
		MaxTokens: agent.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return response.Message.Content, nil
}

// spliceCompaction replaces the conversation with the summary message
// followed by the last keepTurns complete turns. A turn starts at a
// user message; walking back from the end to the keepTurns-th user
// message keeps assistant/tool message groups intact, so no tool
// response loses its call.
func spliceCompaction(messages []llm.Message, summary llm.Message, keepTurns int) []llm.Message {
	turnStart := len(messages)
	turnsFound := 0
	for i := len(messages) - 1; i >= 0 && turnsFound < keepTurns; i-- {
		if messages[i].Role == llm.RoleUser && messages[i].ToolCallID == "" {
			turnStart = i
			turnsFound++
		}
	}

	spliced := []llm.Message{summary}
	return append(spliced, messages[turnStart:]...)
}

func (agent *session) printStatus() {
	stats := agent.manager.UsageStats(agent.messages)
	fmt.Fprintln(agent.output, renderStatus(stats, len(agent.messages)))
}

// promptLine renders the input prompt with current usage.
func (agent *session) promptLine() string {
	stats := agent.manager.UsageStats(agent.messages)
	return renderPrompt(stats)
}
