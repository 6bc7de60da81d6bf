// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	llmcontext "github.com/mendhq/mend/lib/llm/context"
)

var (
	noticeStyle = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	usageOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	usageWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	usageHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func renderNotice(text string) string {
	return noticeStyle.Render("  " + text)
}

func renderError(text string) string {
	return errorStyle.Render("✗ " + text)
}

func renderToolCall(name, summary string) string {
	return toolStyle.Render(fmt.Sprintf("→ %s(%s)", name, summary))
}

// usageStyle picks a color for a usage ratio: green under half,
// yellow approaching the compaction threshold, red beyond it.
func usageStyle(ratio float64) lipgloss.Style {
	switch {
	case ratio < 0.5:
		return usageOKStyle
	case ratio < 0.75:
		return usageWarnStyle
	default:
		return usageHighStyle
	}
}

// renderPrompt is the input prompt: current usage percent and the
// prompt arrow.
func renderPrompt(stats llmcontext.UsageStats) string {
	usage := usageStyle(stats.UsageRatio).Render(fmt.Sprintf("%d%%", stats.UsagePercent))
	return fmt.Sprintf("[%s] ›", usage)
}

// renderStatus is the /status display: token accounting against the
// context limit.
func renderStatus(stats llmcontext.UsageStats, messageCount int) string {
	usage := usageStyle(stats.UsageRatio).Render(
		fmt.Sprintf("%d%% of %d tokens", stats.UsagePercent, stats.ContextLimit))
	return fmt.Sprintf(
		"context: %s\n  system %d · messages %d · output reserve %d · total %d\n  %d messages in conversation",
		usage,
		stats.SystemTokens, stats.MessageTokens, stats.OutputReserve, stats.TotalTokens,
		messageCount)
}
