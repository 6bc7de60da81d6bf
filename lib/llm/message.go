// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation. Content is plain text;
// assistant messages may additionally carry ToolCalls, and tool-role
// messages carry the ToolCallID back-reference plus the Name of the
// tool that produced the output.
//
// Structural invariant: every tool-role message's ToolCallID must
// reference a ToolCall emitted by a preceding assistant message.
// Code that removes a tool call must also remove the corresponding
// tool response, or the conversation is invalid for replay to a
// provider.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`

	// Compaction is set on synthetic summary messages produced by
	// conversation compaction. Local bookkeeping only — never
	// serialized to a provider.
	Compaction *Compaction `json:"-"`
}

// ToolCall is the canonical tool invocation record. The wire format
// nests name and arguments inside a "function" object; decoding
// flattens it here so internal logic never sees the nesting.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Compaction tags a synthetic assistant message that replaced a
// summarized conversation prefix.
type Compaction struct {
	// OriginalMessageCount is how many messages the summary replaced.
	OriginalMessageCount int

	// Timestamp records when the compaction was performed.
	Timestamp time.Time
}

// ToolDefinition describes a callable tool advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON Schema for the tool's arguments.
	Parameters json.RawMessage
}

// UserMessage creates a user-role message with text content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant-role message with text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolResultMessage creates a tool-role message carrying the output of
// the tool call identified by callID.
func ToolResultMessage(callID, toolName, output string) Message {
	return Message{
		Role:       RoleTool,
		Content:    output,
		ToolCallID: callID,
		Name:       toolName,
	}
}
