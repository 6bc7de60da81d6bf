// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools implements the agent's tool layer: a registry of
// named tools with JSON Schema definitions and sandboxed
// implementations for file access, search, shell execution, git
// queries, and web fetching.
//
// All file paths are confined beneath a workspace root; traversal
// outside it is rejected. Outputs are plain text capped at a
// configurable byte limit — downstream consumers (the LLM, the
// context manager) only ever see name + output string.
//
// Execution failures (file not found, pattern mismatch, non-zero
// exit) are reported in the output string with isError=true so the
// model can react to them; a non-nil error from [Registry.Call] means
// an infrastructure failure (unknown tool, invalid arguments).
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mendhq/mend/lib/llm"
)

// Tool is one callable tool: LLM-facing metadata plus the
// implementation.
type Tool struct {
	// Name is the identifier the model calls the tool by.
	Name string

	// Description is the LLM-facing description.
	Description string

	// Parameters is the JSON Schema for the tool's arguments.
	Parameters json.RawMessage

	// Mutating is true for tools that change state (file writes,
	// shell execution). The permission layer gates these.
	Mutating bool

	run func(ctx context.Context, arguments json.RawMessage) (string, error)
}

// Registry holds the tool catalog for one session.
type Registry struct {
	workspace *Workspace
	tools     []*Tool
	byName    map[string]*Tool
}

// NewRegistry builds the standard tool catalog operating in the given
// workspace.
func NewRegistry(workspace *Workspace) *Registry {
	registry := &Registry{
		workspace: workspace,
		byName:    make(map[string]*Tool),
	}

	registry.register(fileTools(workspace)...)
	registry.register(patchTools(workspace)...)
	registry.register(listingTools(workspace)...)
	registry.register(structureTools(workspace)...)
	registry.register(searchTools(workspace)...)
	registry.register(shellTools(workspace)...)
	registry.register(gitTools(workspace)...)
	registry.register(webTools(workspace)...)

	return registry
}

func (registry *Registry) register(tools ...*Tool) {
	for _, tool := range tools {
		registry.tools = append(registry.tools, tool)
		registry.byName[tool.Name] = tool
	}
}

// Definitions returns LLM tool definitions for the full catalog, in
// registration order.
func (registry *Registry) Definitions() []llm.ToolDefinition {
	definitions := make([]llm.ToolDefinition, 0, len(registry.tools))
	for _, tool := range registry.tools {
		definitions = append(definitions, llm.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return definitions
}

// Mutating reports whether the named tool changes state. Unknown
// tools report true so the permission layer fails closed.
func (registry *Registry) Mutating(name string) bool {
	tool, ok := registry.byName[name]
	if !ok {
		return true
	}
	return tool.Mutating
}

// Call executes a tool by name with the given JSON arguments. Returns
// the output text and whether the tool reported an execution failure.
// A non-nil error indicates an infrastructure failure, not a tool
// failure.
func (registry *Registry) Call(ctx context.Context, name string, arguments json.RawMessage) (output string, isError bool, err error) {
	tool, ok := registry.byName[name]
	if !ok {
		return "", false, fmt.Errorf("tools: unknown tool %q", name)
	}

	output, runErr := tool.run(ctx, arguments)
	if runErr != nil {
		return "Error: " + runErr.Error(), true, nil
	}
	return registry.workspace.capOutput(output), false, nil
}

// decodeArguments unmarshals tool-call arguments into a typed
// parameter struct. An empty arguments string decodes as all-defaults.
func decodeArguments(arguments json.RawMessage, into any) error {
	if len(arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(arguments, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// schema is a shorthand for embedding literal JSON Schema documents
// in tool definitions.
func schema(literal string) json.RawMessage {
	return json.RawMessage(literal)
}
