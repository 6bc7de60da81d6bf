// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission gates destructive tool actions behind an
// interactive prompt. The gate is session-scoped: an "always" answer
// is remembered per tool for the rest of the session, and the whole
// gate can be disabled for unattended runs.
//
// The package decides WHETHER an action may run; what counts as
// destructive is the caller's call (the tool registry classifies its
// tools as mutating or not).
package permission

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Decision is the outcome of one permission request.
type Decision int

const (
	// Denied means the user rejected this action.
	Denied Decision = iota

	// Granted means the user approved this single action.
	Granted

	// GrantedAlways means the user approved this action and all
	// future actions by the same tool this session.
	GrantedAlways
)

// Gate prompts for permission before destructive actions. Not safe
// for concurrent use; one gate serves one interactive session.
type Gate struct {
	input  *bufio.Reader
	output io.Writer

	disabled bool

	// alwaysAllowed holds tools granted for the whole session.
	alwaysAllowed map[string]bool
}

// NewGate creates a gate reading answers from input and writing
// prompts to output.
func NewGate(input io.Reader, output io.Writer) *Gate {
	return &Gate{
		input:         bufio.NewReader(input),
		output:        output,
		alwaysAllowed: make(map[string]bool),
	}
}

// Disable turns the gate off: every request is granted without
// prompting. Used for unattended runs.
func (gate *Gate) Disable() {
	gate.disabled = true
}

// Request asks the user to approve one action. description is a short
// human-readable summary of what the tool is about to do (the command
// line, the file path). Returns true when the action may proceed.
//
// Reaching EOF on the input (the user hit Ctrl-D, or input is not a
// terminal) denies the action: an unanswerable prompt must fail
// closed.
func (gate *Gate) Request(toolName, description string) (bool, error) {
	if gate.disabled {
		return true, nil
	}
	if gate.alwaysAllowed[toolName] {
		return true, nil
	}

	fmt.Fprintf(gate.output, "\n%s wants to run:\n  %s\n", toolName, description)
	fmt.Fprintf(gate.output, "Allow? [y]es / [n]o / [a]lways for %s: ", toolName)

	decision, err := gate.readDecision()
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("permission: reading answer: %w", err)
	}

	if decision == GrantedAlways {
		gate.alwaysAllowed[toolName] = true
	}
	return decision != Denied, nil
}

// readDecision reads one answer line. Unrecognized answers re-prompt;
// an empty answer denies, matching the safe default.
func (gate *Gate) readDecision() (Decision, error) {
	for {
		line, err := gate.input.ReadString('\n')
		if err != nil && line == "" {
			return Denied, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return Granted, nil
		case "a", "all", "always":
			return GrantedAlways, nil
		case "n", "no", "":
			return Denied, nil
		default:
			fmt.Fprint(gate.output, "Please answer y, n, or a: ")
		}

		if err != nil {
			return Denied, err
		}
	}
}
