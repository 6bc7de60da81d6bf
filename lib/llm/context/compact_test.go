// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mendhq/mend/lib/llm"
)

func TestCreateCompaction(t *testing.T) {
	t.Parallel()

	manager := heuristicManager("gpt-4", "", Options{})
	conversation := []llm.Message{
		llm.UserMessage("add a retry loop to the fetcher"),
		llm.AssistantMessage("Done, retries three times with backoff."),
	}

	before := time.Now()
	var requested []llm.Message
	message, summary, err := manager.CreateCompaction(context.Background(), conversation,
		func(_ context.Context, messages []llm.Message) (string, error) {
			requested = messages
			return "Added a retry loop with backoff to the fetcher.", nil
		})
	if err != nil {
		t.Fatalf("CreateCompaction: %v", err)
	}

	// The completion request is the conversation plus one appended user
	// message carrying the summarization instruction.
	if len(requested) != len(conversation)+1 {
		t.Fatalf("completion saw %d messages, want %d", len(requested), len(conversation)+1)
	}
	last := requested[len(requested)-1]
	if last.Role != llm.RoleUser {
		t.Errorf("appended instruction role = %q, want user", last.Role)
	}
	if !strings.Contains(last.Content, "summarizing a coding session") {
		t.Errorf("appended instruction missing prompt text: %q", last.Content)
	}

	if message.Role != llm.RoleAssistant {
		t.Errorf("summary message role = %q, want assistant", message.Role)
	}
	if !strings.HasPrefix(message.Content, compactionMarker) {
		t.Errorf("summary message %q missing marker prefix", message.Content)
	}
	if !strings.Contains(message.Content, summary) {
		t.Errorf("summary message %q does not carry the summary text %q", message.Content, summary)
	}
	if message.Compaction == nil {
		t.Fatal("summary message missing compaction metadata")
	}
	if message.Compaction.OriginalMessageCount != len(conversation) {
		t.Errorf("OriginalMessageCount = %d, want %d",
			message.Compaction.OriginalMessageCount, len(conversation))
	}
	if message.Compaction.Timestamp.Before(before) {
		t.Errorf("compaction timestamp %v predates the call", message.Compaction.Timestamp)
	}
}

func TestCreateCompaction_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	manager := heuristicManager("gpt-4", "", Options{})
	conversation := []llm.Message{
		llm.UserMessage("first"),
		llm.AssistantMessage("second"),
	}

	_, _, err := manager.CreateCompaction(context.Background(), conversation,
		func(_ context.Context, _ []llm.Message) (string, error) {
			return "summary", nil
		})
	if err != nil {
		t.Fatalf("CreateCompaction: %v", err)
	}

	if len(conversation) != 2 {
		t.Fatalf("input slice length changed: %d", len(conversation))
	}
	if conversation[1].Content != "second" {
		t.Errorf("input message mutated: %q", conversation[1].Content)
	}
}

func TestCreateCompaction_ErrorPropagates(t *testing.T) {
	t.Parallel()

	manager := heuristicManager("gpt-4", "", Options{})
	sentinel := errors.New("provider unavailable")

	_, _, err := manager.CreateCompaction(context.Background(),
		[]llm.Message{llm.UserMessage("hello")},
		func(_ context.Context, _ []llm.Message) (string, error) {
			return "", sentinel
		})

	// The completion error must come back unmodified: the caller
	// decides how to surface a failed compaction.
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want the completion error", err)
	}
}
