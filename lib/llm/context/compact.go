// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"
	"slices"
	"time"

	"github.com/mendhq/mend/lib/llm"
)

// compactionPrompt is the fixed summarization instruction appended to
// the conversation for the compaction call. The summary becomes the
// only context after the splice, so it asks for everything needed to
// continue the session seamlessly.
const compactionPrompt = `You are summarizing a coding session to continue it seamlessly.

Create a detailed summary of our conversation above. This summary will be the ONLY context
available when we continue, so include:

1. **What was accomplished**: Completed tasks and changes made
2. **Current state**: Files modified, their current status
3. **In progress**: What we're working on now
4. **Next steps**: Clear actions to take next
5. **Key decisions**: Important technical choices and why
6. **User preferences**: Any constraints or preferences mentioned

Be comprehensive but concise. The goal is to continue work seamlessly without losing context.`

// compactionMarker prefixes the summary content so the message is
// recognizable in transcripts even without its metadata tag.
const compactionMarker = "[COMPACTION SUMMARY]"

// CompleteFunc is the external completion capability used for
// compaction: one blocking LLM call returning the response text. The
// implementation owns its own timeout and retry policy.
type CompleteFunc func(ctx context.Context, messages []llm.Message) (string, error)

// CreateCompaction summarizes the full conversation through one LLM
// call and returns the tagged synthetic summary message along with
// the raw summary text. It does not truncate the conversation —
// splicing the summary in place of the prefix it covers is the
// caller's responsibility.
//
// Completion failures propagate unmodified: compaction is an
// explicit, user-visible operation and silently swallowing a failure
// would hide context loss.
func (manager *Manager) CreateCompaction(ctx context.Context, messages []llm.Message, complete CompleteFunc) (llm.Message, string, error) {
	request := append(slices.Clone(messages), llm.UserMessage(compactionPrompt))

	summary, err := complete(ctx, request)
	if err != nil {
		return llm.Message{}, "", err
	}

	message := llm.Message{
		Role:    llm.RoleAssistant,
		Content: compactionMarker + "\n\n" + summary,
		Compaction: &llm.Compaction{
			OriginalMessageCount: len(messages),
			Timestamp:            time.Now(),
		},
	}
	return message, summary, nil
}
