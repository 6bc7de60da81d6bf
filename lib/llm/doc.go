// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a chat-completions client for Large Language
// Model APIs with streaming and tool-call support.
//
// The message model follows the OpenAI chat-completions shape (role,
// content string, tool_calls, tool_call_id) because that is the common
// denominator spoken by OpenAI, OpenRouter, vLLM, Ollama, llama.cpp,
// and the OpenAI-compatible endpoints of most other providers. One
// [Client] therefore covers every backend mend talks to.
//
// Tool calls arriving from the wire are normalized into the canonical
// [ToolCall] record (id, name, arguments string) at the decode
// boundary, so nothing downstream ever branches on wire representation.
//
// Streaming uses Server-Sent Events, parsed by [SSEScanner]. The
// [EventStream] type wraps a streaming response, yielding
// [StreamEvent] values as they arrive while accumulating the complete
// [Response] internally.
package llm
