// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAI implements [Provider] for the OpenAI Chat Completions wire
// format. Compatible with any endpoint that speaks it: OpenAI, Azure
// OpenAI, OpenRouter, vLLM, Ollama, llama.cpp, and the OpenAI-compat
// surfaces of other vendors.
type OpenAI struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOpenAI creates a chat-completions provider. baseURL is the API
// root without a trailing slash (e.g. "https://api.openai.com/v1");
// the client appends "/chat/completions". A nil httpClient uses
// http.DefaultClient.
func NewOpenAI(httpClient *http.Client, baseURL, apiKey string) *OpenAI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAI{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Complete sends a non-streaming request and returns the full response.
func (provider *OpenAI) Complete(ctx context.Context, request Request) (*Response, error) {
	wireRequest := provider.buildRequest(request, false)

	httpResponse, err := doJSONRequest(ctx, provider.httpClient,
		provider.endpoint(), provider.apiKey, wireRequest, false)
	if err != nil {
		return nil, err
	}
	defer httpResponse.Body.Close()

	var wireResp openaiResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("llm/openai: decoding response: %w", err)
	}

	return wireResp.toResponse(), nil
}

// Stream sends a streaming request and returns an [EventStream].
func (provider *OpenAI) Stream(ctx context.Context, request Request) (*EventStream, error) {
	wireRequest := provider.buildRequest(request, true)

	httpResponse, err := doJSONRequest(ctx, provider.httpClient,
		provider.endpoint(), provider.apiKey, wireRequest, true)
	if err != nil {
		return nil, err
	}

	return provider.newEventStream(httpResponse.Body), nil
}

func (provider *OpenAI) endpoint() string {
	return provider.baseURL + "/chat/completions"
}

// buildRequest converts the common request to the wire format. The
// system prompt becomes the first message with role "system".
func (provider *OpenAI) buildRequest(request Request, stream bool) openaiRequest {
	wireRequest := openaiRequest{
		Model:       request.Model,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
	}
	if stream {
		wireRequest.Stream = true
		wireRequest.StreamOptions = &openaiStreamOptions{IncludeUsage: true}
	}

	if request.System != "" {
		wireRequest.Messages = append(wireRequest.Messages, toWireMessage(Message{
			Role:    RoleSystem,
			Content: request.System,
		}))
	}
	for _, message := range request.Messages {
		wireRequest.Messages = append(wireRequest.Messages, toWireMessage(message))
	}

	for _, tool := range request.Tools {
		wireRequest.Tools = append(wireRequest.Tools, openaiTool{
			Type: "function",
			Function: openaiToolDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return wireRequest
}

// newEventStream creates an EventStream that parses chat-completions
// SSE chunks. Text arrives as content deltas and is surfaced
// immediately; tool calls arrive as fragmented deltas and are
// finalized only when finish_reason appears, queued as pending events
// so each one is emitted individually through Next.
func (provider *OpenAI) newEventStream(body io.ReadCloser) *EventStream {
	sseScanner := NewSSEScanner(body)

	var partialToolCalls []openaiPartialToolCall
	var pendingEvents []StreamEvent

	stream := &EventStream{closer: body}

	stream.next = func() (StreamEvent, error) {
		// Drain pending events before reading more SSE data.
		if len(pendingEvents) > 0 {
			event := pendingEvents[0]
			pendingEvents = pendingEvents[1:]
			return event, nil
		}

		for {
			if !sseScanner.Next() {
				if err := sseScanner.Err(); err != nil {
					return StreamEvent{}, fmt.Errorf("llm/openai: reading SSE: %w", err)
				}
				return StreamEvent{}, io.EOF
			}

			sseEvent := sseScanner.Event()

			// The stream terminates with "data: [DONE]".
			if sseEvent.Data == "[DONE]" {
				stream.done = true
				return StreamEvent{Type: EventDone}, nil
			}

			var chunk openaiStreamChunk
			if err := json.Unmarshal([]byte(sseEvent.Data), &chunk); err != nil {
				return StreamEvent{}, fmt.Errorf("llm/openai: parsing stream chunk: %w", err)
			}

			// Errors come as regular data lines with an "error" field,
			// not as SSE event types. A chunk with no choices, usage,
			// or model is the tell.
			if len(chunk.Choices) == 0 && chunk.Usage == nil && chunk.Model == "" {
				var errorChunk struct {
					Error struct {
						Type    string `json:"type"`
						Message string `json:"message"`
					} `json:"error"`
				}
				if json.Unmarshal([]byte(sseEvent.Data), &errorChunk) == nil && errorChunk.Error.Message != "" {
					return StreamEvent{
						Type:  EventError,
						Error: fmt.Errorf("llm/openai: stream error: %s: %s", errorChunk.Error.Type, errorChunk.Error.Message),
					}, nil
				}
			}

			if chunk.Model != "" && stream.response.Model == "" {
				stream.response.Model = chunk.Model
			}

			// With stream_options.include_usage, the final chunk after
			// finish_reason carries usage with an empty choices array.
			if chunk.Usage != nil {
				stream.response.Usage = Usage{
					InputTokens:  chunk.Usage.PromptTokens,
					OutputTokens: chunk.Usage.CompletionTokens,
				}
			}

			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				return StreamEvent{Type: EventTextDelta, Text: choice.Delta.Content}, nil
			}

			for _, delta := range choice.Delta.ToolCalls {
				for len(partialToolCalls) <= delta.Index {
					partialToolCalls = append(partialToolCalls, openaiPartialToolCall{})
				}
				partial := &partialToolCalls[delta.Index]
				if delta.ID != "" {
					partial.id = delta.ID
				}
				if delta.Function != nil {
					if delta.Function.Name != "" {
						partial.name = delta.Function.Name
					}
					partial.arguments.WriteString(delta.Function.Arguments)
				}
			}

			if choice.FinishReason != nil {
				stream.response.StopReason = mapFinishReason(*choice.FinishReason)
				for i := range partialToolCalls {
					pendingEvents = append(pendingEvents, StreamEvent{
						Type: EventToolCall,
						ToolCall: ToolCall{
							ID:        partialToolCalls[i].id,
							Name:      partialToolCalls[i].name,
							Arguments: partialToolCalls[i].arguments.String(),
						},
					})
				}
				partialToolCalls = nil
				if len(pendingEvents) > 0 {
					event := pendingEvents[0]
					pendingEvents = pendingEvents[1:]
					return event, nil
				}
			}
		}
	}

	return stream
}

func mapFinishReason(reason string) StopReason {
	switch reason {
	case "stop":
		return StopEndTurn
	case "tool_calls":
		return StopToolCalls
	case "length":
		return StopMaxTokens
	default:
		return StopOther
	}
}

// --- wire types ---
//
// These map directly to the Chat Completions JSON format. They are
// separate from the public types because the wire format nests tool
// call name/arguments inside a "function" object and tags tool calls
// with a "type" discriminator.

type openaiRequest struct {
	Model         string               `json:"model"`
	Messages      []openaiMessage      `json:"messages"`
	Tools         []openaiTool         `json:"tools,omitempty"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Temperature   *float64             `json:"temperature,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *openaiStreamOptions `json:"stream_options,omitempty"`
}

type openaiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiToolFunction `json:"function"`
}

type openaiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiTool struct {
	Type     string               `json:"type"`
	Function openaiToolDefinition `json:"function"`
}

type openaiToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage"`
}

type openaiUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type openaiStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function *struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage"`
}

type openaiPartialToolCall struct {
	id        string
	name      string
	arguments strings.Builder
}

// toWireMessage converts a common message to the wire shape,
// re-nesting canonical tool calls into function objects.
func toWireMessage(message Message) openaiMessage {
	wire := openaiMessage{
		Role:       string(message.Role),
		Content:    message.Content,
		ToolCallID: message.ToolCallID,
		Name:       message.Name,
	}
	for _, call := range message.ToolCalls {
		wire.ToolCalls = append(wire.ToolCalls, openaiToolCall{
			ID:   call.ID,
			Type: "function",
			Function: openaiToolFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return wire
}

// fromWireMessage normalizes a wire message into the common shape,
// flattening function objects into canonical [ToolCall] records.
func fromWireMessage(wire openaiMessage) Message {
	message := Message{
		Role:       Role(wire.Role),
		Content:    wire.Content,
		ToolCallID: wire.ToolCallID,
		Name:       wire.Name,
	}
	for _, call := range wire.ToolCalls {
		message.ToolCalls = append(message.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return message
}

func (wireResp *openaiResponse) toResponse() *Response {
	response := &Response{Model: wireResp.Model}

	if len(wireResp.Choices) > 0 {
		choice := wireResp.Choices[0]
		response.Message = fromWireMessage(choice.Message)
		response.Message.Role = RoleAssistant
		response.StopReason = mapFinishReason(choice.FinishReason)
	}
	if wireResp.Usage != nil {
		response.Usage = Usage{
			InputTokens:  wireResp.Usage.PromptTokens,
			OutputTokens: wireResp.Usage.CompletionTokens,
		}
	}
	return response
}
