// Copyright 2026 The Mend Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Provider is the interface for LLM API backends. Implementations
// translate between the common types in this package and the wire
// format of their endpoint.
type Provider interface {
	// Complete sends a request and blocks until the full response
	// is available. Use this when streaming is not needed.
	Complete(ctx context.Context, request Request) (*Response, error)

	// Stream sends a request and returns an [EventStream] that yields
	// events as they arrive. The caller must call [EventStream.Close]
	// when done, even if iteration ended early.
	Stream(ctx context.Context, request Request) (*EventStream, error)
}

// Request is a provider-agnostic completion request.
type Request struct {
	// Model is the model identifier (e.g. "gpt-4o", "claude-sonnet-4-5").
	Model string

	// System is the system prompt. Sent as the first message with
	// role "system" on the chat-completions wire.
	System string

	// Messages is the conversation history, oldest first.
	Messages []Message

	// Tools is the tool catalog advertised to the model.
	Tools []ToolDefinition

	// MaxTokens is the maximum output tokens for this response.
	// Zero means the provider's default.
	MaxTokens int

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolCalls StopReason = "tool_calls"
	StopMaxTokens StopReason = "max_tokens"
	StopOther     StopReason = "other"
)

// Usage reports token consumption for one request/response pair.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is a complete model response.
type Response struct {
	// Model is the model that produced the response, as reported by
	// the provider (may differ from the requested alias).
	Model string

	// Message is the assistant message: text content plus any tool
	// calls, ready to append to the conversation.
	Message Message

	StopReason StopReason
	Usage      Usage
}

// StreamEventType identifies the kind of a StreamEvent.
type StreamEventType string

const (
	// EventTextDelta carries an incremental piece of assistant text.
	EventTextDelta StreamEventType = "text_delta"

	// EventToolCall carries one complete, finalized tool call.
	EventToolCall StreamEventType = "tool_call"

	// EventDone signals the end of the response.
	EventDone StreamEventType = "done"

	// EventError carries a mid-stream error reported by the provider.
	EventError StreamEventType = "error"
)

// StreamEvent is one event from a streaming response.
type StreamEvent struct {
	Type     StreamEventType
	Text     string   // set for EventTextDelta
	ToolCall ToolCall // set for EventToolCall
	Error    error    // set for EventError
}

// nextFunc is the iteration function for an EventStream. Returns
// io.EOF when the stream is complete.
type nextFunc func() (StreamEvent, error)

// EventStream reads streaming events from an LLM response. It yields
// [StreamEvent] values via [Next] while accumulating the complete
// [Response] internally. After Next returns [io.EOF], call [Response]
// to retrieve the accumulated result.
//
// EventStream is not safe for concurrent use.
type EventStream struct {
	next     nextFunc
	closer   io.Closer
	response Response
	done     bool
}

// NewEventStream creates an EventStream from a next function and
// closer. The providers in this package build their own streams; this
// constructor exists for alternative Provider implementations and
// test doubles.
func NewEventStream(next nextFunc, closer io.Closer) *EventStream {
	return &EventStream{
		next:   next,
		closer: closer,
	}
}

// SetModel records the model for the accumulated response. For use by
// external Provider implementations built on [NewEventStream].
func (stream *EventStream) SetModel(model string) {
	stream.response.Model = model
}

// SetUsage records token usage for the accumulated response.
func (stream *EventStream) SetUsage(usage Usage) {
	stream.response.Usage = usage
}

// SetStopReason records the stop reason for the accumulated response.
func (stream *EventStream) SetStopReason(reason StopReason) {
	stream.response.StopReason = reason
}

// Next returns the next event from the stream. Returns io.EOF when
// the stream is complete.
//
// The caller should process events in a loop:
//
//	for {
//	    event, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // process event
//	}
//	response := stream.Response()
func (stream *EventStream) Next() (StreamEvent, error) {
	if stream.done {
		return StreamEvent{}, io.EOF
	}

	event, err := stream.next()
	if err != nil {
		if err == io.EOF {
			stream.done = true
		}
		return event, err
	}

	switch event.Type {
	case EventTextDelta:
		stream.response.Message.Content += event.Text
	case EventToolCall:
		stream.response.Message.ToolCalls = append(stream.response.Message.ToolCalls, event.ToolCall)
	}
	return event, nil
}

// Response returns the accumulated complete response. Only valid
// after [Next] has returned [io.EOF].
func (stream *EventStream) Response() Response {
	stream.response.Message.Role = RoleAssistant
	return stream.response
}

// Close releases the underlying resources (HTTP response body).
// Must be called when done with the stream, even if iteration ended
// early.
func (stream *EventStream) Close() error {
	if stream.closer != nil {
		return stream.closer.Close()
	}
	return nil
}

// ProviderError is returned when the LLM API responds with an error.
type ProviderError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Type is the provider-specific error type string
	// (e.g. "invalid_request_error", "rate_limit_error").
	Type string

	// Message is the human-readable error description.
	Message string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited returns true if the error is a rate limit response (HTTP 429).
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// doJSONRequest marshals wireRequest as JSON, POSTs it to endpoint,
// and returns the HTTP response. Non-200 statuses are returned as a
// [ProviderError]. When streaming is true the Accept header requests
// an event stream.
//
// On success the caller owns the response body; on error it is
// already closed.
func doJSONRequest(ctx context.Context, httpClient *http.Client, endpoint, apiKey string, wireRequest any, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("llm: marshaling request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: creating request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if streaming {
		httpRequest.Header.Set("Accept", "text/event-stream")
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("llm: sending request: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, readProviderError(httpResponse)
	}

	return httpResponse, nil
}

// readProviderError parses an error response body in the common
// provider error format {"error":{"type":"...","message":"..."}}.
// Extra fields in the error object (OpenAI's "code" and "param") are
// silently ignored.
func readProviderError(httpResponse *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{
			StatusCode: httpResponse.StatusCode,
			Type:       wireError.Error.Type,
			Message:    wireError.Error.Message,
		}
	}

	return &ProviderError{
		StatusCode: httpResponse.StatusCode,
		Message:    string(body),
	}
}
