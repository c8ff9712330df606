package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// RequestBody decodes the fetched request payload into the event's
// ParsedRequest field. An event with an empty request body passes
// through untouched.
type RequestBody struct{}

// NewRequestBody creates the request-body parsing stage.
func NewRequestBody() *RequestBody { return &RequestBody{} }

// Name implements ports.Stage.
func (s *RequestBody) Name() string { return "request_body" }

// Handle implements ports.Stage.
func (s *RequestBody) Handle(ctx context.Context, ev *domain.Event) error {
	if ev.Request != nil {
		return nil
	}
	if ev.Payload == nil || len(ev.Payload.RequestBody) == 0 {
		return nil
	}

	var parsed domain.ParsedRequest
	if err := json.Unmarshal(ev.Payload.RequestBody, &parsed); err != nil {
		return domain.NewFailure(domain.FailureParseRequest, s.Name(),
			fmt.Errorf("decode request body for %s: %w", ev.RequestID(), err))
	}
	parsed.Raw = json.RawMessage(ev.Payload.RequestBody)
	ev.Request = &parsed
	return nil
}

// ResponseBody decodes the fetched response payload into the event's
// ParsedResponse field.
type ResponseBody struct{}

// NewResponseBody creates the response-body parsing stage.
func NewResponseBody() *ResponseBody { return &ResponseBody{} }

// Name implements ports.Stage.
func (s *ResponseBody) Name() string { return "response_body" }

// Handle implements ports.Stage.
func (s *ResponseBody) Handle(ctx context.Context, ev *domain.Event) error {
	if ev.Response != nil {
		return nil
	}
	if ev.Payload == nil || len(ev.Payload.ResponseBody) == 0 {
		return nil
	}

	var parsed domain.ParsedResponse
	if err := json.Unmarshal(ev.Payload.ResponseBody, &parsed); err != nil {
		return domain.NewFailure(domain.FailureParseResponse, s.Name(),
			fmt.Errorf("decode response body for %s: %w", ev.ResponseID(), err))
	}
	parsed.Raw = json.RawMessage(ev.Payload.ResponseBody)
	ev.Response = &parsed
	return nil
}

var (
	_ ports.Stage = (*RequestBody)(nil)
	_ ports.Stage = (*ResponseBody)(nil)
)
