// Package domain defines the data model flowing through the ingestion
// pipeline: raw events as delivered by the queue, the per-event context
// that stages progressively enrich, and the failure values that halt a
// traversal.
package domain

import (
	"encoding/json"
	"time"
)

// RequestLog is the request half of a raw event as produced by the
// upstream gateway.
type RequestLog struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId,omitempty"`
	Path       string            `json:"path"`
	TargetURL  string            `json:"targetUrl,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	BodySize   int64             `json:"bodySize"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"requestCreatedAt"`
}

// ResponseLog is the response half of a raw event.
type ResponseLog struct {
	ID               string    `json:"id"`
	Status           int       `json:"status"`
	BodySize         int64     `json:"bodySize"`
	DelayMS          int64     `json:"delayMs"`
	TimeToFirstToken *int64    `json:"timeToFirstToken,omitempty"`
	CreatedAt        time.Time `json:"responseCreatedAt"`
}

// RawEvent is one request/response log record exactly as it arrives from
// the message queue. The Authorization field carries the original bearer
// token of the logged API call; the bodies themselves live in object
// storage and are fetched during traversal.
type RawEvent struct {
	Authorization string      `json:"authorization"`
	Request       RequestLog  `json:"request"`
	Response      ResponseLog `json:"response"`
}

// Organization is the identity resolved by the authentication stage.
type Organization struct {
	ID   string
	Name string
	Tier string
}

// Payload holds the request/response bodies fetched from object storage.
type Payload struct {
	RequestBody  []byte
	ResponseBody []byte
}

// Message is a single chat message inside a parsed request body.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ParsedRequest is the decoded request body.
type ParsedRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Messages []Message       `json:"messages"`
	Raw      json.RawMessage `json:"-"`
}

// Usage is the token accounting block of a parsed response body.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ParsedResponse is the decoded response body.
type ParsedResponse struct {
	Model string          `json:"model"`
	Usage Usage           `json:"usage"`
	Raw   json.RawMessage `json:"-"`
}

// Prompt is the extracted prompt text plus its token count.
type Prompt struct {
	Text       string
	Model      string
	TokenCount int
}

// Event is the per-event context threaded through the stage chain. It is
// created fresh at the start of a traversal and owned by exactly one
// goroutine; each field past Raw is written by exactly one stage.
type Event struct {
	Raw *RawEvent

	// Org is attached by the authentication stage. Nil when
	// authentication did not resolve an organization.
	Org *Organization

	// Payload is attached by the object-fetch stage.
	Payload *Payload

	// Request and Response are attached by the body-parsing stages.
	Request  *ParsedRequest
	Response *ParsedResponse

	// Prompt is attached by the prompt stage.
	Prompt *Prompt

	failure *Failure
}

// NewEvent creates the context for one traversal.
func NewEvent(raw *RawEvent) *Event {
	return &Event{Raw: raw}
}

// Fail records the event's failure. The slot is write-once: a second
// call keeps the first failure and returns it.
func (e *Event) Fail(f *Failure) *Failure {
	if e.failure == nil {
		e.failure = f
	}
	return e.failure
}

// Failure returns the recorded failure, or nil if the traversal has not
// failed.
func (e *Event) Failure() *Failure {
	return e.failure
}

// RequestID returns the immutable request identifier of the event.
func (e *Event) RequestID() string {
	if e.Raw == nil {
		return ""
	}
	return e.Raw.Request.ID
}

// ResponseID returns the immutable response identifier of the event.
func (e *Event) ResponseID() string {
	if e.Raw == nil {
		return ""
	}
	return e.Raw.Response.ID
}

// OrgID returns the resolved organization id, or "" before
// authentication has run.
func (e *Event) OrgID() string {
	if e.Org == nil {
		return ""
	}
	return e.Org.ID
}
