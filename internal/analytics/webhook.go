// Package analytics forwards processed events to the analytics backend
// over a JSON webhook.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// EventPayload is the wire shape sent to the analytics backend.
type EventPayload struct {
	RequestID        string            `json:"request_id"`
	ResponseID       string            `json:"response_id"`
	OrganizationID   string            `json:"organization_id,omitempty"`
	Model            string            `json:"model,omitempty"`
	Provider         string            `json:"provider,omitempty"`
	Status           int               `json:"status"`
	DelayMS          int64             `json:"delay_ms"`
	PromptTokens     int64             `json:"prompt_tokens,omitempty"`
	CompletionTokens int64             `json:"completion_tokens,omitempty"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// WebhookConfig configures the forwarder.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Retries int
	Headers map[string]string
}

// Webhook POSTs one JSON payload per event. Transport errors are
// retried; a non-2xx response is an error the caller treats as
// non-fatal.
type Webhook struct {
	url     string
	retries int
	headers map[string]string
	client  *http.Client
}

// NewWebhook creates the forwarder. The HTTP client carries otel
// instrumentation so forwards show up in traces.
func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:     cfg.URL,
		retries: cfg.Retries,
		headers: cfg.Headers,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Send implements ports.AnalyticsForwarder.
func (w *Webhook) Send(ctx context.Context, ev *domain.Event) error {
	payload := EventPayload{
		RequestID:      ev.RequestID(),
		ResponseID:     ev.ResponseID(),
		OrganizationID: ev.OrgID(),
		Provider:       ev.Raw.Request.Provider,
		Status:         ev.Raw.Response.Status,
		DelayMS:        ev.Raw.Response.DelayMS,
		Properties:     ev.Raw.Request.Properties,
	}
	if ev.Request != nil {
		payload.Model = ev.Request.Model
	}
	if ev.Response != nil {
		payload.PromptTokens = ev.Response.Usage.PromptTokens
		payload.CompletionTokens = ev.Response.Usage.CompletionTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analytics payload: %w", err)
	}

	var lastErr error
	attempts := w.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = w.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create analytics request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("analytics request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analytics backend returned status %d", resp.StatusCode)
	}
	return nil
}

var _ ports.AnalyticsForwarder = (*Webhook)(nil)
