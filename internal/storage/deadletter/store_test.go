package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relaystack/ingest/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "dead_letters.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBatch() *domain.Batch {
	return &domain.Batch{
		ID:           "b1",
		Partition:    2,
		MessageCount: 10,
		LastOffset:   func() string { return "99" },
	}
}

func TestCaptureEvent_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := &domain.RawEvent{
		Authorization: "Bearer sk-test",
		Request:       domain.RequestLog{ID: "req-1", Path: "/v1/chat/completions"},
		Response:      domain.ResponseLog{ID: "resp-1", Status: 200},
	}
	ev := domain.NewEvent(raw)
	ev.Org = &domain.Organization{ID: "org-1"}
	f := domain.NewFailure(domain.FailurePrompt, "prompt", errors.New("tokenizer exploded"))

	if err := s.CaptureEvent(ctx, ev, testBatch(), f); err != nil {
		t.Fatalf("capture: %v", err)
	}

	entries, err := s.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != "prompt" {
		t.Errorf("kind = %q, want prompt", e.Kind)
	}
	if e.BatchID != "b1" || e.Partition != 2 {
		t.Errorf("batch metadata = %s/%d, want b1/2", e.BatchID, e.Partition)
	}
	if e.RequestID != "req-1" {
		t.Errorf("request id = %q, want req-1", e.RequestID)
	}
	if !strings.Contains(e.Failure, "tokenizer exploded") {
		t.Errorf("failure text = %q", e.Failure)
	}

	// The payload must replay into the original raw event.
	var replayed domain.RawEvent
	if err := json.Unmarshal([]byte(e.Payload), &replayed); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if replayed.Request.ID != "req-1" || replayed.Authorization != "Bearer sk-test" {
		t.Errorf("replayed event = %+v", replayed)
	}
}

func TestCaptureFlush_BatchGranularity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CaptureFlush(ctx, "rate_limit", testBatch(), errors.New("tx aborted")); err != nil {
		t.Fatalf("capture: %v", err)
	}

	entries, err := s.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Kind != "flush:rate_limit" {
		t.Errorf("kind = %q, want flush:rate_limit", entries[0].Kind)
	}
	if entries[0].RequestID != "" {
		t.Errorf("flush entry should carry no request id, got %q", entries[0].RequestID)
	}
}

func TestDelete_RemovesReplayedEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := domain.NewEvent(&domain.RawEvent{Request: domain.RequestLog{ID: "req-1"}})
	f := domain.NewFailure(domain.FailureAuth, "auth", errors.New("rejected"))
	if err := s.CaptureEvent(ctx, ev, testBatch(), f); err != nil {
		t.Fatalf("capture: %v", err)
	}

	entries, err := s.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if err := s.Delete(ctx, entries[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, err = s.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending after delete: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries after delete, want 0", len(entries))
	}
}

func TestPending_RespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.CaptureFlush(ctx, "log_record", testBatch(), errors.New("boom")); err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
	}

	entries, err := s.Pending(ctx, 3)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}
