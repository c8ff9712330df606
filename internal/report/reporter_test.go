package report

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/relaystack/ingest/internal/core/domain"
)

type capturingSink struct {
	errs  []error
	tags  []map[string]string
	extra []map[string]any
}

func (s *capturingSink) Capture(err error, tags map[string]string, extra map[string]any) {
	s.errs = append(s.errs, err)
	s.tags = append(s.tags, tags)
	s.extra = append(s.extra, extra)
}

type panickingSink struct{}

func (s *panickingSink) Capture(err error, tags map[string]string, extra map[string]any) {
	panic("sink is down")
}

func testBatch() *domain.Batch {
	return &domain.Batch{
		ID:           "b1",
		Partition:    3,
		MessageCount: 50,
		LastOffset:   func() string { return "1234" },
	}
}

func failedEvent() (*domain.Event, *domain.Failure) {
	ev := domain.NewEvent(&domain.RawEvent{
		Request:  domain.RequestLog{ID: "req-1"},
		Response: domain.ResponseLog{ID: "resp-1"},
	})
	ev.Org = &domain.Organization{ID: "org-1"}
	f := domain.NewFailure(domain.FailureAuth, "auth", errors.New("rejected"))
	return ev, f
}

func TestStageFailure_TagsAndExtras(t *testing.T) {
	sink := &capturingSink{}
	r := New(sink, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	ev, f := failedEvent()
	r.StageFailure(context.Background(), f, ev, testBatch())

	if len(sink.errs) != 1 {
		t.Fatalf("captured %d errors, want 1", len(sink.errs))
	}
	tags := sink.tags[0]
	want := map[string]string{
		"batch_id":    "b1",
		"partition":   "3",
		"messages":    "50",
		"last_offset": "1234",
		"kind":        "stage_failure",
		"stage":       "auth",
	}
	for k, v := range want {
		if tags[k] != v {
			t.Errorf("tag %s = %q, want %q", k, tags[k], v)
		}
	}
	extra := sink.extra[0]
	if extra["request_id"] != "req-1" {
		t.Errorf("extra request_id = %v, want req-1", extra["request_id"])
	}
	if extra["organization_id"] != "org-1" {
		t.Errorf("extra organization_id = %v, want org-1", extra["organization_id"])
	}
	if extra["failure_kind"] != "auth" {
		t.Errorf("extra failure_kind = %v, want auth", extra["failure_kind"])
	}
}

func TestFlushFailure_NamesTheStore(t *testing.T) {
	sink := &capturingSink{}
	r := New(sink, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	r.FlushFailure(context.Background(), "rate_limit", errors.New("tx aborted"), testBatch())

	if len(sink.tags) != 1 {
		t.Fatalf("captured %d reports, want 1", len(sink.tags))
	}
	if sink.tags[0]["kind"] != "flush_failure" {
		t.Errorf("kind tag = %q, want flush_failure", sink.tags[0]["kind"])
	}
	if sink.tags[0]["store"] != "rate_limit" {
		t.Errorf("store tag = %q, want rate_limit", sink.tags[0]["store"])
	}
}

func TestReporter_NilSinkStillLogs(t *testing.T) {
	var buf bytes.Buffer
	r := New(nil, slog.New(slog.NewJSONHandler(&buf, nil)))

	ev, f := failedEvent()
	r.StageFailure(context.Background(), f, ev, testBatch())

	out := buf.String()
	if !strings.Contains(out, "event failed") {
		t.Errorf("log output missing message: %s", out)
	}
	if !strings.Contains(out, "req-1") {
		t.Errorf("log output missing request id: %s", out)
	}
}

func TestReporter_SurvivesPanickingSink(t *testing.T) {
	var buf bytes.Buffer
	r := New(&panickingSink{}, slog.New(slog.NewJSONHandler(&buf, nil)))

	ev, f := failedEvent()
	r.StageFailure(context.Background(), f, ev, testBatch())
	r.FlushFailure(context.Background(), "log_record", errors.New("boom"), testBatch())

	if !strings.Contains(buf.String(), "error sink panicked") {
		t.Error("expected the sink panic to be logged")
	}
}
