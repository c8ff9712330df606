// Package report implements the failure reporter: every isolated
// failure of the pipeline exits through here, to the error-tracking
// sink and to the local structured log. The local log is the
// durability backstop: a sink outage degrades reporting, it never
// escalates.
package report

import (
	"context"
	"log/slog"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// Reporter fans failures out to the error sink and the local log. It
// never blocks the pipeline and never returns an error.
type Reporter struct {
	sink   ports.ErrorSink
	logger *slog.Logger
}

// New creates a reporter. A nil sink disables external reporting; the
// local log always receives everything.
func New(sink ports.ErrorSink, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{sink: sink, logger: logger}
}

// StageFailure implements ports.FailureReporter.
func (r *Reporter) StageFailure(ctx context.Context, f *domain.Failure, ev *domain.Event, batch *domain.Batch) {
	tags := batch.Tags()
	tags["kind"] = "stage_failure"
	tags["stage"] = f.Stage

	extra := map[string]any{
		"failure_kind": string(f.Kind),
		"request_id":   ev.RequestID(),
		"response_id":  ev.ResponseID(),
	}
	if orgID := ev.OrgID(); orgID != "" {
		extra["organization_id"] = orgID
	}

	r.logger.ErrorContext(ctx, "event failed",
		slog.String("batch_id", batch.ID),
		slog.String("stage", f.Stage),
		slog.String("failure_kind", string(f.Kind)),
		slog.String("request_id", ev.RequestID()),
		slog.Any("error", f.Err),
	)
	r.capture(f, tags, extra)
}

// FlushFailure implements ports.FailureReporter. There is no single
// event to blame for a failed bulk commit, so only batch metadata is
// attached.
func (r *Reporter) FlushFailure(ctx context.Context, store string, err error, batch *domain.Batch) {
	tags := batch.Tags()
	tags["kind"] = "flush_failure"
	tags["store"] = store

	r.logger.ErrorContext(ctx, "store flush failed",
		slog.String("batch_id", batch.ID),
		slog.String("store", store),
		slog.Any("error", err),
	)
	r.capture(err, tags, nil)
}

// capture forwards to the sink. A panicking or missing sink must not
// take the pipeline down with it.
func (r *Reporter) capture(err error, tags map[string]string, extra map[string]any) {
	if r.sink == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("error sink panicked", slog.Any("panic", rec))
		}
	}()
	r.sink.Capture(err, tags, extra)
}

var _ ports.FailureReporter = (*Reporter)(nil)
