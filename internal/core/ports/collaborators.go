package ports

import (
	"context"

	"github.com/relaystack/ingest/internal/core/domain"
)

// Authenticator resolves the organization behind an event's bearer
// token.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*domain.Organization, error)
}

// ObjectFetcher reads a stored payload blob from object storage.
type ObjectFetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// LogStore accumulates request/response records for one batch and
// commits them in a single bulk write.
type LogStore interface {
	// Record buffers one event's log row. Memory-only, safe for
	// concurrent use by all event goroutines of a batch.
	Record(ctx context.Context, ev *domain.Event) error
	// Flush commits the buffered rows and returns how many went out.
	Flush(ctx context.Context) (int, error)
}

// QuotaStore accumulates rate-limit accounting rows for one batch.
type QuotaStore interface {
	Record(ctx context.Context, ev *domain.Event) error
	// Flush commits the buffered rows and returns the insert id of the
	// bulk write.
	Flush(ctx context.Context) (string, error)
}

// AnalyticsForwarder ships a processed event to the analytics backend.
// Failures are non-fatal to the event.
type AnalyticsForwarder interface {
	Send(ctx context.Context, ev *domain.Event) error
}

// ErrorSink is the external error-tracking service.
type ErrorSink interface {
	Capture(err error, tags map[string]string, extra map[string]any)
}

// FailureReporter receives every failure the pipeline isolates. It never
// blocks the pipeline and never returns an error.
type FailureReporter interface {
	// StageFailure reports one event's halted traversal, tagged with the
	// event identity and batch metadata.
	StageFailure(ctx context.Context, f *domain.Failure, ev *domain.Event, batch *domain.Batch)
	// FlushFailure reports a store's failed bulk commit, tagged with
	// batch metadata only.
	FlushFailure(ctx context.Context, store string, err error, batch *domain.Batch)
}

// DeadLetterStore captures events and flush payloads that did not make
// it into the log, for offline replay.
type DeadLetterStore interface {
	CaptureEvent(ctx context.Context, ev *domain.Event, batch *domain.Batch, f *domain.Failure) error
	CaptureFlush(ctx context.Context, store string, batch *domain.Batch, cause error) error
}
