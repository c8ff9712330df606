package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
	"github.com/relaystack/ingest/internal/telemetry"
)

const tracerName = "github.com/relaystack/ingest/internal/pipeline"

// Runner drives batches through a chain and owns the flush phase.
type Runner struct {
	chain       *Chain
	flushers    []ports.AccumulatingStage
	reporter    ports.FailureReporter
	deadLetter  ports.DeadLetterStore
	logger      *slog.Logger
	maxInFlight int
	tracer      trace.Tracer
}

// RunnerConfig configures a batch runner. Collaborators are injected
// here, once per construction, so batches stay testable with fakes.
type RunnerConfig struct {
	Chain *Chain
	// Flushers are flushed in slice order after the traversal barrier.
	Flushers []ports.AccumulatingStage
	Reporter ports.FailureReporter
	// DeadLetter is optional; nil disables dead-letter capture.
	DeadLetter ports.DeadLetterStore
	Logger     *slog.Logger
	// MaxInFlight bounds concurrent traversals. Zero means one
	// goroutine per event with no bound.
	MaxInFlight int
}

// NewRunner creates a runner from configuration.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		chain:       cfg.Chain,
		flushers:    cfg.Flushers,
		reporter:    cfg.Reporter,
		deadLetter:  cfg.DeadLetter,
		logger:      logger,
		maxInFlight: cfg.MaxInFlight,
		tracer:      otel.Tracer(tracerName),
	}
}

// ProcessBatch runs every event of the batch through the chain
// concurrently, joins, then flushes each accumulating stage once in
// declared order. It returns only after both phases are complete and it
// never returns an error: per-event failures and flush failures alike
// exit through the failure reporter.
func (r *Runner) ProcessBatch(ctx context.Context, events []*domain.RawEvent, batch *domain.Batch) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "ProcessBatch",
		trace.WithAttributes(
			attribute.String("batch.id", batch.ID),
			attribute.Int("batch.partition", batch.Partition),
			attribute.Int("batch.messages", len(events)),
		))
	defer span.End()

	var g errgroup.Group
	if r.maxInFlight > 0 {
		g.SetLimit(r.maxInFlight)
	}
	for _, raw := range events {
		g.Go(func() error {
			r.runEvent(ctx, raw, batch)
			return nil
		})
	}
	// Full join: no flush may observe a traversal still in flight.
	// Tasks never return errors; failures are reported inline.
	_ = g.Wait()

	for _, fl := range r.flushers {
		r.flush(ctx, fl, batch)
	}

	telemetry.BatchesTotal.Inc()
	telemetry.BatchDuration.Observe(time.Since(start).Seconds())
	r.logger.Debug("batch processed",
		slog.String("batch_id", batch.ID),
		slog.Int("events", len(events)),
		slog.Duration("took", time.Since(start)),
	)
}

// runEvent owns one traversal. A panicking stage breaks its own event,
// never the batch.
func (r *Runner) runEvent(ctx context.Context, raw *domain.RawEvent, batch *domain.Batch) {
	ev := domain.NewEvent(raw)
	defer func() {
		if rec := recover(); rec != nil {
			f := ev.Fail(domain.NewFailure(domain.FailureInternal, "panic", fmt.Errorf("stage panic: %v", rec)))
			r.reportEvent(ctx, f, ev, batch)
		}
	}()

	telemetry.EventsTotal.Inc()
	if f := r.chain.Run(ctx, ev); f != nil {
		r.reportEvent(ctx, f, ev, batch)
	}
}

func (r *Runner) reportEvent(ctx context.Context, f *domain.Failure, ev *domain.Event, batch *domain.Batch) {
	telemetry.StageFailuresTotal.WithLabelValues(f.Stage).Inc()
	r.reporter.StageFailure(ctx, f, ev, batch)
	if r.deadLetter == nil {
		return
	}
	if err := r.deadLetter.CaptureEvent(ctx, ev, batch, f); err != nil {
		r.logger.Error("dead-letter capture failed",
			slog.String("batch_id", batch.ID),
			slog.String("request_id", ev.RequestID()),
			slog.Any("error", err),
		)
	}
}

func (r *Runner) flush(ctx context.Context, fl ports.AccumulatingStage, batch *domain.Batch) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "Flush",
		trace.WithAttributes(attribute.String("store", fl.Name())))
	defer span.End()

	err := fl.Flush(ctx)
	telemetry.FlushDuration.WithLabelValues(fl.Name()).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}

	telemetry.FlushFailuresTotal.WithLabelValues(fl.Name()).Inc()
	r.reporter.FlushFailure(ctx, fl.Name(), err, batch)
	if r.deadLetter != nil {
		if dlErr := r.deadLetter.CaptureFlush(ctx, fl.Name(), batch, err); dlErr != nil {
			r.logger.Error("dead-letter capture failed",
				slog.String("batch_id", batch.ID),
				slog.String("store", fl.Name()),
				slog.Any("error", dlErr),
			)
		}
	}
}
