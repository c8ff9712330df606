package stages

import (
	"context"
	"log/slog"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// RateLimit buffers one quota-accounting row per event and commits the
// whole batch's rows in a single bulk write at flush time. Record only
// touches memory; the network write happens in Flush.
type RateLimit struct {
	store  ports.QuotaStore
	logger *slog.Logger
}

// NewRateLimit creates the rate-limit accounting stage.
func NewRateLimit(store ports.QuotaStore, logger *slog.Logger) *RateLimit {
	return &RateLimit{store: store, logger: logger}
}

// Name implements ports.Stage and names the store in flush-failure
// reports.
func (s *RateLimit) Name() string { return "rate_limit" }

// Handle implements ports.Stage.
func (s *RateLimit) Handle(ctx context.Context, ev *domain.Event) error {
	if err := s.store.Record(ctx, ev); err != nil {
		return domain.NewFailure(domain.FailureRateLimit, s.Name(), err)
	}
	return nil
}

// Flush implements ports.AccumulatingStage.
func (s *RateLimit) Flush(ctx context.Context) error {
	id, err := s.store.Flush(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("quota rows committed", slog.String("insert_id", id))
	return nil
}

var _ ports.AccumulatingStage = (*RateLimit)(nil)
