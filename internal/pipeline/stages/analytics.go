package stages

import (
	"context"
	"log/slog"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// Analytics forwards the enriched event to the analytics backend.
// Delivery is fire-and-forget: a forwarding error is logged but never
// fails the event.
type Analytics struct {
	forwarder ports.AnalyticsForwarder
	logger    *slog.Logger
}

// NewAnalytics creates the analytics stage.
func NewAnalytics(f ports.AnalyticsForwarder, logger *slog.Logger) *Analytics {
	return &Analytics{forwarder: f, logger: logger}
}

// Name implements ports.Stage.
func (s *Analytics) Name() string { return "analytics" }

// Handle implements ports.Stage.
func (s *Analytics) Handle(ctx context.Context, ev *domain.Event) error {
	if err := s.forwarder.Send(ctx, ev); err != nil {
		s.logger.Warn("analytics forward failed",
			slog.String("request_id", ev.RequestID()),
			slog.Any("error", err),
		)
	}
	return nil
}

var _ ports.Stage = (*Analytics)(nil)
