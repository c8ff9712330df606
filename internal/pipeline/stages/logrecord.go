package stages

import (
	"context"
	"log/slog"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// LogRecord buffers the durable request/response row for each event and
// commits the batch in one bulk write at flush time. It is flushed
// before the rate-limit store so quota state never references an event
// absent from the log.
type LogRecord struct {
	store  ports.LogStore
	logger *slog.Logger
}

// NewLogRecord creates the log persistence stage.
func NewLogRecord(store ports.LogStore, logger *slog.Logger) *LogRecord {
	return &LogRecord{store: store, logger: logger}
}

// Name implements ports.Stage and names the store in flush-failure
// reports.
func (s *LogRecord) Name() string { return "log_record" }

// Handle implements ports.Stage.
func (s *LogRecord) Handle(ctx context.Context, ev *domain.Event) error {
	if err := s.store.Record(ctx, ev); err != nil {
		return domain.NewFailure(domain.FailureLogRecord, s.Name(), err)
	}
	return nil
}

// Flush implements ports.AccumulatingStage.
func (s *LogRecord) Flush(ctx context.Context) error {
	rows, err := s.store.Flush(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("log rows committed", slog.Int("rows", rows))
	return nil
}

var _ ports.AccumulatingStage = (*LogRecord)(nil)
