package report

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/relaystack/ingest/internal/core/ports"
)

// SentrySink forwards captured failures to Sentry.
type SentrySink struct {
	hub *sentry.Hub
}

// InitSentry initializes the global Sentry client and returns a sink
// over the current hub plus a shutdown function that drains buffered
// events.
func InitSentry(dsn, environment string) (*SentrySink, func(), error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init sentry: %w", err)
	}
	flush := func() { sentry.Flush(2 * time.Second) }
	return &SentrySink{hub: sentry.CurrentHub()}, flush, nil
}

// Capture implements ports.ErrorSink.
func (s *SentrySink) Capture(err error, tags map[string]string, extra map[string]any) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		if len(tags) > 0 {
			scope.SetTags(tags)
		}
		if len(extra) > 0 {
			scope.SetExtras(extra)
		}
		s.hub.CaptureException(err)
	})
}

var _ ports.ErrorSink = (*SentrySink)(nil)
