// Package ports defines the interfaces of the ingestion core.
// This file contains the stage contracts of the handler chain.
package ports

import (
	"context"

	"github.com/relaystack/ingest/internal/core/domain"
)

// Stage is one step of the handler chain. Handle enriches the event
// context or returns an error to halt that event's traversal; the error
// is wrapped into a domain.Failure by the chain if the stage did not
// return one itself.
//
// Contract: a stage only writes the context fields it owns, captures
// collaborator faults as returned errors rather than panicking, and
// performs no external writes during traversal (accumulating stages
// buffer in memory only).
type Stage interface {
	// Name identifies the stage in failure reports and logs.
	Name() string
	// Handle runs the stage against one event context.
	Handle(ctx context.Context, ev *domain.Event) error
}

// AccumulatingStage is a Stage that buffers a per-event result during
// traversal and commits the whole buffer in one bulk write at the end of
// the batch. The batch runner holds direct references to these for the
// flush phase; Flush is called exactly once per batch, strictly after
// every traversal has completed.
type AccumulatingStage interface {
	Stage
	// Flush performs the bulk commit of everything recorded during the
	// batch. The buffer is spent afterwards whether or not the commit
	// succeeded; the store never retries on its own.
	Flush(ctx context.Context) error
}
