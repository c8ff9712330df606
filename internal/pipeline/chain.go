package pipeline

import (
	"context"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// Chain is an ordered, immutable sequence of stages. Building one is a
// pure composition with no I/O; the same chain is shared by every event
// goroutine of a batch.
type Chain struct {
	stages []ports.Stage
}

// NewChain composes stages in declaration order.
func NewChain(stages ...ports.Stage) *Chain {
	return &Chain{stages: append([]ports.Stage(nil), stages...)}
}

// Len returns the number of stages in the chain.
func (c *Chain) Len() int {
	return len(c.stages)
}

// Run drives one event through the chain. The first stage to return an
// error halts the traversal: the error is recorded in the event's
// failure slot and returned, and no later stage runs. A nil return
// means the event cleared every stage.
func (c *Chain) Run(ctx context.Context, ev *domain.Event) *domain.Failure {
	for _, s := range c.stages {
		err := s.Handle(ctx, ev)
		if err == nil {
			continue
		}
		f, ok := domain.AsFailure(err)
		if !ok {
			f = domain.NewFailure(domain.FailureInternal, s.Name(), err)
		}
		if f.Stage == "" {
			f.Stage = s.Name()
		}
		return ev.Fail(f)
	}
	return nil
}
