// Package stages contains the concrete handler-chain stages: stateless
// enrichment stages (auth, object fetch, body parsing, prompt,
// analytics) and the two accumulating stages (rate-limit accounting and
// log records) that defer their writes to the end-of-batch flush.
package stages

import (
	"context"
	"errors"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// ErrMissingAuthorization is returned for events that arrive without a
// bearer token.
var ErrMissingAuthorization = errors.New("event carries no authorization")

// Auth resolves the organization behind the event's bearer token. It
// must run first: every later stage that needs an identity reads
// ev.Org.
type Auth struct {
	authenticator ports.Authenticator
}

// NewAuth creates the authentication stage.
func NewAuth(a ports.Authenticator) *Auth {
	return &Auth{authenticator: a}
}

// Name implements ports.Stage.
func (s *Auth) Name() string { return "auth" }

// Handle implements ports.Stage.
func (s *Auth) Handle(ctx context.Context, ev *domain.Event) error {
	if ev.Org != nil {
		return nil
	}
	if ev.Raw.Authorization == "" {
		return domain.NewFailure(domain.FailureAuth, s.Name(), ErrMissingAuthorization)
	}
	org, err := s.authenticator.Authenticate(ctx, ev.Raw.Authorization)
	if err != nil {
		return domain.NewFailure(domain.FailureAuth, s.Name(), err)
	}
	ev.Org = org
	return nil
}

var _ ports.Stage = (*Auth)(nil)
