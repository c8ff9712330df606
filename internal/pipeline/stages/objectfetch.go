package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/relaystack/ingest/internal/core/domain"
	"github.com/relaystack/ingest/internal/core/ports"
)

// ErrNoOrganization is returned when a stage that needs a resolved
// organization runs before authentication attached one.
var ErrNoOrganization = errors.New("event has no resolved organization")

// ObjectFetch pulls the stored request/response bodies for the event
// out of object storage. The gateway writes one blob per request,
// keyed by organization and request id, shaped as
// {"request": <json string>, "response": <json string>}.
type ObjectFetch struct {
	fetcher ports.ObjectFetcher
}

// NewObjectFetch creates the payload-fetch stage.
func NewObjectFetch(f ports.ObjectFetcher) *ObjectFetch {
	return &ObjectFetch{fetcher: f}
}

// Name implements ports.Stage.
func (s *ObjectFetch) Name() string { return "object_fetch" }

// PayloadKey is the object-store key layout for a request's stored
// bodies.
func PayloadKey(orgID, requestID string) string {
	return fmt.Sprintf("organizations/%s/requests/%s/raw_request_response_body", orgID, requestID)
}

// Handle implements ports.Stage.
func (s *ObjectFetch) Handle(ctx context.Context, ev *domain.Event) error {
	if ev.Payload != nil {
		return nil
	}
	if ev.Org == nil {
		return domain.NewFailure(domain.FailureObjectFetch, s.Name(), ErrNoOrganization)
	}

	blob, err := s.fetcher.Fetch(ctx, PayloadKey(ev.Org.ID, ev.RequestID()))
	if err != nil {
		return domain.NewFailure(domain.FailureObjectFetch, s.Name(), err)
	}

	req := gjson.GetBytes(blob, "request")
	resp := gjson.GetBytes(blob, "response")
	if !req.Exists() && !resp.Exists() {
		return domain.NewFailure(domain.FailureObjectFetch, s.Name(),
			fmt.Errorf("payload blob for request %s has neither request nor response field", ev.RequestID()))
	}

	ev.Payload = &domain.Payload{
		RequestBody:  []byte(req.String()),
		ResponseBody: []byte(resp.String()),
	}
	return nil
}

var _ ports.Stage = (*ObjectFetch)(nil)
