package domain

import (
	"errors"
	"fmt"
)

// FailureKind categorizes what went wrong for one event.
type FailureKind string

const (
	FailureDecode        FailureKind = "decode"
	FailureAuth          FailureKind = "auth"
	FailureObjectFetch   FailureKind = "object_fetch"
	FailureParseRequest  FailureKind = "parse_request"
	FailureParseResponse FailureKind = "parse_response"
	FailurePrompt        FailureKind = "prompt"
	FailureRateLimit     FailureKind = "rate_limit"
	FailureLogRecord     FailureKind = "log_record"
	FailureInternal      FailureKind = "internal"
)

// Failure is the halting signal of the stage chain: the first stage to
// return one stops that event's traversal. It is data, not control flow;
// stages return it instead of panicking.
type Failure struct {
	Kind  FailureKind
	Stage string
	Err   error
}

// NewFailure wraps a collaborator error into a stage failure.
func NewFailure(kind FailureKind, stage string, err error) *Failure {
	return &Failure{Kind: kind, Stage: stage, Err: err}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("stage %s (%s): %v", f.Stage, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure unwraps err into a *Failure if one is in its chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
