package review

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleAction means an action token referenced a record that no longer
	// exists or already advanced past the state the control belonged to.
	ErrStaleAction = errors.New("stale action")

	// ErrUnauthorized means a non-reviewer attempted a reviewer-only
	// transition. Denied silently at the transport, logged here.
	ErrUnauthorized = errors.New("not authorized")

	// ErrPendingReview means the requester already has a submission in front
	// of reviewers and must wait for a verdict before starting another.
	ErrPendingReview = errors.New("submission pending review")
)

// ValidationError reports malformed requester input. The handler re-prompts
// the same step; no state is advanced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// GatewayError wraps a failed transport call. The transition that hit it is
// treated as unsuccessful and the record stays in its pre-transition state.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
