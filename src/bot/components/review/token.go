package review

import (
	"fmt"
	"strings"
)

// Verb is the closed set of actions a reviewer control can carry.
type Verb string

const (
	VerbApprove Verb = "approve"
	VerbReject  Verb = "reject"
	VerbAdjust  Verb = "adjust"
	VerbPost    Verb = "post"
	VerbBack    Verb = "back"
)

// Action is a decoded control token: <verb>_<requesterID>[_<param>].
// Only VerbAdjust carries a param (the selected percentage).
type Action struct {
	Verb        Verb
	RequesterID string
	Param       string
}

// Token encodes the action for use as a control's custom ID.
func (a Action) Token() string {
	if a.Param != "" {
		return fmt.Sprintf("%s_%s_%s", a.Verb, a.RequesterID, a.Param)
	}
	return fmt.Sprintf("%s_%s", a.Verb, a.RequesterID)
}

// ParseAction decodes a control token. Anything outside the closed verb set
// or with the wrong shape is a stale action, never a crash.
func ParseAction(token string) (Action, error) {
	parts := strings.SplitN(token, "_", 3)
	if len(parts) < 2 || parts[1] == "" {
		return Action{}, fmt.Errorf("malformed token %q: %w", token, ErrStaleAction)
	}

	a := Action{Verb: Verb(parts[0]), RequesterID: parts[1]}
	if len(parts) == 3 {
		a.Param = parts[2]
	}

	switch a.Verb {
	case VerbAdjust:
		if a.Param == "" {
			return Action{}, fmt.Errorf("adjust token %q missing percent: %w", token, ErrStaleAction)
		}
	case VerbApprove, VerbReject, VerbPost, VerbBack:
		if a.Param != "" {
			return Action{}, fmt.Errorf("token %q has unexpected param: %w", token, ErrStaleAction)
		}
	default:
		return Action{}, fmt.Errorf("unknown verb in token %q: %w", token, ErrStaleAction)
	}

	return a, nil
}
