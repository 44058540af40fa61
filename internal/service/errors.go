package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidWindow  = fmt.Errorf("%w: rental end must not be before its start", ErrInvalidRequest)
	ErrOwnItem        = fmt.Errorf("%w: cannot borrow your own item", ErrInvalidRequest)
)

// Outcome reports what an action did when it returned without error.
type Outcome int

const (
	// OutcomeApplied means the status write succeeded.
	OutcomeApplied Outcome = iota + 1
	// OutcomeStale means the stored status no longer allows the action,
	// usually because the other party acted first.
	OutcomeStale
	// OutcomeDuplicate means the same action is already being written.
	OutcomeDuplicate
	// OutcomeIgnored means the action is accepted but changes nothing.
	OutcomeIgnored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeIgnored:
		return "ignored"
	}
	return "unknown"
}
