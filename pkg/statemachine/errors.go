package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("transition needs from, to and event")
	ErrInvalidEvent      = errors.New("event cannot be nil")
	ErrInvalidState      = errors.New("state cannot be nil")

	// ErrNoTransition matches a TransitionError where the table has no edge
	ErrNoTransition = errors.New("no transition")
	// ErrRejected matches a TransitionError where every edge was vetoed by a guard
	ErrRejected = errors.New("transition rejected by guards")
)

// TransitionError reports why event could not move a record out of From.
type TransitionError struct {
	From     string
	Event    string
	Rejected bool
}

func (e *TransitionError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("%s: %s on %s", ErrRejected, e.Event, e.From)
	}
	return fmt.Sprintf("%s from %s on %s", ErrNoTransition, e.From, e.Event)
}

func (e *TransitionError) Is(target error) bool {
	if e.Rejected {
		return target == ErrRejected
	}
	return target == ErrNoTransition
}
