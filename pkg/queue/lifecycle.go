package queue

import (
	"context"

	"github.com/dmitrymomot/taskqueue/pkg/statemachine"
)

// Lifecycle events
const (
	EventClaim    = statemachine.StringEvent("claim")
	EventComplete = statemachine.StringEvent("complete")
	EventFail     = statemachine.StringEvent("fail")
)

// Status implements statemachine.State
func (s Status) Name() string {
	return string(s)
}

// lifecycle: queued -> active -> completed | failed.
// completed and failed are terminal.
var lifecycle = statemachine.MustNewTable(
	statemachine.Transition{From: StatusQueued, To: StatusActive, Event: EventClaim},
	statemachine.Transition{From: StatusActive, To: StatusCompleted, Event: EventComplete},
	statemachine.Transition{From: StatusActive, To: StatusFailed, Event: EventFail},
)

// ClaimTarget is the status ClaimNext moves a queued record to
var ClaimTarget = mustNext(StatusQueued, EventClaim)

func mustNext(from Status, event statemachine.Event) Status {
	next, err := Next(from, event)
	if err != nil {
		panic(err)
	}
	return next
}

// Next returns the status reached from `from` when event fires
func Next(from Status, event statemachine.Event) (Status, error) {
	next, err := lifecycle.Next(context.Background(), from, event, nil)
	if err != nil {
		return "", err
	}
	return next.(Status), nil
}

// CanTransition reports whether a record may move directly from `from` to `to`
func CanTransition(from, to Status) bool {
	return lifecycle.Allows(from, to)
}

// SourcesOf returns the statuses a record must currently hold for a write
// setting `to` to be legal. Stores use it to build conditional updates.
func SourcesOf(to Status) []Status {
	states := lifecycle.Sources(to)
	out := make([]Status, 0, len(states))
	for _, s := range states {
		out = append(out, s.(Status))
	}
	return out
}
