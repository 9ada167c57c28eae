// Package statemachine provides an immutable, validated transition Table with
// no current state. It answers "where does event E take state S?", "which
// states may enter T?" and "is S terminal?", which fits records whose state is
// persisted elsewhere and changed through conditional writes.
//
// States and events are anything with a Name; StringState and StringEvent cover
// the common case.
//
// # Usage
//
//	const (
//	    Draft    = statemachine.StringState("draft")
//	    InReview = statemachine.StringState("in_review")
//	    Submit   = statemachine.StringEvent("submit")
//	)
//
//	table := statemachine.MustNewTable(
//	    statemachine.Transition{From: Draft, To: InReview, Event: Submit},
//	)
//
//	next, err := table.Next(ctx, Draft, Submit, nil) // InReview
//
// # Guards
//
// Guards veto a transition based on runtime data. When several transitions
// share a from-state and event, the first whose guards all pass is taken.
//
// Next fails with a *TransitionError, matched by errors.Is against
// ErrNoTransition or ErrRejected.
package statemachine
