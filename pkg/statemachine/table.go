package statemachine

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Table is an immutable set of transitions. It holds no current state, so a
// single Table can be shared by any number of records whose state lives elsewhere
// (for example in a database row).
type Table struct {
	// [fromState][event] -> candidate transitions in declaration order
	transitions map[string]map[string][]Transition
	states      map[string]State
}

// NewTable validates and indexes the given transitions.
func NewTable(transitions ...Transition) (*Table, error) {
	t := &Table{
		transitions: make(map[string]map[string][]Transition),
		states:      make(map[string]State),
	}

	for i, tr := range transitions {
		if tr.From == nil || tr.To == nil || tr.Event == nil {
			return nil, fmt.Errorf("transition[%d]: %w", i, ErrInvalidTransition)
		}

		from := tr.From.Name()
		if _, ok := t.transitions[from]; !ok {
			t.transitions[from] = make(map[string][]Transition)
		}
		t.transitions[from][tr.Event.Name()] = append(t.transitions[from][tr.Event.Name()], tr)
		t.states[from] = tr.From
		t.states[tr.To.Name()] = tr.To
	}

	return t, nil
}

// MustNewTable is like NewTable but panics on invalid input.
func MustNewTable(transitions ...Transition) *Table {
	t, err := NewTable(transitions...)
	if err != nil {
		panic(fmt.Sprintf("failed to create transition table: %v", err))
	}
	return t
}

// Next returns the state reached from `from` when `event` fires.
// The first transition whose guards all pass wins.
func (t *Table) Next(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil {
		return nil, ErrInvalidState
	}
	if event == nil {
		return nil, ErrInvalidEvent
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, &TransitionError{From: from.Name(), Event: event.Name()}
	}

	for _, tr := range candidates {
		if guardsPass(ctx, tr.Guards, from, event, data) {
			return tr.To, nil
		}
	}

	return nil, &TransitionError{From: from.Name(), Event: event.Name(), Rejected: true}
}

// Allows reports whether any transition leads directly from `from` to `to`,
// ignoring guards.
func (t *Table) Allows(from, to State) bool {
	if from == nil || to == nil {
		return false
	}
	for _, candidates := range t.transitions[from.Name()] {
		for _, tr := range candidates {
			if tr.To.Name() == to.Name() {
				return true
			}
		}
	}
	return false
}

// Sources returns every state with a direct transition into `to`, sorted by name.
func (t *Table) Sources(to State) []State {
	if to == nil {
		return nil
	}

	var sources []State
	seen := make(map[string]struct{})
	for from, byEvent := range t.transitions {
		for _, candidates := range byEvent {
			for _, tr := range candidates {
				if tr.To.Name() != to.Name() {
					continue
				}
				if _, ok := seen[from]; ok {
					continue
				}
				seen[from] = struct{}{}
				sources = append(sources, t.states[from])
			}
		}
	}
	slices.SortFunc(sources, func(a, b State) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return sources
}

// Terminal reports whether no transition leaves the given state.
func (t *Table) Terminal(s State) bool {
	if s == nil {
		return false
	}
	return len(t.transitions[s.Name()]) == 0
}

func guardsPass(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, guard := range guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
