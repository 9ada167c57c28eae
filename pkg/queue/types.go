package queue

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle position of a task
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

// Statuses lists every known status in lifecycle order
var Statuses = []Status{StatusQueued, StatusActive, StatusFailed, StatusCompleted}

// Valid checks if the status is one of the known values
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusActive, StatusFailed, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves this status
func (s Status) Terminal() bool {
	return s.Valid() && lifecycle.Terminal(s)
}

func (s Status) String() string {
	return string(s)
}

// Task is the persisted unit of work.
// Payload is opaque to the queue and owned by the Executable registered for Type.
type Task struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Status  Status          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
	Output  []byte          `json:"output,omitempty"`
	Created time.Time       `json:"created"`
	Updated time.Time       `json:"updated"`
}

// Clone returns a deep copy so callers cannot mutate store-owned slices
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Payload != nil {
		c.Payload = append(json.RawMessage(nil), t.Payload...)
	}
	if t.Output != nil {
		c.Output = append([]byte(nil), t.Output...)
	}
	return &c
}

// Update is a partial write applied by Store.Update.
// Zero Status, nil Message and nil Output leave the stored values untouched.
type Update struct {
	Status  Status
	Message *string
	Output  []byte
}

// Finalize builds the update persisting an execution outcome
func Finalize(o Outcome) Update {
	msg := o.Message
	return Update{
		Status:  o.Status,
		Message: &msg,
		Output:  o.Output,
	}
}

// Result describes what a single RunOne call did
type Result struct {
	Claimed bool
	TaskID  string
	Type    string
	Status  Status
	Message string
}

// Succeeded reports whether a task was claimed and completed
func (r Result) Succeeded() bool {
	return r.Claimed && r.Status == StatusCompleted
}
