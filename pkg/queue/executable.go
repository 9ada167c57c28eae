package queue

import "context"

// Executable is the unit of work behind a task type.
type Executable interface {
	// Valid is a cheap, side-effect-free structural check of the payload.
	// It must not panic; decoding failures yield false.
	Valid() bool

	// Execute performs the work with up to maxTries attempts, stopping at the
	// first success, and reports the final outcome. It does not touch the store.
	Execute(ctx context.Context, maxTries int) Outcome

	// ErrorMessage returns the last failure message, or, when verbose,
	// the message followed by whatever request/response detail was captured.
	ErrorMessage(verbose bool) string
}

// Factory builds the Executable for a claimed task
type Factory func(task *Task) Executable

// Outcome is what Execute hands back to the manager for persisting
type Outcome struct {
	Status  Status
	Message string
	Output  []byte
}

// Succeeded reports whether the outcome is StatusCompleted
func (o Outcome) Succeeded() bool {
	return o.Status == StatusCompleted
}

// Completed builds a successful outcome
func Completed(output []byte) Outcome {
	return Outcome{Status: StatusCompleted, Output: output}
}

// Failed builds a failed outcome
func Failed(message string, output []byte) Outcome {
	return Outcome{Status: StatusFailed, Message: message, Output: output}
}
