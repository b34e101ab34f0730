package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a request rejected before any state was created
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a record or workflow does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnknownRole is returned when a role id is not in the registry
	ErrUnknownRole = errors.New("unknown role")

	// ErrTimeout marks a worker call that exceeded its deadline
	ErrTimeout = errors.New("worker timeout")

	// ErrTransport marks a worker that was unreachable or answered non-2xx
	ErrTransport = errors.New("worker transport error")

	// ErrCancelled is recorded on the first stage skipped by cancellation
	ErrCancelled = errors.New("cancelled")

	// ErrWorkflowNotRunnable is returned when running a workflow that already started
	ErrWorkflowNotRunnable = errors.New("workflow is not runnable")

	// ErrPolicyBlocked is recorded on a stage whose pre-flight assessment blocked it
	ErrPolicyBlocked = errors.New("blocked by policy")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
