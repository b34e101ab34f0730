package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guard for a trigger rejected it
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrTerminalState is returned when firing a trigger on a finished machine
	ErrTerminalState = errors.New("state is terminal")
)
