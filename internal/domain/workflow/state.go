package workflow

// State is a lifecycle state shared by workflow instances and their stages.
// Workflows move planning -> in_progress -> completed|failed, stages move
// pending -> in_progress -> completed|failed.
type State string

const (
	StatePlanning   State = "planning"
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var validStates = map[State]bool{
	StatePlanning:   true,
	StatePending:    true,
	StateInProgress: true,
	StateCompleted:  true,
	StateFailed:     true,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateFailed:    true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
