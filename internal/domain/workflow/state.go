package workflow

// State represents a lifecycle state of an approval task
type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateEscalated State = "ESCALATED"
	StateDelegated State = "DELEGATED"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateApproved:  true,
	StateRejected:  true,
	StateEscalated: true,
	StateDelegated: true,
}

// Every state except Pending is terminal: a task leaves Pending exactly once.
var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateEscalated: true,
	StateDelegated: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid task lifecycle state
func (s State) IsValid() bool {
	return validStates[s]
}
