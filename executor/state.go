package executor

// State is the lifecycle position of one run.
type State int

const (
	StateCreated State = iota
	StateLoaded
	StateBound
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoaded:
		return "loaded"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// next is the only legal forward transition from each non-terminal state.
var next = map[State]State{
	StateCreated: StateLoaded,
	StateLoaded:  StateBound,
	StateBound:   StateRunning,
	StateRunning: StateCompleted,
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	return to == StateFailed || next[from] == to
}
