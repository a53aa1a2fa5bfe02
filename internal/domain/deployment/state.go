package deployment

// State is a step of the remote deployment lifecycle.
type State string

const (
	// Idle is the initial state of every run.
	Idle State = "idle"
	// Staged means new content is uploaded and the pack is on the host.
	Staged State = "staged"
	// ServiceStopping means the stop command was issued.
	ServiceStopping State = "service_stopping"
	// DirectoriesReplacing means the service stopped and content is being swapped.
	DirectoriesReplacing State = "directories_replacing"
	// ServiceStarting means the directories were replaced and start was issued.
	ServiceStarting State = "service_starting"
	// HealthChecking means the start command succeeded and the unit is probed.
	HealthChecking State = "health_checking"
	// Healthy is the terminal success state.
	Healthy State = "healthy"
	// Failed is the terminal failure state.
	Failed State = "failed"
)

// next lists the single forward edge of each non-terminal state.
//
//nolint:gochecknoglobals // Static transition table.
var next = map[State]State{
	Idle:                 Staged,
	Staged:               ServiceStopping,
	ServiceStopping:      DirectoriesReplacing,
	DirectoriesReplacing: ServiceStarting,
	ServiceStarting:      HealthChecking,
	HealthChecking:       Healthy,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Healthy || s == Failed
}

// Next returns the forward successor of s, if any.
func (s State) Next() (State, bool) {
	n, ok := next[s]

	return n, ok
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}

	if to == Failed {
		return true
	}

	n, ok := next[from]

	return ok && n == to
}

func (s State) String() string {
	return string(s)
}
