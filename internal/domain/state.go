package domain

// State represents the lifecycle state of a single environment.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateFailed
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateFailed:
		return "Failed"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}
