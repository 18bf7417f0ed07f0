package env

import "time"

// StartEvent is emitted once per identity when its start attempt completes.
type StartEvent struct {
	ID       Identity
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// StopErrorEvent is emitted when stopping an environment fails during
// shutdown.
type StopErrorEvent struct {
	ID  Identity
	Err error
}

// EventHandler receives pool events. Methods are called synchronously from
// the goroutine performing the operation, so implementations should return
// quickly.
type EventHandler interface {
	// OnStartOutcome is called after an identity's one-time start attempt
	// finishes, whether it succeeded or failed.
	OnStartOutcome(event StartEvent)

	// OnStopError is called when an environment fails to stop during
	// shutdown.
	OnStopError(event StopErrorEvent)
}
