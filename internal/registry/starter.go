package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/internal/ports"
	"github.com/bft-labs/envpool/pkg/log"
)

// startTask is the single unit of work wrapping one identity's Start call.
// outcome and err are written before done is closed and never change after.
type startTask struct {
	done    chan struct{}
	outcome domain.Outcome
	err     error
}

// Starter is the start memoization table. For each identity it runs the
// environment's Start at most once process-wide; every requester, including
// the one that triggered the run, blocks until that single run completes and
// observes the same outcome. A failed start is logged and recorded, never
// raised and never retried.
type Starter struct {
	logger log.Logger
	notify func(id domain.Identity, outcome domain.Outcome, err error, duration time.Duration)

	mu     sync.Mutex
	tasks  map[domain.Identity]*startTask
	states map[domain.Identity]domain.State
}

// NewStarter creates an empty start table.
func NewStarter(logger log.Logger) *Starter {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Starter{
		logger: logger,
		tasks:  make(map[domain.Identity]*startTask),
		states: make(map[domain.Identity]domain.State),
	}
}

// SetNotify installs a callback invoked once per identity after its start
// attempt completes. Must be set before the starter is shared across
// goroutines.
func (s *Starter) SetNotify(fn func(id domain.Identity, outcome domain.Outcome, err error, duration time.Duration)) {
	s.notify = fn
}

// EnsureStarted runs env.Start for id if it has never run, or waits for the
// in-flight or completed run otherwise. The returned outcome is the memoized
// result; the error is non-nil only when ctx is canceled while waiting on a
// run triggered by another caller. The run itself is not canceled and still
// records its outcome.
func (s *Starter) EnsureStarted(ctx context.Context, id domain.Identity, env ports.Environment) (domain.Outcome, error) {
	s.mu.Lock()
	t := s.tasks[id]
	if t != nil {
		s.mu.Unlock()

		select {
		case <-t.done:
			return t.outcome, nil
		case <-ctx.Done():
			return domain.OutcomeUnknown, fmt.Errorf("%w: waiting for start of %s", domain.ErrContextCanceled, id)
		}
	}

	// First requester: publish the task before releasing the lock so every
	// concurrent requester finds it, then run the start outside the lock.
	t = &startTask{done: make(chan struct{})}
	s.tasks[id] = t
	s.states[id] = domain.StateStarting
	s.mu.Unlock()

	// The run must not inherit the first requester's deadline or cancelation:
	// its outcome is recorded forever and shared by every later caller.
	started := time.Now()
	err := env.Start(context.WithoutCancel(ctx))

	s.mu.Lock()
	if err != nil {
		t.outcome = domain.OutcomeFailed
		t.err = err
		s.states[id] = domain.StateFailed
	} else {
		t.outcome = domain.OutcomeSuccess
		s.states[id] = domain.StateRunning
	}
	s.mu.Unlock()
	close(t.done)

	elapsed := time.Since(started)
	if err != nil {
		s.logger.Error("failed starting environment",
			log.Stringer("environment", id),
			log.Duration("duration", elapsed),
			log.Err(err),
		)
	} else {
		s.logger.Info("environment started",
			log.Stringer("environment", id),
			log.Duration("duration", elapsed),
		)
	}
	if s.notify != nil {
		s.notify(id, t.outcome, err, elapsed)
	}

	return t.outcome, nil
}

// Outcome returns the recorded start outcome for id. The second result is
// false while no start attempt has completed.
func (s *Starter) Outcome(id domain.Identity) (domain.Outcome, bool) {
	s.mu.Lock()
	t := s.tasks[id]
	s.mu.Unlock()

	if t == nil {
		return domain.OutcomeUnknown, false
	}
	select {
	case <-t.done:
		return t.outcome, true
	default:
		return domain.OutcomeUnknown, false
	}
}

// StartErr returns the error recorded by a failed start attempt, or nil.
func (s *Starter) StartErr(id domain.Identity) error {
	s.mu.Lock()
	t := s.tasks[id]
	s.mu.Unlock()

	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// State returns the lifecycle state of id. Identities with no recorded start
// report StateStopped.
func (s *Starter) State(id domain.Identity) domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

// SetState records a lifecycle state transition for id. Used by the shutdown
// hook, which owns the stop side of the lifecycle.
func (s *Starter) SetState(id domain.Identity, state domain.State) {
	s.mu.Lock()
	s.states[id] = state
	s.mu.Unlock()
}
