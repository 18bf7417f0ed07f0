package env

import (
	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/internal/ports"
	"github.com/bft-labs/envpool/internal/registry"
)

// Environment is the lifecycle contract every managed environment implements:
// start, stop, reload. Concrete environments and suites both satisfy it.
type Environment = ports.Environment

// Factory constructs a new environment instance for an identity.
// A factory error propagates to the requesting caller and leaves the identity
// eligible for construction retry on the next request.
type Factory = ports.Factory

// Identity is a stable key distinguishing one environment kind (or suite)
// from another.
type Identity = domain.Identity

// Outcome is the memoized result of an environment's one-time start attempt.
type Outcome = domain.Outcome

// State represents the lifecycle state of a single environment.
type State = domain.State

// MemberResult records the outcome of one member invocation during a suite
// fan-out.
type MemberResult = registry.MemberResult

// Group is the aggregated lifecycle over an ordered list of members.
// Suites resolved through a Pool are of this type.
type Group = registry.Group

// Outcome values.
const (
	OutcomeUnknown = domain.OutcomeUnknown
	OutcomeSuccess = domain.OutcomeSuccess
	OutcomeFailed  = domain.OutcomeFailed
)

// State values.
const (
	StateStopped  = domain.StateStopped
	StateStarting = domain.StateStarting
	StateRunning  = domain.StateRunning
	StateFailed   = domain.StateFailed
	StateStopping = domain.StateStopping
)

// Sentinel errors returned by the pool, checkable with errors.Is.
var (
	ErrUnknownIdentity   = domain.ErrUnknownIdentity
	ErrDuplicateIdentity = domain.ErrDuplicateIdentity
	ErrNilFactory        = domain.ErrNilFactory
	ErrInvalidIdentity   = domain.ErrInvalidIdentity
	ErrSuiteMember       = domain.ErrSuiteMember
	ErrPoolClosed        = domain.ErrPoolClosed
	ErrContextCanceled   = domain.ErrContextCanceled
	ErrInvalidConfig     = domain.ErrInvalidConfig
)
