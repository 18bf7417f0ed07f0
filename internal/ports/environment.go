package ports

import "context"

// Environment is the lifecycle contract every managed environment implements.
// A single concrete environment and an aggregated suite both satisfy this
// interface, so the registry and starter treat them uniformly.
//
// Implementations must tolerate Stop being called on an environment whose
// Start failed or never ran; the shutdown hook stops every registered
// instance it can reach.
type Environment interface {
	// Start brings the environment up. It is invoked at most once per
	// identity for the lifetime of the process.
	Start(ctx context.Context) error

	// Stop tears the environment down.
	Stop(ctx context.Context) error

	// Reload refreshes the environment in place, for example after its
	// backing configuration changed.
	Reload(ctx context.Context) error
}

// Factory constructs a new environment instance. It is invoked under the
// registry's per-identity critical section, at most once per identity unless
// it returns an error, in which case the identity stays unregistered and a
// later request retries construction.
type Factory func(ctx context.Context) (Environment, error)
