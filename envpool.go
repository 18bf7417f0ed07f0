// Package envpool provides a shared pool of expensive, long-lived
// environments. Each environment is built and started at most once per
// process, and suites fan lifecycle operations out over their members.
//
// Example usage:
//
//	cfg := envpool.DefaultConfig()
//	pool, err := envpool.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pool.MustRegisterKind("db", newDatabase)
//	if _, _, err := pool.Acquire(ctx, "db"); err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown(context.Background())
package envpool

import (
	"github.com/bft-labs/envpool/pkg/env"
)

// Pool manages the environment singletons of a process.
// Use New() to create one and register kinds and suites on it.
type Pool = env.Pool

// Config holds the configuration for a Pool.
type Config = env.Config

// Option configures optional behavior of a Pool.
type Option = env.Option

// Environment is the lifecycle contract a pooled instance implements.
type Environment = env.Environment

// Factory builds a fresh instance of an environment kind.
type Factory = env.Factory

// Identity names a registered environment or suite.
type Identity = env.Identity

// Outcome is the memoized result of a start attempt.
type Outcome = env.Outcome

// MemberResult pairs a suite member with its operation error.
type MemberResult = env.MemberResult

// New creates a Pool with the given configuration and options.
func New(cfg Config, opts ...Option) (*Pool, error) {
	return env.New(cfg, opts...)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	cfg := Config{}
	cfg.SetDefaults()
	return cfg
}

// WithLogger sets a custom logger for structured logging.
var WithLogger = env.WithLogger

// WithPlugin registers a plugin to be initialized by InitPlugins.
var WithPlugin = env.WithPlugin

// WithEventHandler sets a handler for pool events.
var WithEventHandler = env.WithEventHandler
