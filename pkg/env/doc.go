// Package env provides a process-local pool of shared, expensive-to-start
// environments such as databases, brokers, or fake services used by test and
// development harnesses.
//
// A [Pool] guarantees that each registered identity has exactly one live
// instance, that the instance's start routine runs at most once no matter how
// many goroutines request it concurrently, and that suites (aggregates of
// several environments) start, stop, and reload their members uniformly with
// per-member failure isolation.
//
// # Basic Usage
//
//	pool, err := env.New(env.Config{Name: "integration"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pool.MustRegisterKind("db", func(ctx context.Context) (env.Environment, error) {
//	    return newPostgresFixture(), nil
//	})
//	pool.MustRegisterKind("cache", func(ctx context.Context) (env.Environment, error) {
//	    return newRedisFixture(), nil
//	})
//	if err := pool.RegisterSuite("backend", "db", "cache"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Any number of goroutines may do this concurrently; the database
//	// constructs and starts once.
//	db, outcome, err := pool.Acquire(ctx, "db")
//
//	// At teardown, stop everything that was built.
//	_ = pool.Shutdown(context.Background())
//
// # Start Failures
//
// A failed start is logged and memoized, never returned as an error from
// [Pool.Acquire] and never retried. Callers that must know whether an
// environment is functionally ready inspect the returned [Outcome] or query
// [Pool.Outcome] and [Pool.StartErr].
//
// # Events
//
// To observe start outcomes and stop failures, implement [EventHandler] and
// pass it via [WithEventHandler].
package env
