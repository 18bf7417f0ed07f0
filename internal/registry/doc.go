// Package registry implements the process-local environment core: the
// singleton instance cache, the one-time start memoization table, the suite
// fan-out group, and the shutdown hook.
//
// Concurrency model:
//
//   - [Registry] guarantees at most one live instance per identity.
//     Construction is mutually exclusive per identity; requests for distinct
//     identities never block on each other.
//   - [Starter] guarantees the start logic of an identity runs at most once
//     process-wide. All concurrent requesters block until the single run
//     completes and observe the same outcome.
//   - [Group] fans lifecycle operations out to an ordered member list,
//     attempting every member regardless of individual failures.
//   - [Hook] stops every built instance once at teardown, logging failures
//     and continuing.
//
// The Registry and Starter maintain independent locks; neither calls into
// the other while holding its own map lock.
package registry
