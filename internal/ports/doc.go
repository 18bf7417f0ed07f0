// Package ports defines the interfaces that connect the registry core to the
// code that supplies and consumes environments.
//
//   - [Environment]: the lifecycle contract every managed environment
//     implements (start, stop, reload)
//   - [Factory]: constructs a new environment instance for an identity
//
// The registry layer (internal/registry) depends only on these interfaces.
// Concrete environments live with their owners: test code, the exec adapter
// (internal/adapters/execenv), or a remote forwarding client (pkg/remote).
package ports
