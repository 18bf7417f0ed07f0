// Package domain contains the core types of the envpool domain: environment
// identities, start outcomes, lifecycle states, and the sentinel errors
// returned by the public API.
//
// The package depends only on the standard library so that every other layer
// can import it without cycles.
package domain
