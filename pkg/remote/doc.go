// Package remote provides location-transparent forwarding of environment
// lifecycle operations over HTTP.
//
// [Client] implements the Environment contract by forwarding start, stop,
// and reload to a pool served in another process by [Handler]. Both sides
// purely delegate; no lifecycle logic lives here.
//
// The wire surface is small:
//
//	GET  /v1/environments             list identities with state and outcome
//	POST /v1/environments/{id}/start  acquire the started environment
//	POST /v1/environments/{id}/stop   stop the built instance
//	POST /v1/environments/{id}/reload reload the built instance
//
// Requests carry a bearer token when the server is configured with one.
package remote
