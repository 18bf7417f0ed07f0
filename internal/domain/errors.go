package domain

import "errors"

// Domain errors represent error conditions in the envpool domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrUnknownIdentity is returned when no factory or suite is registered
	// for the requested identity.
	ErrUnknownIdentity = errors.New("envpool: unknown identity")

	// ErrDuplicateIdentity is returned when an identity is registered twice.
	ErrDuplicateIdentity = errors.New("envpool: duplicate identity")

	// ErrNilFactory is returned when a kind is registered without a factory.
	ErrNilFactory = errors.New("envpool: nil factory")

	// ErrInvalidIdentity is returned when an empty identity is registered.
	ErrInvalidIdentity = errors.New("envpool: invalid identity")

	// ErrSuiteMember is returned when a suite references an identity that is
	// not a registered kind.
	ErrSuiteMember = errors.New("envpool: suite member is not a registered kind")

	// ErrPoolClosed is returned when an operation is attempted after
	// shutdown has begun.
	ErrPoolClosed = errors.New("envpool: pool closed")

	// ErrContextCanceled is returned when a caller abandons the wait for an
	// in-flight start. The start itself still runs to completion.
	ErrContextCanceled = errors.New("envpool: context canceled")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("envpool: invalid configuration")
)
