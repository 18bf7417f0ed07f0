package domain

// Identity is a stable key distinguishing one environment kind (or suite)
// from another. Identities are registered once and used as map keys in the
// instance and start caches, so they must be unique process-wide.
type Identity string

// IsZero reports whether the identity is empty.
func (i Identity) IsZero() bool { return i == "" }

// String returns the identity as a plain string.
func (i Identity) String() string { return string(i) }
