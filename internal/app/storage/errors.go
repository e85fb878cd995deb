package storage

import "errors"

// Error kinds surfaced by stores and services. Callers classify failures
// with errors.Is; anything not wrapping one of these is an unclassified
// store failure and propagates verbatim.
var (
	// ErrNotFound covers both absent entities and entities the caller is
	// not authorized to see; the two are deliberately conflated for apps,
	// deployments and packages.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists signals a duplicate email, ownership claim or
	// collaborator; retrying with the same input will not succeed.
	ErrAlreadyExists = errors.New("already exists")

	// ErrExpired marks an access key past its expiry. The key still exists
	// as data, which distinguishes this from ErrNotFound.
	ErrExpired = errors.New("expired")

	// ErrInvalid marks malformed input, such as unsafe collaborator map
	// keys or an empty bulk history update.
	ErrInvalid = errors.New("invalid")
)
