package models

import "errors"

// Domain error taxonomy. Every operation in the service maps its failure
// onto one of these so the HTTP layer can translate uniformly.
var (
	// ErrNotFound means the document (or annotation) does not exist or is
	// not owned by the caller. Ownership misses deliberately look the
	// same as absence so nothing leaks about other users' documents.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the caller's identity failed verification.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation means an annotation or request failed the data model
	// invariants.
	ErrValidation = errors.New("validation failed")

	// ErrTransport means storage or the network was unavailable. The
	// caller's in-memory state is intact and the operation may be retried.
	ErrTransport = errors.New("transport failure")
)
