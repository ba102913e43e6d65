package model

import "errors"

var (
	// ErrNotFound is returned by stores when the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUniqueViolation is returned when an insert hits a uniqueness constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrMissingToken means no bearer credential was supplied.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken means the identity provider rejected the credential.
	ErrInvalidToken = errors.New("invalid identity token")
	// ErrStoreUnavailable means no user record could be established.
	ErrStoreUnavailable = errors.New("user store unavailable")

	// ErrStorageBackend is returned by the object storage proxy.
	ErrStorageBackend = errors.New("storage backend error")
)
