package models

import "errors"

var (
	// ErrLockBusy is returned by acquire when a live lock already exists for
	// the resource. Callers retry with backoff; never user-visible.
	ErrLockBusy = errors.New("sync lock is held by another run")
	// ErrNotOwner is returned by release when the owner token does not match
	// the current holder. Indicates a late release from a superseded run.
	ErrNotOwner = errors.New("sync lock is owned by a different token")
	// ErrCursorNotFound is returned when a collection has never been synced.
	ErrCursorNotFound = errors.New("sync cursor not found")
	// ErrUpstreamUnavailable is returned when the commerce platform cannot be
	// reached or answers with a server error. Retried; cursor not advanced.
	ErrUpstreamUnavailable = errors.New("platform is unavailable")
	// ErrUnauthorized is returned on signature or admin key mismatch.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedPayload is returned when a webhook body is missing required fields.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)
