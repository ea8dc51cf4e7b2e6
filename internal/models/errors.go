package models

import "errors"

// Base error taxonomy. Handlers map these to HTTP statuses with errors.Is;
// the specific errors below wrap a base error so both checks work.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("conflict")
	ErrExpired            = errors.New("expired")
	ErrInvalid            = errors.New("invalid request")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

var (
	ErrGroupFull         = wrap(ErrConflict, "group is full")
	ErrAlreadyJoined     = wrap(ErrConflict, "already joined this trip")
	ErrLinkDisabled      = wrap(ErrUnauthorized, "invitation link is disabled")
	ErrCannotRemoveAdmin = wrap(ErrConflict, "the trip organizer cannot be removed")
	ErrNotMember         = wrap(ErrUnauthorized, "not a member of this trip")
	ErrHotelNotFound     = wrap(ErrNotFound, "hotel is not on the shortlist")
	ErrMaxUsesReached    = wrap(ErrConflict, "share link has reached its maximum uses")

	// ErrRevConflict reports a lost optimistic-concurrency race on a
	// CompareAndSet. Services retry a bounded number of times before
	// surfacing it as a plain Conflict.
	ErrRevConflict = wrap(ErrConflict, "aggregate was modified concurrently")
)

type wrappedError struct {
	base error
	msg  string
}

func wrap(base error, msg string) error {
	return &wrappedError{base: base, msg: msg}
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.base }
