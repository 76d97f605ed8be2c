package model

import "errors"

var (
	// ErrInvalidRange marks a malformed time range or one not covered by
	// any allocation of the resource.
	ErrInvalidRange = errors.New("invalid time range")
	// ErrCapacityExceeded means no mirror has room and, for approval-gated
	// allocations, the waiting list is full as well.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrNotFound marks an unknown allocation, reservation or resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyConfirmed is returned when confirming a reservation twice.
	ErrAlreadyConfirmed = errors.New("reservation already confirmed")
	// ErrConflict is a transient isolation violation. The scheduler retries
	// it a bounded number of times before giving up.
	ErrConflict = errors.New("serialization conflict")
)
