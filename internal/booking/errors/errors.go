package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrStaleStatus = errors.New("booking status changed concurrently")

	ErrLockHeld = errors.New("provider confirmation lock is held")
)
