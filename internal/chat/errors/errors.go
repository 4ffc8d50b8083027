package errors

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")

	ErrConversationExists = errors.New("conversation already exists")

	ErrMarkerNotFound = errors.New("read marker not found")

	ErrInvalidID = errors.New("invalid conversation ID format")
)
