package domain

import "errors"

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrEmptyContent    = errors.New("message content required")
	ErrContentTooLarge = errors.New("message content too large")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotMessageOwner = errors.New("only the sender can delete a message")
)

var ErrInvalidCursor = errors.New("invalid cursor")
