package pipeline

import "errors"

var (
	// ErrAttachmentConflict is returned when a handler already belongs to a
	// different owner. The chain is left unchanged.
	ErrAttachmentConflict = errors.New("handler attached to another owner")

	// ErrNilHandler is returned when a nil handler is inserted.
	ErrNilHandler = errors.New("nil handler")

	// ErrHandlerPresent is returned when a handler is inserted twice.
	ErrHandlerPresent = errors.New("handler already in chain")
)
