package lifecycle

import (
	"errors"
	"fmt"
)

// Common lifecycle errors.
var (
	// ErrInvalidTransition reports a state change outside the legal graph.
	// It indicates a programming or ordering defect and is never retried.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrExtensionFailure reports that a hook or listener failed during a
	// transition. The component is left in StateFailed.
	ErrExtensionFailure = errors.New("lifecycle extension failed")

	// ErrShutdownTimeout reports that tracked workers did not finish in time.
	ErrShutdownTimeout = errors.New("shutdown timeout")
)

// TransitionError describes an attempted transition that the graph forbids.
type TransitionError struct {
	Component string
	Event     string
	State     State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition %q in state %s", e.Component, e.Event, e.State)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Error wraps a failure raised while running a lifecycle operation.
type Error struct {
	Component string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Component, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrExtensionFailure.
func (e *Error) Is(target error) bool {
	return target == ErrExtensionFailure
}

// isLifecycleError reports whether err already belongs to this package's
// error kinds and must not be wrapped again.
func isLifecycleError(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return true
	}
	var le *Error
	return errors.As(err, &le)
}
