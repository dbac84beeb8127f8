package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateChild is returned when a child name is already taken.
	ErrDuplicateChild = errors.New("duplicate child name")

	// ErrNotAvailable is returned when a request or reload reaches a
	// container that is not running.
	ErrNotAvailable = errors.New("container not available")
)

// CascadeError aggregates the failures of a fan-out over children.
// Err is the first failure in child order; Failed names every child that
// failed.
type CascadeError struct {
	Op     string
	Err    error
	Failed []string
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("%s children failed [%s]: %v", e.Op, strings.Join(e.Failed, ", "), e.Err)
}

// Unwrap returns the first failure.
func (e *CascadeError) Unwrap() error {
	return e.Err
}
