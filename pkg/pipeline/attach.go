package pipeline

import (
	"fmt"
	"sync"
)

// Container event types fired on a chain owner.
const (
	EventAddHandler    = "addHandler"
	EventRemoveHandler = "removeHandler"
)

// Owner is the container a chain belongs to.
type Owner interface {
	Name() string

	// FireContainerEvent notifies the owner's container listeners.
	FireContainerEvent(typ string, data interface{})
}

// Attachable is implemented by handlers that need to know their owner.
type Attachable interface {
	// Attach binds the handler to o. Attaching to a different owner while
	// attached fails with ErrAttachmentConflict; re-attaching to the same
	// owner succeeds.
	Attach(o Owner) error

	// Detach clears the owner.
	Detach()

	// Owner returns the current owner, or nil.
	Owner() Owner
}

// AttachPoint implements Attachable. It is embedded by HandlerBase.
type AttachPoint struct {
	mu    sync.Mutex
	owner Owner
}

// Attach binds the handler to o.
func (a *AttachPoint) Attach(o Owner) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner != nil && a.owner != o {
		return fmt.Errorf("%w: owned by %s", ErrAttachmentConflict, a.owner.Name())
	}
	a.owner = o
	return nil
}

// Detach clears the owner.
func (a *AttachPoint) Detach() {
	a.mu.Lock()
	a.owner = nil
	a.mu.Unlock()
}

// Owner returns the current owner.
func (a *AttachPoint) Owner() Owner {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}
