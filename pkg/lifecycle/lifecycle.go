package lifecycle

import "context"

// Lifecycle is implemented by every component managed by dispatch.
type Lifecycle interface {
	// Init prepares the component. It may be called once, in StateNew.
	Init(ctx context.Context) error

	// Start makes the component available. Starting a started component is
	// a no-op; starting a new one initializes it first; starting a failed
	// one stops it first.
	Start(ctx context.Context) error

	// Stop makes the component unavailable. Stopping a stopped component is
	// a no-op.
	Stop(ctx context.Context) error

	// Destroy releases the component for good. Destroying twice is a no-op.
	Destroy(ctx context.Context) error

	// State returns the current state. It never fails.
	State() State

	// StateName returns State().String().
	StateName() string

	AddListener(l Listener)
	RemoveListener(l Listener)
	Listeners() []Listener
}

// Event is delivered to listeners on every state entry and for the explicit
// event types (periodic, configure_start, configure_stop).
type Event struct {
	// Ctx is the context of the operation that fired the event. A listener
	// calling back into Source must pass it on, or it blocks on the
	// operation lock.
	Ctx    context.Context
	Source Lifecycle
	Type   string
	Data   interface{}
}

// Listener observes lifecycle events. Listeners run synchronously on the
// goroutine performing the transition. A returned error is treated like a
// hook failure.
type Listener interface {
	LifecycleEvent(ev Event) error
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ev Event) error

// LifecycleEvent calls f(ev).
func (f ListenerFunc) LifecycleEvent(ev Event) error {
	return f(ev)
}

// Hooks supply the work behind each lifecycle operation.
type Hooks interface {
	InitInternal(ctx context.Context) error
	StartInternal(ctx context.Context) error
	StopInternal(ctx context.Context) error
	DestroyInternal(ctx context.Context) error
}

// SingleUse marks components that are destroyed as soon as they stop.
type SingleUse interface {
	SingleUse()
}

// Registrar is the management registration hook invoked when components
// are initialized and destroyed.
type Registrar interface {
	Register(name string, c Lifecycle) error
	Unregister(name string) error
}
