package container

import "github.com/bft-labs/dispatch/pkg/pipeline"

// Container event types.
const (
	EventAddChild      = "addChild"
	EventRemoveChild   = "removeChild"
	EventAddHandler    = pipeline.EventAddHandler
	EventRemoveHandler = pipeline.EventRemoveHandler
)

// Event describes a structural change of a container.
type Event struct {
	Container *Container
	Type      string
	Data      interface{}
}

// Listener observes container events. Listeners are called synchronously
// on the goroutine making the change.
type Listener interface {
	ContainerEvent(ev Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ev Event)

// ContainerEvent calls f(ev).
func (f ListenerFunc) ContainerEvent(ev Event) { f(ev) }
