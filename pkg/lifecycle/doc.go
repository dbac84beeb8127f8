// Package lifecycle provides the component state machine shared by every
// structural element of a dispatch server.
//
// A component embeds *Base and supplies the four Hooks. Base wraps the hooks
// with transition validation, listener notification and failure handling,
// so every component walks the same graph:
//
//	NEW -> INITIALIZING -> INITIALIZED
//	INITIALIZED|STOPPED -> STARTING_PREP -> STARTING -> STARTED
//	STARTED -> STOPPING_PREP -> STOPPING -> STOPPED
//	FAILED -> STOPPING -> STOPPED
//	NEW -> STOPPED
//	NEW|INITIALIZED|STOPPED|FAILED -> DESTROYING -> DESTROYED
//
// Any state may move to FAILED.
//
// # Usage
//
//	type Connector struct {
//	    *lifecycle.Base
//	}
//
//	func NewConnector(logger log.Logger) *Connector {
//	    c := &Connector{}
//	    c.Base = lifecycle.NewBase("connector", c, logger)
//	    return c
//	}
//
//	func (c *Connector) StartInternal(ctx context.Context) error {
//	    // ... open sockets ...
//	    return c.SetState(lifecycle.StateStarting)
//	}
//
// StartInternal must move the component to STARTING (or FAILED) before
// returning, and StopInternal must move it to STOPPING (or leave it FAILED).
//
// # Re-entrancy
//
// Init, Start, Stop and Destroy are mutually exclusive per instance. The
// context handed to a hook is marked as holding that instance's lock, so a
// hook may call lifecycle methods on its own component with that context
// without deadlocking. Do not hand such a context to unrelated goroutines.
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
