// Package pipeline provides the handler chain that every container uses to
// process requests.
//
// A Chain holds an ordered list of extra handlers followed by one terminal
// handler:
//
//	First() -> H1 -> H2 -> ... -> Terminal
//
// The chain does not drive invocation. Callers start at First and every
// handler decides whether to call the next one, typically through
// HandlerBase.InvokeNext:
//
//	type Timing struct {
//	    pipeline.HandlerBase
//	}
//
//	func (t *Timing) Invoke(w http.ResponseWriter, r *http.Request) error {
//	    start := time.Now()
//	    err := t.InvokeNext(w, r)
//	    observe(time.Since(start))
//	    return err
//	}
//
// Handlers that also implement lifecycle.Lifecycle are started, stopped and
// destroyed with the chain. Handlers that implement Attachable are bound to
// the owning container while they are part of the chain; a handler can
// belong to only one owner at a time. A chain without an owner binds
// nothing and refuses handlers that already have one.
//
// # Concurrency
//
// Invocation may run on many goroutines at once. Mutating a chain
// (SetTerminal, Insert, Remove) while requests traverse it is not
// supported and not synchronized; mutate during configuration or while
// the owner is stopped.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package pipeline
