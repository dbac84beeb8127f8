// Package container provides the hierarchical request containers of a
// dispatch server: an engine holds hosts, a host holds contexts.
//
// Every Container is a lifecycle component with its own handler chain.
// Starting a container starts its children (concurrently, on a bounded
// pool), then its chain, then its background processor. Stopping reverses
// the phases. Failures of individual children are collected into a
// *CascadeError; every child is attempted.
//
// # Usage
//
//	engine := container.New("engine", container.KindEngine, container.WithLogger(logger))
//	host := container.New("localhost", container.KindHost)
//	if err := engine.AddChild(ctx, host); err != nil {
//	    return err
//	}
//	engine.Chain().SetTerminal(ctx, container.NewChildRouter(hostMapper, logger))
//	if err := engine.Start(ctx); err != nil {
//	    return err
//	}
//
// # Concurrency
//
// Invocation, lifecycle operations and lookups are safe from many
// goroutines. Tree mutation (AddChild, RemoveChild) is not: the cycle check
// runs before the parent and child locks are taken, so concurrent calls
// that link the same containers in opposite directions can deadlock or
// build a cycle. Serialize mutation, as the server does while building.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package container
