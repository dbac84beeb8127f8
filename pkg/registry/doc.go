// Package registry keeps track of the components of a running server.
//
// A Registry implements lifecycle.Registrar, so containers and connectors
// register themselves when they are initialized and unregister when they
// are destroyed. It is also a prometheus.Collector that exports the state
// of every registered component:
//
//	dispatch_component_state{component="engine/localhost"} 5
//	dispatch_component_available{component="engine/localhost"} 1
//
// # Usage
//
//	reg := registry.New(logger)
//	prometheus.MustRegister(reg)
//	engine := container.New("engine", container.KindEngine, container.WithRegistrar(reg))
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package registry
