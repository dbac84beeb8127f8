// Package log provides the logging abstraction used by dispatch components.
//
// Components never talk to a logging library directly. They accept a
// Logger and emit structured entries built from Field values. A zerolog
// adapter is provided for production use and a no-op logger for tests
// and for components constructed without one.
//
// # Usage
//
// Build a zerolog-backed logger:
//
//	logger, err := log.NewZerologLogger(log.Options{Level: "info", Format: "console"})
//
// Scope it to a component so every entry carries the component name:
//
//	hostLog := log.Named(logger, "engine/localhost")
//	hostLog.Info("starting children", log.Int("children", 3))
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
