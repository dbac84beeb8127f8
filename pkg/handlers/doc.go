// Package handlers provides the stock pipeline handlers of a dispatch
// server: access logging, request IDs, Prometheus metrics, OpenTelemetry
// tracing, and the Endpoint terminal that adapts a plain http.Handler.
//
// Handlers are inserted into a container chain:
//
//	chain := ctx.Chain()
//	chain.Insert(c, handlers.NewRequestID())
//	chain.Insert(c, handlers.NewAccessLog(logger))
//	chain.Insert(c, handlers.NewMetrics(prometheus.DefaultRegisterer, logger))
//	chain.SetTerminal(c, handlers.NewEndpoint(http.FileServer(dir), true))
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package handlers
