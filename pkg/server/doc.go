// Package server assembles containers, handlers and HTTP connectors into a
// running dispatch server.
//
// A Server owns one engine container. Requests accepted by a Connector enter
// the engine chain, are routed to a host by the Host header and to a
// context by the longest matching path prefix, and finally reach the
// endpoint mounted under the longest matching prefix inside the context.
//
// # Usage
//
//	srv, err := server.Build(cfg,
//	    server.WithLogger(logger),
//	    server.WithPlugin(reloader.New(reloader.DefaultConfig())),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Destroy(context.Background())
//	defer srv.Stop(context.Background())
//
// Start order is engine, connectors, plugins. Stop runs in reverse.
//
// # Version
//
// Current version: 1.0.0
package server
