package reloader

import "github.com/bft-labs/dispatch/pkg/server"

// WithReloader returns a server Option that enables context reloading.
// When enabled, the plugin watches the docbase of every reloadable context
// and reloads the context after changes settle.
//
// Usage:
//
//	srv, err := server.Build(cfg,
//	    reloader.WithReloader(reloader.Config{
//	        DebounceDelay: 250 * time.Millisecond,
//	        RetryInterval: time.Second,
//	    }),
//	)
func WithReloader(cfg Config) server.Option {
	return server.WithPlugin(New(cfg))
}

// WithDefaultReloader returns a server Option that enables reloading with
// default settings (server debounce, retry from 1s up to 30s).
//
// Usage:
//
//	srv, err := server.Build(cfg, reloader.WithDefaultReloader())
func WithDefaultReloader() server.Option {
	return WithReloader(DefaultConfig())
}
