// Package dispatch runs a lifecycle-managed HTTP server built from
// configuration.
//
// Example usage:
//
//	cfg := dispatch.DefaultConfig()
//	cfg.Listen = ":8080"
//	if err := dispatch.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/bft-labs/dispatch/internal/cliconfig"
	"github.com/bft-labs/dispatch/pkg/server"
)

// Config holds the server configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// DefaultConfig returns a Config with sensible default values: one host
// named localhost with a status page and an echo endpoint.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Run validates cfg, builds the server and serves until ctx is cancelled.
// The server is then stopped within cfg.ShutdownTimeout and destroyed.
func Run(ctx context.Context, cfg Config, opts ...server.Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cliconfig.ResolvePaths(&cfg); err != nil {
		return err
	}

	srv, err := server.Build(cfg, opts...)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		_ = srv.Destroy(context.Background())
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	return errors.Join(srv.Stop(stopCtx), srv.Destroy(stopCtx))
}

func shutdownTimeout(cfg Config) time.Duration {
	if cfg.ShutdownTimeout > 0 {
		return cfg.ShutdownTimeout
	}
	return 30 * time.Second
}
