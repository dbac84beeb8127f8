package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/bft-labs/dispatch/internal/cliconfig"
	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/server"
	"github.com/bft-labs/dispatch/plugins/reloader"
)

const helpDescription = `
Serve virtual hosts and application contexts from one process.

Highlights:
  - Every host, context and connector is a component with a checked lifecycle.
  - Requests run through per-container handler chains (request IDs, access
    log, metrics, tracing) before reaching their endpoint.
  - Reloadable contexts restart on their own when their docbase changes.
  - Configure via file, env (DISPATCH_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  dispatchd --listen :8080 --default-host localhost
  dispatchd --config $HOME/.dispatch/config.toml --log-format json --metrics-listen :9100
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// bootstrapLogger reports errors that happen before the configured logger
// exists.
func bootstrapLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	boot := bootstrapLogger()

	root := &cobra.Command{
		Use:     "dispatchd",
		Short:   "Serve virtual hosts and application contexts from one process",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Determine config path (default $HOME/.dispatch/config.toml)
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Apply environment variables (DISPATCH_*)
			// These override file config but are overridden by flags (checked via changed map)
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			// Validate and set derived defaults
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cliconfig.ResolvePaths(&cfg); err != nil {
				return err
			}

			logger, err := log.NewZerologLogger(log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return err
			}
			zl := logger.Logger()
			zl.Info().Interface("config", cfg).Msg("configuration")

			opts := []server.Option{
				server.WithLogger(logger),
				reloader.WithDefaultReloader(),
			}

			var tp *sdktrace.TracerProvider
			if cfg.Tracing {
				tp = sdktrace.NewTracerProvider(
					sdktrace.WithSampler(sdktrace.AlwaysSample()),
					sdktrace.WithBatcher(newLogExporter(logger)),
				)
				opts = append(opts, server.WithTracerProvider(tp))
			}

			srv, err := server.Build(cfg, opts...)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ctx := context.Background()
			if err := srv.Start(ctx); err != nil {
				_ = srv.Destroy(ctx)
				return fmt.Errorf("start server: %w", err)
			}
			for _, c := range srv.Connectors() {
				zl.Info().Str("connector", c.Name()).Str("addr", c.Addr()).Msg("accepting connections")
			}

			sig := <-sigCh
			zl.Info().Str("signal", sig.String()).Msg("received signal, stopping...")

			// Graceful shutdown
			stopCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()

			stopErr := srv.Stop(stopCtx)
			if err := srv.Destroy(stopCtx); err != nil && stopErr == nil {
				stopErr = err
			}
			if tp != nil {
				if err := tp.Shutdown(stopCtx); err != nil {
					zl.Warn().Err(err).Msg("tracer provider shutdown failed")
				}
			}
			if stopErr != nil {
				return fmt.Errorf("stop server: %w", stopErr)
			}
			zl.Info().Msg("stopped")
			return nil
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.dispatch/config.toml)")
	root.Flags().StringVar(&cfg.Home, "home", cfg.Home, "base directory for relative docbases (default: working directory)")
	root.Flags().StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")
	root.Flags().StringVar(&cfg.DefaultHost, "default-host", cfg.DefaultHost, "host serving requests for unknown Host headers")

	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	root.Flags().DurationVar(&cfg.ReadHeaderTimeout, "read-header-timeout", cfg.ReadHeaderTimeout, "timeout for reading request headers")
	root.Flags().DurationVar(&cfg.BackgroundDelay, "background-delay", cfg.BackgroundDelay, "period of background processing (0 disables)")
	root.Flags().DurationVar(&cfg.ReloadDebounce, "reload-debounce", cfg.ReloadDebounce, "quiet period before reloading a changed context")
	root.Flags().IntVar(&cfg.StartStopWorkers, "start-stop-workers", cfg.StartStopWorkers, "children started or stopped concurrently (0 = number of CPUs)")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")
	root.Flags().StringVar(&cfg.MetricsListen, "metrics-listen", cfg.MetricsListen, "prometheus metrics listen address (empty disables)")
	root.Flags().BoolVar(&cfg.Tracing, "tracing", cfg.Tracing, "trace every request")

	if err := root.Execute(); err != nil {
		boot.Error().Err(err).Msg("dispatchd")
		os.Exit(1)
	}
}
