package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/registry"
)

// Option configures optional behavior of a Server.
type Option func(*options)

type options struct {
	logger         log.Logger
	registry       *registry.Registry
	plugins        []Plugin
	tracerProvider trace.TracerProvider
	registerer     prometheus.Registerer
	reloadDebounce time.Duration
}

func defaultOptions() options {
	return options{
		logger:         log.NewNoopLogger(),
		reloadDebounce: 500 * time.Millisecond,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}
	if o.registry == nil {
		o.registry = registry.New(o.logger)
	}
	return o
}

// WithLogger sets the logger for the server and everything it builds.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistry sets the registry containers and connectors register with.
// If not provided, the server creates its own.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithPlugin registers a plugin to be initialized when the server starts.
// Plugins are initialized in registration order and shut down in reverse
// order.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, p)
	}
}

// WithTracerProvider sets the provider used by the tracing handler. Build
// installs the handler only when tracing is enabled in the configuration.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMetricsRegisterer sets where Build registers request metrics. If not
// provided and no metrics listener is configured, request metrics go to the
// prometheus default registerer.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithReloadDebounce sets the debounce handed to plugins.
func WithReloadDebounce(d time.Duration) Option {
	return func(o *options) {
		o.reloadDebounce = d
	}
}
