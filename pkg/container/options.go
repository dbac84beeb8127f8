package container

import (
	"time"

	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
)

// Option configures a Container.
type Option func(*options)

type options struct {
	logger          log.Logger
	registrar       lifecycle.Registrar
	workers         int
	backgroundDelay time.Duration
}

// WithLogger sets the logger of the container and its chain.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegistrar sets the registration hook used at init and destroy.
// Children without their own registrar use the nearest ancestor's.
func WithRegistrar(r lifecycle.Registrar) Option {
	return func(o *options) {
		o.registrar = r
	}
}

// WithStartStopWorkers bounds the number of children started or stopped
// concurrently. Values below 1 select the number of CPUs.
func WithStartStopWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithBackgroundDelay enables the background processor with the given
// period. Zero or negative disables it; the container is then processed by
// the nearest ancestor that has one.
func WithBackgroundDelay(d time.Duration) Option {
	return func(o *options) {
		o.backgroundDelay = d
	}
}
