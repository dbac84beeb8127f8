package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/handlers"
	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
)

// ConnectorConfig holds the listener settings of a Connector.
type ConnectorConfig struct {
	// Name identifies the connector in logs and in the registry.
	Name string

	// Addr is the TCP address to listen on.
	Addr string

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds the graceful drain on stop.
	// Default: 30 seconds
	ShutdownTimeout time.Duration
}

// Connector accepts HTTP connections and hands requests to a handler. It is
// a component: the listener is opened on start and drained on stop.
type Connector struct {
	*lifecycle.Base

	cfg     ConnectorConfig
	handler http.Handler

	mu      sync.Mutex
	srv     *http.Server
	ln      net.Listener
	workers *lifecycle.Workers
}

// NewConnector creates a connector serving h.
func NewConnector(cfg ConnectorConfig, h http.Handler, logger log.Logger) *Connector {
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	c := &Connector{cfg: cfg, handler: h}
	c.Base = lifecycle.NewBase("connector/"+cfg.Name, c, logger)
	return c
}

// Addr returns the bound listener address, or the configured address when
// the connector is not listening.
func (c *Connector) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln != nil {
		return c.ln.Addr().String()
	}
	return c.cfg.Addr
}

func (c *Connector) InitInternal(ctx context.Context) error { return nil }

// StartInternal binds the listener and serves on a tracked goroutine.
func (c *Connector) StartInternal(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           c.handler,
		ReadHeaderTimeout: c.cfg.ReadHeaderTimeout,
	}
	workers := lifecycle.NewWorkers(c.Logger())

	c.mu.Lock()
	c.srv, c.ln, c.workers = srv, ln, workers
	c.mu.Unlock()

	workers.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger().Error("serve failed", log.Err(err))
		}
	})
	c.Logger().Info("listening", log.String("addr", ln.Addr().String()))

	return c.SetState(lifecycle.StateStarting)
}

// StopInternal drains in-flight requests within the shutdown timeout.
func (c *Connector) StopInternal(ctx context.Context) error {
	if err := c.SetState(lifecycle.StateStopping); err != nil {
		return err
	}

	c.mu.Lock()
	srv, workers := c.srv, c.workers
	c.srv, c.ln, c.workers = nil, nil, nil
	c.mu.Unlock()
	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		c.Logger().Warn("graceful shutdown incomplete, closing", log.Err(err))
		_ = srv.Close()
	}
	if werr := workers.WaitWithTimeout(c.cfg.ShutdownTimeout); werr != nil && err == nil {
		err = werr
	}
	return err
}

func (c *Connector) DestroyInternal(ctx context.Context) error { return nil }

// EngineHandler adapts an engine container to http.Handler. Chain errors
// that did not produce a response become 500, or 503 when the engine is
// not available.
func EngineHandler(engine *container.Container, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := handlers.WrapWriter(w)
		err := engine.Invoke(sw, r)
		if err == nil {
			return
		}

		logger.Error("request failed",
			log.String("method", r.Method),
			log.String("path", r.URL.Path),
			log.Err(err),
		)
		if sw.Written() {
			return
		}
		code := http.StatusInternalServerError
		if errors.Is(err, container.ErrNotAvailable) {
			code = http.StatusServiceUnavailable
		}
		http.Error(sw, http.StatusText(code), code)
	})
}
