package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/handlers"
	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/pipeline"
	"github.com/bft-labs/dispatch/pkg/registry"
)

// Server is the top-level component. It owns the engine container, the
// connectors feeding it and the plugins.
type Server struct {
	*lifecycle.Base

	opts     options
	engine   *container.Container
	registry *registry.Registry

	mu         sync.Mutex
	connectors []*Connector
	contexts   []ContextInfo

	// active holds the plugins initialized by the last start.
	active []Plugin
	cancel context.CancelFunc
}

// New creates a server around engine. The server is in StateNew; call Start
// to bring up the engine, the connectors and the plugins.
func New(engine *container.Container, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("nil engine")
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	s := &Server{
		opts:     o,
		engine:   engine,
		registry: o.registry,
	}
	s.Base = lifecycle.NewBase("server", s, o.logger)
	return s, nil
}

// Engine returns the engine container.
func (s *Server) Engine() *container.Container { return s.engine }

// Registry returns the registry components register with.
func (s *Server) Registry() *registry.Registry { return s.registry }

// AddConnector adds c. Connectors added to a running server are started.
func (s *Server) AddConnector(ctx context.Context, c *Connector) error {
	s.mu.Lock()
	s.connectors = append(s.connectors, c)
	s.mu.Unlock()

	if s.Available() {
		if err := s.registerConnector(c); err != nil {
			return err
		}
		return c.Start(ctx)
	}
	return nil
}

// Connectors returns the connectors in the order they were added.
func (s *Server) Connectors() []*Connector {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connector, len(s.connectors))
	copy(out, s.connectors)
	return out
}

// TrackContext records a context container for plugins.
func (s *Server) TrackContext(info ContextInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = append(s.contexts, info)
}

// Contexts returns the tracked context containers.
func (s *Server) Contexts() []ContextInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ContextInfo, len(s.contexts))
	copy(out, s.contexts)
	return out
}

func (s *Server) registerConnector(c *Connector) error {
	err := s.registry.Register(c.Name(), c)
	if err != nil && !errors.Is(err, registry.ErrDuplicate) {
		return fmt.Errorf("register %s: %w", c.Name(), err)
	}
	return nil
}

// InitInternal initializes the engine and registers the connectors.
func (s *Server) InitInternal(ctx context.Context) error {
	if err := s.engine.Init(ctx); err != nil {
		return err
	}
	for _, c := range s.Connectors() {
		if err := s.registerConnector(c); err != nil {
			return err
		}
	}
	return nil
}

// StartInternal starts the engine, then the connectors, then the plugins.
func (s *Server) StartInternal(ctx context.Context) error {
	if err := s.engine.Start(ctx); err != nil {
		return err
	}
	if !s.engine.Available() {
		return fmt.Errorf("engine %s did not start: %s", s.engine.Name(), s.engine.StateName())
	}

	for _, c := range s.Connectors() {
		if err := c.Start(ctx); err != nil {
			return err
		}
		if !c.Available() {
			return fmt.Errorf("connector %s did not start: %s", c.Name(), c.StateName())
		}
	}

	if err := s.initPlugins(); err != nil {
		return err
	}
	return s.SetState(lifecycle.StateStarting)
}

func (s *Server) initPlugins() error {
	runCtx, cancel := context.WithCancel(context.Background())

	cfg := PluginConfig{
		Engine:         s.engine,
		Contexts:       s.Contexts(),
		ReloadDebounce: s.opts.reloadDebounce,
		Logger:         s.opts.logger,
	}

	s.mu.Lock()
	s.cancel = cancel
	s.active = nil
	s.mu.Unlock()

	for _, p := range s.opts.plugins {
		if err := p.Initialize(runCtx, cfg); err != nil {
			s.Logger().Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			s.shutdownPlugins(context.Background())
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		s.mu.Lock()
		s.active = append(s.active, p)
		s.mu.Unlock()
		s.Logger().Info("plugin initialized", log.String("plugin", p.Name()))
	}
	return nil
}

func (s *Server) shutdownPlugins(ctx context.Context) {
	s.mu.Lock()
	active, cancel := s.active, s.cancel
	s.active, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for i := len(active) - 1; i >= 0; i-- {
		p := active[i]
		if err := p.Shutdown(ctx); err != nil {
			s.Logger().Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			s.Logger().Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// StopInternal shuts down the plugins in reverse order, then the
// connectors in reverse order, then the engine. Every step runs; failures
// are joined.
func (s *Server) StopInternal(ctx context.Context) error {
	if err := s.SetState(lifecycle.StateStopping); err != nil {
		return err
	}

	s.shutdownPlugins(ctx)

	var errs []error
	conns := s.Connectors()
	for i := len(conns) - 1; i >= 0; i-- {
		if err := conns[i].Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.engine.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DestroyInternal destroys the connectors and the engine.
func (s *Server) DestroyInternal(ctx context.Context) error {
	var errs []error
	for _, c := range s.Connectors() {
		if err := c.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := s.registry.Unregister(c.Name()); err != nil && !errors.Is(err, registry.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if err := s.engine.Destroy(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := []struct {
		name       string
		version    string
		minVersion string
	}{
		{"lifecycle", lifecycle.Version, lifecycle.MinCompatibleVersion},
		{"pipeline", pipeline.Version, pipeline.MinCompatibleVersion},
		{"container", container.Version, container.MinCompatibleVersion},
		{"handlers", handlers.Version, handlers.MinCompatibleVersion},
		{"registry", registry.Version, registry.MinCompatibleVersion},
		{"log", log.Version, log.MinCompatibleVersion},
		{"server", Version, MinCompatibleVersion},
	}

	for _, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				m.name, m.version, m.minVersion)
		}
	}
	return nil
}

// isVersionCompatible checks if version >= minVersion.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
