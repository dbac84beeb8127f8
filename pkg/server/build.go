package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/dispatch/internal/cliconfig"
	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/handlers"
	"github.com/bft-labs/dispatch/pkg/log"
)

// EngineName names the engine container built by Build.
const EngineName = "dispatch"

// Build creates a server for a validated configuration: one engine, a host
// container per configured host, a context container per configured
// context, and the HTTP connector. A second connector serving prometheus
// metrics is added when cfg.MetricsListen is set.
func Build(cfg cliconfig.Config, opts ...Option) (*Server, error) {
	o := applyOptions(opts)
	logger := o.logger

	registerer := o.registerer
	var gatherer prometheus.Gatherer
	if cfg.MetricsListen != "" && registerer == nil {
		pr := prometheus.NewRegistry()
		pr.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer, gatherer = pr, pr
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		if g, ok := registerer.(prometheus.Gatherer); ok {
			gatherer = g
		} else {
			gatherer = prometheus.DefaultGatherer
		}
	}

	common := []container.Option{
		container.WithLogger(logger),
		container.WithRegistrar(o.registry),
		container.WithStartStopWorkers(cfg.StartStopWorkers),
	}
	ctx := context.Background()

	engine := container.New(EngineName, container.KindEngine,
		append(common, container.WithBackgroundDelay(cfg.BackgroundDelay))...)
	if err := buildEngineChain(ctx, engine, cfg, o); err != nil {
		return nil, err
	}

	var contexts []ContextInfo
	for _, hc := range cfg.Hosts {
		host := container.New(hc.Name, container.KindHost, common...)
		if err := host.Chain().SetTerminal(ctx, container.NewChildRouter(ContextMapper(), logger)); err != nil {
			return nil, fmt.Errorf("host %s: %w", hc.Name, err)
		}
		if err := engine.AddChild(ctx, host); err != nil {
			return nil, err
		}

		for _, cc := range hc.Contexts {
			app, err := buildContext(ctx, host, cc, registerer, o, common)
			if err != nil {
				return nil, fmt.Errorf("host %s: context %q: %w", hc.Name, cc.Path, err)
			}
			contexts = append(contexts, ContextInfo{
				Container:  app,
				Host:       hc.Name,
				Path:       cc.Path,
				Docbase:    cc.Docbase,
				Reloadable: cc.Reloadable,
			})
		}
	}

	srvOpts := append([]Option{}, opts...)
	srvOpts = append(srvOpts, WithRegistry(o.registry))
	if cfg.ReloadDebounce > 0 {
		srvOpts = append(srvOpts, WithReloadDebounce(cfg.ReloadDebounce))
	}
	s, err := New(engine, srvOpts...)
	if err != nil {
		return nil, err
	}
	for _, info := range contexts {
		s.TrackContext(info)
	}

	s.connectors = append(s.connectors, NewConnector(ConnectorConfig{
		Name:              "http",
		Addr:              cfg.Listen,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
	}, EngineHandler(engine, logger), logger))

	if cfg.MetricsListen != "" {
		if err := registerer.Register(o.registry); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("register component collector: %w", err)
			}
		}
		s.connectors = append(s.connectors, NewConnector(ConnectorConfig{
			Name:              "metrics",
			Addr:              cfg.MetricsListen,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ShutdownTimeout:   cfg.ShutdownTimeout,
		}, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), logger))
	}

	logger.Info("server built",
		log.Int("hosts", len(cfg.Hosts)),
		log.Int("contexts", len(contexts)),
		log.String("listen", cfg.Listen),
		log.String("default_host", cfg.DefaultHost),
	)
	return s, nil
}

func buildEngineChain(ctx context.Context, engine *container.Container, cfg cliconfig.Config, o options) error {
	chain := engine.Chain()
	if err := chain.Insert(ctx, handlers.NewRequestID()); err != nil {
		return err
	}
	if err := chain.Insert(ctx, handlers.NewAccessLog(o.logger)); err != nil {
		return err
	}
	if cfg.Tracing {
		if err := chain.Insert(ctx, handlers.NewTracing(o.tracerProvider)); err != nil {
			return err
		}
	}

	aliases := map[string]string{}
	for _, hc := range cfg.Hosts {
		for _, a := range hc.Aliases {
			aliases[a] = hc.Name
		}
	}
	return chain.SetTerminal(ctx, container.NewChildRouter(HostMapper(aliases, cfg.DefaultHost), o.logger))
}

func buildContext(ctx context.Context, host *container.Container, cc cliconfig.ContextConfig,
	registerer prometheus.Registerer, o options, common []container.Option) (*container.Container, error) {
	app := container.New(ContextName(cc.Path), container.KindContext, common...)

	if err := app.Chain().Insert(ctx, handlers.NewMetrics(registerer, o.logger)); err != nil {
		return nil, err
	}

	router := NewEndpointRouter(cc.Path)
	for _, ec := range cc.Endpoints {
		var h http.Handler
		async := true
		switch ec.Kind {
		case cliconfig.EndpointStatus:
			h = StatusHandler(host.Parent(), o.registry)
		case cliconfig.EndpointEcho:
			h = EchoHandler()
		case cliconfig.EndpointStatic:
			h = StaticHandler(cc.Docbase)
			async = false
		default:
			return nil, fmt.Errorf("unknown endpoint kind %q", ec.Kind)
		}
		if err := router.Mount(ec.Path, h, async); err != nil {
			return nil, err
		}
	}
	if err := app.Chain().SetTerminal(ctx, router); err != nil {
		return nil, err
	}

	if err := host.AddChild(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}
