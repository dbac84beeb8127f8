package reloader

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/dispatch/internal/cliconfig"
	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/pipeline"
	"github.com/bft-labs/dispatch/pkg/server"
)

// newContext returns a started context container and a counter of its
// completed starts.
func newContext(t *testing.T) (*container.Container, *atomic.Int64) {
	t.Helper()
	ctx := context.Background()
	app := container.New("app", container.KindContext)
	err := app.Chain().SetTerminal(ctx, pipeline.Func(
		func(w http.ResponseWriter, r *http.Request, next pipeline.Handler) error { return nil }, true))
	if err != nil {
		t.Fatalf("SetTerminal() error = %v", err)
	}

	var starts atomic.Int64
	app.AddListener(lifecycle.ListenerFunc(func(ev lifecycle.Event) error {
		if ev.Type == lifecycle.EventAfterStart {
			starts.Add(1)
		}
		return nil
	}))
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return app, &starts
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func initPlugin(t *testing.T, p *Plugin, infos ...server.ContextInfo) {
	t.Helper()
	err := p.Initialize(context.Background(), server.PluginConfig{
		Contexts: infos,
		Logger:   log.NewNoopLogger(),
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
}

// waitFor polls cond until it holds or timeout passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlugin_ReloadsOnChange(t *testing.T) {
	docbase := t.TempDir()
	app, starts := newContext(t)

	p := New(Config{DebounceDelay: 50 * time.Millisecond, RetryInterval: 10 * time.Millisecond})
	initPlugin(t, p, server.ContextInfo{Container: app, Docbase: docbase, Reloadable: true})

	// Several quick changes are coalesced into one reload.
	writeFile(t, docbase, "a.txt", "1")
	writeFile(t, docbase, "a.txt", "2")
	writeFile(t, docbase, "b.txt", "3")

	waitFor(t, 5*time.Second, "reload", func() bool { return p.Reloads() == 1 })
	time.Sleep(200 * time.Millisecond)
	if n := p.Reloads(); n != 1 {
		t.Errorf("Reloads() = %d, want 1", n)
	}
	if n := starts.Load(); n != 2 {
		t.Errorf("starts = %d, want 2", n)
	}
	if app.State() != lifecycle.StateStarted {
		t.Errorf("state = %v, want STARTED", app.State())
	}
}

func TestPlugin_WatchesSubdirectories(t *testing.T) {
	docbase := t.TempDir()
	sub := filepath.Join(docbase, "static")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	app, _ := newContext(t)

	p := New(Config{DebounceDelay: 20 * time.Millisecond})
	initPlugin(t, p, server.ContextInfo{Container: app, Docbase: docbase, Reloadable: true})

	writeFile(t, sub, "style.css", "body{}")
	waitFor(t, 5*time.Second, "reload", func() bool { return p.Reloads() == 1 })
}

func TestPlugin_RetriesFailedReload(t *testing.T) {
	docbase := t.TempDir()
	app, _ := newContext(t)

	// The first two restarts fail.
	var remaining atomic.Int64
	remaining.Store(2)
	boom := errors.New("boom")
	app.AddListener(lifecycle.ListenerFunc(func(ev lifecycle.Event) error {
		if ev.Type == lifecycle.EventBeforeStart && remaining.Add(-1) >= 0 {
			return boom
		}
		return nil
	}))

	p := New(Config{DebounceDelay: 10 * time.Millisecond, RetryInterval: 10 * time.Millisecond, MaxRetryInterval: 20 * time.Millisecond})
	initPlugin(t, p, server.ContextInfo{Container: app, Docbase: docbase, Reloadable: true})

	writeFile(t, docbase, "a.txt", "1")
	waitFor(t, 5*time.Second, "reload", func() bool { return p.Reloads() == 1 })
	if n := p.Failures(); n != 2 {
		t.Errorf("Failures() = %d, want 2", n)
	}
	if !app.Available() {
		t.Errorf("context not available after retries, state = %v", app.State())
	}
}

func TestPlugin_IgnoresNonReloadable(t *testing.T) {
	docbase := t.TempDir()
	app, starts := newContext(t)

	p := New(Config{DebounceDelay: 10 * time.Millisecond})
	initPlugin(t, p, server.ContextInfo{Container: app, Docbase: docbase, Reloadable: false})

	writeFile(t, docbase, "a.txt", "1")
	time.Sleep(100 * time.Millisecond)
	if n := p.Reloads(); n != 0 {
		t.Errorf("Reloads() = %d, want 0", n)
	}
	if n := starts.Load(); n != 1 {
		t.Errorf("starts = %d, want 1", n)
	}
}

func TestPlugin_MissingDocbase(t *testing.T) {
	app, _ := newContext(t)
	p := New(DefaultConfig())
	err := p.Initialize(context.Background(), server.PluginConfig{
		Contexts: []server.ContextInfo{{Container: app, Docbase: filepath.Join(t.TempDir(), "missing"), Reloadable: true}},
	})
	if err == nil {
		t.Error("Initialize() with a missing docbase succeeded")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_ShutdownStopsWatching(t *testing.T) {
	docbase := t.TempDir()
	app, _ := newContext(t)

	p := New(Config{DebounceDelay: 10 * time.Millisecond})
	err := p.Initialize(context.Background(), server.PluginConfig{
		Contexts: []server.ContextInfo{{Container: app, Docbase: docbase, Reloadable: true}},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	writeFile(t, docbase, "a.txt", "1")
	time.Sleep(100 * time.Millisecond)
	if n := p.Reloads(); n != 0 {
		t.Errorf("Reloads() after shutdown = %d, want 0", n)
	}
}

func TestPlugin_UsesServerDebounce(t *testing.T) {
	p := New(DefaultConfig())
	if err := p.Initialize(context.Background(), server.PluginConfig{ReloadDebounce: 42 * time.Millisecond}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer p.Shutdown(context.Background())
	if p.debounceDelay != 42*time.Millisecond {
		t.Errorf("debounceDelay = %v, want 42ms", p.debounceDelay)
	}
}

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantRetry    time.Duration
		wantMaxRetry time.Duration
	}{
		{"zero config", Config{}, time.Second, 30 * time.Second},
		{"max below retry", Config{RetryInterval: time.Minute, MaxRetryInterval: time.Second}, time.Minute, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p.retryInterval != tt.wantRetry {
				t.Errorf("retryInterval = %v, want %v", p.retryInterval, tt.wantRetry)
			}
			if p.maxRetryInterval != tt.wantMaxRetry {
				t.Errorf("maxRetryInterval = %v, want %v", p.maxRetryInterval, tt.wantMaxRetry)
			}
			if p.Name() != "reloader" {
				t.Errorf("Name() = %q, want reloader", p.Name())
			}
		})
	}
}

func TestWithReloader_Server(t *testing.T) {
	docbase := t.TempDir()
	writeFile(t, docbase, "index.html", "v1")

	cfg := cliconfig.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.BackgroundDelay = 0
	cfg.ReloadDebounce = 20 * time.Millisecond
	cfg.Hosts = []cliconfig.HostConfig{{
		Name: "localhost",
		Contexts: []cliconfig.ContextConfig{{
			Path: "/site", Docbase: docbase, Reloadable: true,
			Endpoints: []cliconfig.EndpointConfig{{Path: "/", Kind: cliconfig.EndpointStatic}},
		}},
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	p := New(Config{RetryInterval: 10 * time.Millisecond})
	srv, err := server.Build(cfg,
		server.WithMetricsRegisterer(prometheus.NewRegistry()),
		server.WithPlugin(p),
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Destroy(ctx)
	defer srv.Stop(ctx)

	app := srv.Contexts()[0].Container
	var starts atomic.Int64
	app.AddListener(lifecycle.ListenerFunc(func(ev lifecycle.Event) error {
		if ev.Type == lifecycle.EventAfterStart {
			starts.Add(1)
		}
		return nil
	}))

	writeFile(t, docbase, "index.html", "v2")
	waitFor(t, 5*time.Second, "context restart", func() bool { return starts.Load() == 1 })
	if n := p.Reloads(); n != 1 {
		t.Errorf("Reloads() = %d, want 1", n)
	}
	if !app.Available() {
		t.Errorf("context not available after reload, state = %v", app.State())
	}
}
