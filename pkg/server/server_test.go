package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/dispatch/internal/cliconfig"
	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/handlers"
	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/pipeline"
)

func testConfig(t *testing.T) cliconfig.Config {
	t.Helper()
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "hello.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("Failed to create hello.txt: %v", err)
	}

	cfg := cliconfig.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	cfg.ShutdownTimeout = 5 * time.Second
	cfg.BackgroundDelay = 0
	cfg.StartStopWorkers = 2
	cfg.Hosts = []cliconfig.HostConfig{
		{
			Name:    "localhost",
			Aliases: []string{"127.0.0.1"},
			Contexts: []cliconfig.ContextConfig{
				{Path: "/", Endpoints: []cliconfig.EndpointConfig{
					{Path: "/status", Kind: cliconfig.EndpointStatus},
					{Path: "/", Kind: cliconfig.EndpointEcho},
				}},
				{Path: "/docs", Docbase: docs, Endpoints: []cliconfig.EndpointConfig{
					{Path: "/", Kind: cliconfig.EndpointStatic},
				}},
				{Path: "/docs/api", Endpoints: []cliconfig.EndpointConfig{
					{Path: "/", Kind: cliconfig.EndpointEcho},
				}},
			},
		},
		{
			Name: "example.com",
			Contexts: []cliconfig.ContextConfig{
				{Path: "/", Endpoints: []cliconfig.EndpointConfig{
					{Path: "/hello", Kind: cliconfig.EndpointEcho},
				}},
			},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func mustBuild(t *testing.T, cfg cliconfig.Config, opts ...Option) *Server {
	t.Helper()
	srv, err := Build(cfg, opts...)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return srv
}

func startServer(t *testing.T, cfg cliconfig.Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithMetricsRegisterer(prometheus.NewRegistry())}, opts...)
	srv := mustBuild(t, cfg, opts...)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_ = srv.Stop(ctx)
		_ = srv.Destroy(ctx)
	})
	return srv
}

func get(t *testing.T, addr, host, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+path, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Host = host
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s%s: %v", host, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func containsString(list []string, s string) bool {
	for _, cur := range list {
		if cur == s {
			return true
		}
	}
	return false
}

func wantState(t *testing.T, name string, lc lifecycle.Lifecycle, want lifecycle.State) {
	t.Helper()
	if got := lc.State(); got != want {
		t.Errorf("%s state = %v, want %v", name, got, want)
	}
}

func TestBuild_Routing(t *testing.T) {
	srv := startServer(t, testConfig(t))
	addr := srv.Connectors()[0].Addr()

	tests := []struct {
		name         string
		host         string
		path         string
		wantStatus   int
		wantContext  string
		wantEndpoint string
		wantBody     string
	}{
		{name: "root echo", host: "localhost", path: "/anything", wantStatus: 200},
		{name: "host with port and case", host: "LOCALHOST:8080", path: "/", wantStatus: 200},
		{name: "alias", host: "127.0.0.1", path: "/", wantStatus: 200},
		{name: "unknown host uses default", host: "nowhere.test", path: "/", wantStatus: 200},
		{name: "static file", host: "localhost", path: "/docs/hello.txt", wantStatus: 200, wantBody: "hello"},
		{name: "longest context prefix", host: "localhost", path: "/docs/api/items", wantStatus: 200, wantContext: "/docs/api"},
		{name: "segment boundary", host: "localhost", path: "/docsx", wantStatus: 200},
		{name: "other host endpoint", host: "example.com", path: "/hello/world", wantStatus: 200, wantEndpoint: "/hello"},
		{name: "unmatched endpoint", host: "example.com", path: "/other", wantStatus: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, addr, tt.host, tt.path)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			if resp.StatusCode != http.StatusOK {
				return
			}
			id := resp.Header.Get(handlers.RequestIDHeader)
			if id == "" {
				t.Error("response has no request id")
			}
			if tt.wantBody != "" {
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
				return
			}

			var echo EchoResponse
			if err := json.Unmarshal(body, &echo); err != nil {
				t.Fatalf("decode echo: %v (%s)", err, body)
			}
			want := EchoResponse{
				Method:    http.MethodGet,
				Host:      echo.Host,
				Path:      tt.path,
				Context:   tt.wantContext,
				Endpoint:  tt.wantEndpoint,
				RequestID: id,
			}
			if echo != want {
				t.Errorf("echo = %+v, want %+v", echo, want)
			}
		})
	}
}

func TestBuild_Status(t *testing.T) {
	srv := startServer(t, testConfig(t))
	resp, body := get(t, srv.Connectors()[0].Addr(), "localhost", "/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var report StatusReport
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if report.Tree.Name != EngineName || report.Tree.State != "STARTED" {
		t.Errorf("tree root = %s %s, want %s STARTED", report.Tree.Name, report.Tree.State, EngineName)
	}
	if len(report.Tree.Children) != 2 {
		t.Fatalf("hosts = %d, want 2", len(report.Tree.Children))
	}
	if h := report.Tree.Children[0]; h.Name != "localhost" || len(h.Children) != 3 {
		t.Errorf("first host = %s with %d contexts, want localhost with 3", h.Name, len(h.Children))
	}

	var names []string
	for _, e := range report.Components {
		names = append(names, e.Name)
		if !e.Available {
			t.Errorf("component %s not available", e.Name)
		}
	}
	for _, want := range []string{"dispatch/localhost/ROOT", "connector/http"} {
		if !containsString(names, want) {
			t.Errorf("components %v missing %s", names, want)
		}
	}
}

func TestBuild_Registry(t *testing.T) {
	srv := mustBuild(t, testConfig(t), WithMetricsRegisterer(prometheus.NewRegistry()))

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := []string{
		"connector/http",
		"dispatch",
		"dispatch/example.com",
		"dispatch/example.com/ROOT",
		"dispatch/localhost",
		"dispatch/localhost/ROOT",
		"dispatch/localhost/docs",
		"dispatch/localhost/docs/api",
	}
	if got := srv.Registry().Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := srv.Destroy(ctx); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if names := srv.Registry().Names(); len(names) != 0 {
		t.Errorf("Names() after Destroy = %v, want empty", names)
	}
	wantState(t, "engine", srv.Engine(), lifecycle.StateDestroyed)
}

func TestBuild_Contexts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hosts[0].Contexts[1].Reloadable = true
	srv := mustBuild(t, cfg, WithMetricsRegisterer(prometheus.NewRegistry()))

	infos := srv.Contexts()
	if len(infos) != 4 {
		t.Fatalf("Contexts() = %d entries, want 4", len(infos))
	}
	docs := infos[1]
	if docs.Path != "/docs" || docs.Host != "localhost" || !docs.Reloadable {
		t.Errorf("docs info = %+v", docs)
	}
	if docs.Container.Name() != "docs" || docs.Container.Kind() != container.KindContext {
		t.Errorf("docs container = %s (%v), want docs context", docs.Container.Name(), docs.Container.Kind())
	}
}

func TestBuild_MetricsConnector(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsListen = "127.0.0.1:0"
	srv := mustBuild(t, cfg)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		_ = srv.Destroy(context.Background())
	})

	conns := srv.Connectors()
	if len(conns) != 2 {
		t.Fatalf("Connectors() = %d, want 2", len(conns))
	}
	if conns[1].Name() != "connector/metrics" {
		t.Errorf("second connector = %s, want connector/metrics", conns[1].Name())
	}

	if resp, _ := get(t, conns[0].Addr(), "localhost", "/"); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp, body := get(t, conns[1].Addr(), "localhost", "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", resp.StatusCode)
	}
	text := string(body)
	for _, want := range []string{
		`dispatch_requests_total{code="200",container="dispatch/localhost/ROOT"} 1`,
		"dispatch_component_state",
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) watch(prefix string, lc lifecycle.Lifecycle) {
	lc.AddListener(lifecycle.ListenerFunc(func(ev lifecycle.Event) error {
		if ev.Type == lifecycle.EventAfterStart || ev.Type == lifecycle.EventAfterStop {
			r.add(prefix + ":" + ev.Type)
		}
		return nil
	}))
}

func (r *recorder) expect(t *testing.T, want ...string) {
	t.Helper()
	if got := r.list(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

type trackingPlugin struct {
	name    string
	rec     *recorder
	initErr error
	ctx     context.Context
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg PluginConfig) error {
	p.ctx = ctx
	p.rec.add(p.name + ":init")
	return p.initErr
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.rec.add(p.name + ":shutdown")
	return nil
}

func newEngine(t *testing.T, fn func(w http.ResponseWriter, r *http.Request, next pipeline.Handler) error) *container.Container {
	t.Helper()
	engine := container.New("engine", container.KindEngine)
	if err := engine.Chain().SetTerminal(context.Background(), pipeline.Func(fn, true)); err != nil {
		t.Fatalf("SetTerminal() error = %v", err)
	}
	return engine
}

func newServer(t *testing.T, engine *container.Container, opts ...Option) *Server {
	t.Helper()
	srv, err := New(engine, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func okHandler(w http.ResponseWriter, r *http.Request, next pipeline.Handler) error {
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func TestServer_StartStopOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	engine := newEngine(t, okHandler)

	p1 := &trackingPlugin{name: "p1", rec: rec}
	p2 := &trackingPlugin{name: "p2", rec: rec}
	srv := newServer(t, engine, WithPlugin(p1), WithPlugin(p2))

	conn := NewConnector(ConnectorConfig{Addr: "127.0.0.1:0"}, EngineHandler(engine, nil), nil)
	if err := srv.AddConnector(ctx, conn); err != nil {
		t.Fatalf("AddConnector() error = %v", err)
	}
	rec.watch("engine", engine)
	rec.watch("connector", conn)

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	wantState(t, "server", srv, lifecycle.StateStarted)
	rec.expect(t, "engine:after_start", "connector:after_start", "p1:init", "p2:init")

	if resp, _ := get(t, conn.Addr(), "any", "/"); resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	rec.expect(t,
		"engine:after_start", "connector:after_start", "p1:init", "p2:init",
		"p2:shutdown", "p1:shutdown", "connector:after_stop", "engine:after_stop",
	)
	if p1.ctx.Err() == nil {
		t.Error("plugin context not cancelled on stop")
	}

	if err := srv.Destroy(ctx); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	wantState(t, "connector", conn, lifecycle.StateDestroyed)
	wantState(t, "engine", engine, lifecycle.StateDestroyed)
}

func TestServer_PluginInitFailure(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	engine := newEngine(t, okHandler)
	boom := errors.New("boom")

	srv := newServer(t, engine,
		WithPlugin(&trackingPlugin{name: "p1", rec: rec}),
		WithPlugin(&trackingPlugin{name: "p2", rec: rec, initErr: boom}),
	)

	err := srv.Start(ctx)
	if !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want boom", err)
	}
	if !errors.Is(err, lifecycle.ErrExtensionFailure) {
		t.Errorf("Start() error = %v, want an extension failure", err)
	}
	wantState(t, "server", srv, lifecycle.StateFailed)
	rec.expect(t, "p1:init", "p2:init", "p1:shutdown")

	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	wantState(t, "server", srv, lifecycle.StateStopped)
	wantState(t, "engine", engine, lifecycle.StateStopped)
	rec.expect(t, "p1:init", "p2:init", "p1:shutdown")
}

func TestServer_AddConnectorWhileRunning(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t, okHandler)
	srv := newServer(t, engine)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Destroy(ctx)
	defer srv.Stop(ctx)

	conn := NewConnector(ConnectorConfig{Name: "late", Addr: "127.0.0.1:0"}, EngineHandler(engine, nil), nil)
	if err := srv.AddConnector(ctx, conn); err != nil {
		t.Fatalf("AddConnector() error = %v", err)
	}
	wantState(t, "connector", conn, lifecycle.StateStarted)
	if names := srv.Registry().Names(); !containsString(names, "connector/late") {
		t.Errorf("Names() = %v, want connector/late", names)
	}
}

func TestNew_NilEngine(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) succeeded")
	}
}

func TestConnector_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	conn := NewConnector(ConnectorConfig{Addr: ln.Addr().String()}, http.NotFoundHandler(), nil)
	err = conn.Start(context.Background())
	if !errors.Is(err, lifecycle.ErrExtensionFailure) {
		t.Errorf("Start() error = %v, want an extension failure", err)
	}
	wantState(t, "connector", conn, lifecycle.StateFailed)

	if err := conn.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	wantState(t, "connector", conn, lifecycle.StateDestroyed)
}

func TestConnector_Restart(t *testing.T) {
	ctx := context.Background()
	conn := NewConnector(ConnectorConfig{Addr: "127.0.0.1:0"}, http.NotFoundHandler(), nil)

	for i := 0; i < 2; i++ {
		if err := conn.Start(ctx); err != nil {
			t.Fatalf("Start() #%d error = %v", i, err)
		}
		if resp, _ := get(t, conn.Addr(), "any", "/"); resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
		if err := conn.Stop(ctx); err != nil {
			t.Fatalf("Stop() #%d error = %v", i, err)
		}
	}
	if conn.Addr() != "127.0.0.1:0" {
		t.Errorf("Addr() after stop = %q, want configured address", conn.Addr())
	}
}

func TestEngineHandler(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(w http.ResponseWriter, r *http.Request, next pipeline.Handler) error
		start bool
		want  int
	}{
		{
			name: "chain error becomes 500",
			fn: func(w http.ResponseWriter, r *http.Request, next pipeline.Handler) error {
				return errors.New("broken")
			},
			start: true,
			want:  http.StatusInternalServerError,
		},
		{
			name: "written response is kept",
			fn: func(w http.ResponseWriter, r *http.Request, next pipeline.Handler) error {
				w.WriteHeader(http.StatusTeapot)
				return errors.New("late")
			},
			start: true,
			want:  http.StatusTeapot,
		},
		{
			name: "stopped engine is unavailable",
			fn:   okHandler,
			want: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newEngine(t, tt.fn)
			if tt.start {
				if err := engine.Start(context.Background()); err != nil {
					t.Fatalf("Start() error = %v", err)
				}
			}
			rec := httptest.NewRecorder()
			EngineHandler(engine, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHostName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"localhost", "localhost"},
		{"LocalHost:8080", "localhost"},
		{"example.com.", "example.com"},
		{"[::1]:80", "::1"},
		{"[::1]", "::1"},
	}
	for _, tt := range tests {
		if got := hostName(tt.in); got != tt.want {
			t.Errorf("hostName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContextName(t *testing.T) {
	names := []struct {
		path, want string
	}{
		{"", RootContextName},
		{"/", RootContextName},
		{"/docs/api", "docs/api"},
	}
	for _, tt := range names {
		if got := ContextName(tt.path); got != tt.want {
			t.Errorf("ContextName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	paths := []struct {
		name, want string
	}{
		{RootContextName, ""},
		{"docs/api", "/docs/api"},
	}
	for _, tt := range paths {
		if got := ContextPath(container.New(tt.name, container.KindContext)); got != tt.want {
			t.Errorf("ContextPath(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestMatchPrefix(t *testing.T) {
	tests := []struct {
		path, prefix string
		want         bool
	}{
		{"/anything", "", true},
		{"/docs", "/docs", true},
		{"/docs/a", "/docs", true},
		{"/docsx", "/docs", false},
	}
	for _, tt := range tests {
		if got := matchPrefix(tt.path, tt.prefix); got != tt.want {
			t.Errorf("matchPrefix(%q, %q) = %v, want %v", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestEndpointRouter_Mount(t *testing.T) {
	er := NewEndpointRouter("/app")
	if err := er.Mount("/a/", http.NotFoundHandler(), true); err != nil {
		t.Fatalf("Mount(/a/) error = %v", err)
	}
	if err := er.Mount("/a", http.NotFoundHandler(), true); err == nil {
		t.Error("Mount() of a duplicate prefix succeeded")
	}
	if !er.AsyncSupported() {
		t.Error("AsyncSupported() = false with only async endpoints")
	}

	if err := er.Mount("/b", http.NotFoundHandler(), false); err != nil {
		t.Fatalf("Mount(/b) error = %v", err)
	}
	if er.AsyncSupported() {
		t.Error("AsyncSupported() = true after a sync endpoint")
	}

	var got string
	err := er.Mount("/a/deep", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
	}), true)
	if err != nil {
		t.Fatalf("Mount(/a/deep) error = %v", err)
	}

	rec := httptest.NewRecorder()
	if err := er.Invoke(rec, httptest.NewRequest(http.MethodGet, "/app/a/deep/x", nil)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got != "/x" {
		t.Errorf("endpoint path = %q, want /x", got)
	}

	rec = httptest.NewRecorder()
	if err := er.Invoke(rec, httptest.NewRequest(http.MethodGet, "/app/c", nil)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestIsVersionCompatible(t *testing.T) {
	tests := []struct {
		version, min string
		want         bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.2.0", "1.1.9", true},
		{"2.0.0", "1.9.9", true},
		{"1.0.0", "1.0.1", false},
		{"1.9.9", "2.0.0", false},
	}
	for _, tt := range tests {
		if got := isVersionCompatible(tt.version, tt.min); got != tt.want {
			t.Errorf("isVersionCompatible(%s, %s) = %v, want %v", tt.version, tt.min, got, tt.want)
		}
	}
	if err := validateModuleVersions(); err != nil {
		t.Errorf("validateModuleVersions() error = %v", err)
	}
}

func TestBuild_Tracing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tracing = true
	srv := mustBuild(t, cfg, WithMetricsRegisterer(prometheus.NewRegistry()))

	var kinds []string
	for _, h := range srv.Engine().Chain().Handlers() {
		kinds = append(kinds, strings.TrimPrefix(fmt.Sprintf("%T", h), "*"))
	}
	want := []string{"handlers.RequestID", "handlers.AccessLog", "handlers.Tracing", "container.ChildRouter"}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("engine chain = %v, want %v", kinds, want)
	}
}
