package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Endpoint kinds understood by the server builder.
const (
	EndpointStatic = "static"
	EndpointStatus = "status"
	EndpointEcho   = "echo"
)

// DefaultListen is the default HTTP listen address.
const DefaultListen = ":8080"

// Config holds CLI configuration for dispatchd.
type Config struct {
	Home   string
	Listen string

	DefaultHost string

	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	BackgroundDelay   time.Duration
	ReloadDebounce    time.Duration
	StartStopWorkers  int

	LogLevel  string
	LogFormat string

	MetricsListen string
	Tracing       bool

	Hosts []HostConfig
}

// HostConfig describes one virtual host.
type HostConfig struct {
	Name     string          `toml:"name"`
	Aliases  []string        `toml:"aliases"`
	Contexts []ContextConfig `toml:"contexts"`
}

// ContextConfig describes one application context mounted on a host.
type ContextConfig struct {
	Path       string           `toml:"path"`
	Docbase    string           `toml:"docbase"`
	Reloadable bool             `toml:"reloadable"`
	Endpoints  []EndpointConfig `toml:"endpoints"`
}

// EndpointConfig maps a path prefix inside a context to an endpoint kind.
type EndpointConfig struct {
	Path string `toml:"path"`
	Kind string `toml:"kind"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Listen:            DefaultListen,
		DefaultHost:       "localhost",
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		BackgroundDelay:   10 * time.Second,
		ReloadDebounce:    500 * time.Millisecond,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// DefaultHosts is the topology used when the configuration has none: a
// single host with a root context serving the status page and an echo
// endpoint.
func DefaultHosts(name string) []HostConfig {
	return []HostConfig{{
		Name: name,
		Contexts: []ContextConfig{{
			Path: "/",
			Endpoints: []EndpointConfig{
				{Path: "/status", Kind: EndpointStatus},
				{Path: "/", Kind: EndpointEcho},
			},
		}},
	}}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.ReloadDebounce < 0 {
		return fmt.Errorf("reload debounce must not be negative")
	}
	if c.StartStopWorkers < 0 {
		return fmt.Errorf("start-stop workers must not be negative")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", c.LogFormat)
	}
	if c.DefaultHost == "" {
		return fmt.Errorf("default host is required")
	}

	if len(c.Hosts) == 0 {
		c.Hosts = DefaultHosts(c.DefaultHost)
	}

	names := map[string]bool{}
	for i := range c.Hosts {
		h := &c.Hosts[i]
		h.Name = strings.ToLower(h.Name)
		if h.Name == "" {
			return fmt.Errorf("hosts[%d]: name is required", i)
		}
		for k := range h.Aliases {
			h.Aliases[k] = strings.ToLower(h.Aliases[k])
		}
		for _, n := range append([]string{h.Name}, h.Aliases...) {
			if names[n] {
				return fmt.Errorf("host %s: name or alias %q used twice", h.Name, n)
			}
			names[n] = true
		}
		if err := validateContexts(h); err != nil {
			return err
		}
	}
	if !names[strings.ToLower(c.DefaultHost)] {
		return fmt.Errorf("default host %q is not configured", c.DefaultHost)
	}
	return nil
}

func validateContexts(h *HostConfig) error {
	paths := map[string]bool{}
	for i := range h.Contexts {
		ctx := &h.Contexts[i]
		p, err := normalizePath(ctx.Path)
		if err != nil {
			return fmt.Errorf("host %s: context %d: %w", h.Name, i, err)
		}
		ctx.Path = p
		if paths[p] {
			return fmt.Errorf("host %s: context path %q used twice", h.Name, p)
		}
		paths[p] = true

		if ctx.Reloadable && ctx.Docbase == "" {
			return fmt.Errorf("host %s: context %q: reloadable contexts need a docbase", h.Name, p)
		}
		if len(ctx.Endpoints) == 0 {
			return fmt.Errorf("host %s: context %q: at least one endpoint is required", h.Name, p)
		}

		eps := map[string]bool{}
		for j := range ctx.Endpoints {
			ep := &ctx.Endpoints[j]
			ep.Path, err = normalizePath(ep.Path)
			if err != nil {
				return fmt.Errorf("host %s: context %q: endpoint %d: %w", h.Name, p, j, err)
			}
			if eps[ep.Path] {
				return fmt.Errorf("host %s: context %q: endpoint path %q used twice", h.Name, p, ep.Path)
			}
			eps[ep.Path] = true

			switch ep.Kind {
			case EndpointStatus, EndpointEcho:
			case EndpointStatic:
				if ctx.Docbase == "" {
					return fmt.Errorf("host %s: context %q: static endpoint needs a docbase", h.Name, p)
				}
			default:
				return fmt.Errorf("host %s: context %q: unknown endpoint kind %q", h.Name, p, ep.Kind)
			}
		}
	}
	return nil
}

// normalizePath returns p without a trailing slash; the root is "".
func normalizePath(p string) (string, error) {
	if p == "" || p == "/" {
		return "", nil
	}
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q must start with /", p)
	}
	return strings.TrimRight(p, "/"), nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
