package server

import (
	"context"
	"time"

	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/log"
)

// Plugin extends a Server with optional behavior. Plugins are initialized
// after the connectors started, in registration order, and shut down in
// reverse order before the connectors stop.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize starts the plugin. ctx is cancelled when the server stops.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin and waits for its goroutines.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to every plugin at initialization.
type PluginConfig struct {
	Engine         *container.Container
	Contexts       []ContextInfo
	ReloadDebounce time.Duration
	Logger         log.Logger
}

// ContextInfo describes a context container built from configuration.
type ContextInfo struct {
	Container  *container.Container
	Host       string
	Path       string
	Docbase    string
	Reloadable bool
}
