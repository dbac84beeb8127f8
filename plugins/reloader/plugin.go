// Package reloader restarts application contexts when their docbase
// changes. When enabled, it watches the docbase of every reloadable context
// and reloads the context once the changes settle.
package reloader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/server"
)

// Plugin implements context reloading.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	debounceDelay    time.Duration
	retryInterval    time.Duration
	maxRetryInterval time.Duration

	// Runtime state
	logger   log.Logger
	targets  []server.ContextInfo
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
	timers   map[*container.Container]*time.Timer
	inflight map[*container.Container]bool
	dirty    map[*container.Container]bool
	reloads  atomic.Int64
	failures atomic.Int64
}

// Config holds configuration options for the reloader plugin.
type Config struct {
	// DebounceDelay is the quiet period after the last change before a
	// context is reloaded. Zero uses the server's reload debounce.
	DebounceDelay time.Duration

	// RetryInterval is the first delay between failed reload attempts.
	// Default: 1 second
	RetryInterval time.Duration

	// MaxRetryInterval caps the exponential retry delay.
	// Default: 30 seconds
	MaxRetryInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval:    time.Second,
		MaxRetryInterval: 30 * time.Second,
	}
}

// New creates a new reloader plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.MaxRetryInterval <= 0 {
		cfg.MaxRetryInterval = 30 * time.Second
	}
	if cfg.MaxRetryInterval < cfg.RetryInterval {
		cfg.MaxRetryInterval = cfg.RetryInterval
	}

	return &Plugin{
		debounceDelay:    cfg.DebounceDelay,
		retryInterval:    cfg.RetryInterval,
		maxRetryInterval: cfg.MaxRetryInterval,
		logger:           log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "reloader"
}

// Reloads returns the number of completed reloads.
func (p *Plugin) Reloads() int64 { return p.reloads.Load() }

// Failures returns the number of failed reload attempts.
func (p *Plugin) Failures() int64 { return p.failures.Load() }

// Initialize starts watching the docbases of the reloadable contexts.
func (p *Plugin) Initialize(ctx context.Context, cfg server.PluginConfig) error {
	var targets []server.ContextInfo
	for _, info := range cfg.Contexts {
		if info.Reloadable && info.Docbase != "" && info.Container != nil {
			targets = append(targets, info)
		}
	}

	p.mu.Lock()
	p.logger = log.Named(cfg.Logger, p.Name())
	if p.debounceDelay <= 0 {
		p.debounceDelay = cfg.ReloadDebounce
	}
	if p.debounceDelay <= 0 {
		p.debounceDelay = 500 * time.Millisecond
	}
	p.targets = targets
	p.closed = false
	p.timers = make(map[*container.Container]*time.Timer)
	p.inflight = make(map[*container.Container]bool)
	p.dirty = make(map[*container.Container]bool)
	p.mu.Unlock()

	if len(targets) == 0 {
		p.logger.Info("Reloader disabled: no reloadable contexts")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, t := range targets {
		if err := addTree(watcher, t.Docbase); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", t.Docbase, err)
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.watcher = watcher
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("Reloader plugin initialized", log.Int("contexts", len(targets)))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops watching and waits for running reloads.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	cancel := p.cancel
	p.cancel = nil
	for c, t := range p.timers {
		t.Stop()
		delete(p.timers, c)
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

// addTree watches root and every directory below it.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// watchLoop dispatches file events to the owning contexts.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New directories are watched too; errors only mean it is a file.
				_ = addTree(watcher, event.Name)
			}
			if t, ok := p.targetFor(event.Name); ok {
				p.schedule(ctx, t)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("Reloader: watcher error", log.Err(err))
		}
	}
}

// targetFor returns the context with the longest docbase containing path.
func (p *Plugin) targetFor(path string) (server.ContextInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best server.ContextInfo
	found := false
	for _, t := range p.targets {
		base := filepath.Clean(t.Docbase)
		if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
			continue
		}
		if !found || len(base) > len(best.Docbase) {
			best, found = t, true
		}
	}
	return best, found
}

// schedule (re)arms the debounce timer of t.
func (p *Plugin) schedule(ctx context.Context, t server.ContextInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	c := t.Container
	if timer := p.timers[c]; timer != nil {
		timer.Stop()
	}
	p.timers[c] = time.AfterFunc(p.debounceDelay, func() {
		p.mu.Lock()
		delete(p.timers, c)
		if p.closed {
			p.mu.Unlock()
			return
		}
		if p.inflight[c] {
			p.dirty[c] = true
			p.mu.Unlock()
			return
		}
		p.inflight[c] = true
		p.wg.Add(1)
		p.mu.Unlock()

		defer p.wg.Done()
		p.run(ctx, t)
	})
}

// run reloads t until no change arrived during the last reload.
func (p *Plugin) run(ctx context.Context, t server.ContextInfo) {
	c := t.Container
	for {
		p.reloadWithRetry(ctx, t)

		p.mu.Lock()
		if !p.dirty[c] || p.closed {
			delete(p.inflight, c)
			delete(p.dirty, c)
			p.mu.Unlock()
			return
		}
		delete(p.dirty, c)
		p.mu.Unlock()
	}
}

// reloadWithRetry retries until success, destruction of the context or
// context cancellation.
func (p *Plugin) reloadWithRetry(ctx context.Context, t server.ContextInfo) {
	c := t.Container
	backoff := lifecycle.NewBackoff(p.retryInterval, p.maxRetryInterval)
	retryCount := 0

	for {
		if ctx.Err() != nil {
			return
		}
		switch c.State() {
		case lifecycle.StateDestroying, lifecycle.StateDestroyed:
			p.logger.Warn("Reloader: context destroyed, giving up", log.String("context", c.Path()))
			return
		}

		err := reload(ctx, c)
		if err == nil {
			p.reloads.Add(1)
			if retryCount > 0 {
				p.logger.Info("Reloader: context reloaded after retries",
					log.String("context", c.Path()),
					log.Int("retries", retryCount))
			} else {
				p.logger.Info("Reloader: context reloaded", log.String("context", c.Path()))
			}
			return
		}

		// Failure - log and retry
		retryCount++
		p.failures.Add(1)
		p.logger.Error("Reloader: reload failed",
			log.String("context", c.Path()),
			log.Err(err))

		if backoff.Wait(ctx) != nil {
			p.logger.Info("Reloader: stopping retry due to context cancellation")
			return
		}
	}
}

// reload restarts a running context, or starts one a failed reload left
// behind.
func reload(ctx context.Context, c *container.Container) error {
	if c.Available() {
		return c.Reload(ctx)
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	if !c.Available() {
		return fmt.Errorf("%s left in state %s", c.Path(), c.StateName())
	}
	return nil
}

// Ensure Plugin implements server.Plugin.
var _ server.Plugin = (*Plugin)(nil)
