package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// Kind names the level of a container in the hierarchy.
type Kind string

const (
	KindEngine  Kind = "engine"
	KindHost    Kind = "host"
	KindContext Kind = "context"
)

// backgroundStopTimeout bounds the wait for the background goroutine.
const backgroundStopTimeout = 10 * time.Second

// Container is a named node of the container tree.
type Container struct {
	*lifecycle.Base

	kind  Kind
	chain *pipeline.Chain

	mu       sync.RWMutex
	parent   *Container
	children map[string]*Container
	order    []string

	workers         int
	backgroundDelay time.Duration
	background      *lifecycle.Workers

	registrar  lifecycle.Registrar
	registered string

	listenersMu sync.Mutex
	listeners   []Listener
}

// New creates a container in StateNew with an empty chain.
func New(name string, kind Kind, opts ...Option) *Container {
	o := options{logger: log.NewNoopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.NumCPU()
	}

	c := &Container{
		kind:            kind,
		children:        make(map[string]*Container),
		workers:         o.workers,
		backgroundDelay: o.backgroundDelay,
		registrar:       o.registrar,
	}
	c.Base = lifecycle.NewBase(name, c, o.logger)
	c.chain = pipeline.NewChain(c, o.logger)
	c.background = lifecycle.NewWorkers(c.Logger())
	return c
}

// Kind returns the container kind.
func (c *Container) Kind() Kind { return c.kind }

// Chain returns the container's handler chain.
func (c *Container) Chain() *pipeline.Chain { return c.chain }

// Parent returns the parent container, or nil.
func (c *Container) Parent() *Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

// Path returns the slash separated names from the root to c.
func (c *Container) Path() string {
	if p := c.Parent(); p != nil {
		return p.Path() + "/" + c.Name()
	}
	return c.Name()
}

// BackgroundDelay returns the background processing period.
func (c *Container) BackgroundDelay() time.Duration { return c.backgroundDelay }

// StartStopWorkers returns the bound on concurrent child operations.
func (c *Container) StartStopWorkers() int { return c.workers }

// Invoke runs the request through the container's chain.
func (c *Container) Invoke(w http.ResponseWriter, r *http.Request) error {
	if !c.Available() {
		return fmt.Errorf("%w: %s", ErrNotAvailable, c.Path())
	}
	return c.chain.Invoke(w, r)
}

// AddChild adds child under c. If c is running the child is started and a
// start failure is returned; the child stays registered in that case.
// Callers serialize tree mutation; see the package documentation.
func (c *Container) AddChild(ctx context.Context, child *Container) error {
	if child == nil {
		return errors.New("nil child")
	}
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur == child {
			return fmt.Errorf("%w: %s would contain itself", pipeline.ErrAttachmentConflict, child.Name())
		}
	}

	c.mu.Lock()
	child.mu.Lock()
	if child.parent != nil && child.parent != c {
		owner := child.parent.Name()
		child.mu.Unlock()
		c.mu.Unlock()
		return fmt.Errorf("%w: %s belongs to %s", pipeline.ErrAttachmentConflict, child.Name(), owner)
	}
	if _, ok := c.children[child.Name()]; ok {
		child.mu.Unlock()
		c.mu.Unlock()
		return fmt.Errorf("%w: %s in %s", ErrDuplicateChild, child.Name(), c.Name())
	}
	child.parent = c
	child.mu.Unlock()
	c.children[child.Name()] = child
	c.order = append(c.order, child.Name())
	c.mu.Unlock()

	c.FireContainerEvent(EventAddChild, child)

	if st := c.State(); st.Available() || st == lifecycle.StateStartingPrep {
		if err := child.Start(ctx); err != nil {
			return fmt.Errorf("start child %s: %w", child.Name(), err)
		}
	}
	return nil
}

// RemoveChild stops (if running) and destroys child and removes it from c.
// Errors from the child are logged. Removing an unknown child does nothing.
func (c *Container) RemoveChild(ctx context.Context, child *Container) {
	if child == nil || c.FindChild(child.Name()) != child {
		return
	}

	if child.Available() {
		if err := child.Stop(ctx); err != nil {
			c.Logger().Error("failed to stop child",
				log.String("child", child.Name()),
				log.Err(err),
			)
		}
	}
	if st := child.State(); st != lifecycle.StateDestroying && st != lifecycle.StateDestroyed {
		if err := child.Destroy(ctx); err != nil {
			c.Logger().Error("failed to destroy child",
				log.String("child", child.Name()),
				log.Err(err),
			)
		}
	}

	c.detachChild(child)
}

// detachChild unlinks child without touching its lifecycle.
func (c *Container) detachChild(child *Container) {
	c.mu.Lock()
	if c.children[child.Name()] != child {
		c.mu.Unlock()
		return
	}
	delete(c.children, child.Name())
	for i, name := range c.order {
		if name == child.Name() {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	child.mu.Lock()
	child.parent = nil
	child.mu.Unlock()

	c.FireContainerEvent(EventRemoveChild, child)
}

// FindChild returns the child with the given name, or nil.
func (c *Container) FindChild(name string) *Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.children[name]
}

// Children returns the children in insertion order.
func (c *Container) Children() []*Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Container, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.children[name])
	}
	return out
}

// AddContainerListener registers l for container events.
func (c *Container) AddContainerListener(l Listener) {
	if l == nil {
		return
	}
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	next := make([]Listener, len(c.listeners), len(c.listeners)+1)
	copy(next, c.listeners)
	c.listeners = append(next, l)
}

// RemoveContainerListener removes the first registration of l.
func (c *Container) RemoveContainerListener(l Listener) {
	if l == nil {
		return
	}
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	for i, cur := range c.listeners {
		if sameListener(cur, l) {
			next := make([]Listener, 0, len(c.listeners)-1)
			next = append(next, c.listeners[:i]...)
			c.listeners = append(next, c.listeners[i+1:]...)
			return
		}
	}
}

func sameListener(a, b Listener) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return ta.Comparable() && a == b
}

// FireContainerEvent notifies the container listeners.
func (c *Container) FireContainerEvent(typ string, data interface{}) {
	c.listenersMu.Lock()
	snapshot := c.listeners
	c.listenersMu.Unlock()

	ev := Event{Container: c, Type: typ, Data: data}
	for _, l := range snapshot {
		l.ContainerEvent(ev)
	}
}

// Reload stops and restarts a running container.
func (c *Container) Reload(ctx context.Context) error {
	if !c.Available() {
		return fmt.Errorf("%w: %s", ErrNotAvailable, c.Path())
	}
	c.Logger().Info("reloading", log.String("path", c.Path()))

	if err := c.Stop(ctx); err != nil {
		return fmt.Errorf("reload %s: %w", c.Path(), err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("reload %s: %w", c.Path(), err)
	}
	if !c.Available() {
		return fmt.Errorf("reload %s: left in state %s", c.Path(), c.StateName())
	}
	return nil
}

// BackgroundProcess runs the chain's background processors and fires the
// periodic lifecycle event.
func (c *Container) BackgroundProcess(ctx context.Context) {
	if !c.Available() {
		return
	}
	c.chain.BackgroundProcess(ctx)
	if err := c.FireLifecycleEvent(lifecycle.EventPeriodic, nil); err != nil {
		c.Logger().Warn("periodic listener failed", log.Err(err))
	}
}

// processTree processes c and, recursively, the children that have no
// background processor of their own.
func (c *Container) processTree(ctx context.Context) {
	c.BackgroundProcess(ctx)
	for _, child := range c.Children() {
		if ctx.Err() != nil {
			return
		}
		if child.backgroundDelay <= 0 {
			child.processTree(ctx)
		}
	}
}

func (c *Container) startBackground() {
	if c.backgroundDelay <= 0 {
		return
	}
	ctx := c.background.Context()
	delay := c.backgroundDelay
	c.background.Go(func() {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.processTree(ctx)
			}
		}
	})
}

func (c *Container) stopBackground() {
	if c.backgroundDelay <= 0 {
		return
	}
	c.background.Cancel()
	if err := c.background.WaitWithTimeout(backgroundStopTimeout); err != nil {
		c.Logger().Warn("background processor did not stop", log.Err(err))
	}
}

// lookupRegistrar returns the registrar of c or its nearest ancestor.
func (c *Container) lookupRegistrar() lifecycle.Registrar {
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur.registrar != nil {
			return cur.registrar
		}
	}
	return nil
}

// InitInternal registers the container.
func (c *Container) InitInternal(ctx context.Context) error {
	reg := c.lookupRegistrar()
	if reg == nil {
		return nil
	}
	name := c.Path()
	if err := reg.Register(name, c); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	c.registered = name
	return nil
}

// StartInternal starts children, then the chain, then the background
// processor.
func (c *Container) StartInternal(ctx context.Context) error {
	if err := c.eachChild(ctx, "start", func(ctx context.Context, child *Container) error {
		if err := child.Start(ctx); err != nil {
			return err
		}
		if !child.Available() {
			return fmt.Errorf("%s left in state %s", child.Name(), child.StateName())
		}
		return nil
	}); err != nil {
		return err
	}

	if err := c.chain.Start(ctx); err != nil {
		return fmt.Errorf("start chain: %w", err)
	}
	if !c.chain.Available() {
		return fmt.Errorf("chain left in state %s", c.chain.StateName())
	}

	if err := c.SetState(lifecycle.StateStarting); err != nil {
		return err
	}
	c.startBackground()
	return nil
}

// StopInternal stops the background processor, the chain, then children.
func (c *Container) StopInternal(ctx context.Context) error {
	c.stopBackground()

	if err := c.SetState(lifecycle.StateStopping); err != nil {
		return err
	}

	var errs []error
	if err := c.chain.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop chain: %w", err))
	}
	if err := c.eachChild(ctx, "stop", func(ctx context.Context, child *Container) error {
		return child.Stop(ctx)
	}); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DestroyInternal destroys the chain and children and unregisters.
func (c *Container) DestroyInternal(ctx context.Context) error {
	if err := c.chain.Destroy(ctx); err != nil {
		c.Logger().Error("failed to destroy chain", log.Err(err))
	}
	for _, child := range c.Children() {
		c.RemoveChild(ctx, child)
	}

	if c.registered != "" {
		if reg := c.lookupRegistrar(); reg != nil {
			if err := reg.Unregister(c.registered); err != nil {
				c.Logger().Warn("failed to unregister", log.String("name", c.registered), log.Err(err))
			}
		}
		c.registered = ""
	}

	if p := c.Parent(); p != nil {
		p.detachChild(c)
	}
	return nil
}

// eachChild runs fn for every child, concurrently on a pool of at most
// StartStopWorkers goroutines when there is more than one child. Every child
// is attempted. The result is nil or a *CascadeError.
func (c *Container) eachChild(ctx context.Context, op string, fn func(context.Context, *Container) error) error {
	children := c.Children()
	results := make([]error, len(children))

	if len(children) == 1 {
		results[0] = fn(ctx, children[0])
	} else if len(children) > 1 {
		var g errgroup.Group
		g.SetLimit(c.workers)
		for i, child := range children {
			i, child := i, child
			g.Go(func() error {
				results[i] = fn(ctx, child)
				return nil
			})
		}
		_ = g.Wait()
	}

	var cerr *CascadeError
	for i, err := range results {
		if err == nil {
			continue
		}
		if cerr == nil {
			cerr = &CascadeError{Op: op, Err: err}
		}
		cerr.Failed = append(cerr.Failed, children[i].Name())
		c.Logger().Error("child "+op+" failed",
			log.String("child", children[i].Name()),
			log.Err(err),
		)
	}
	if cerr == nil {
		return nil
	}
	return cerr
}
