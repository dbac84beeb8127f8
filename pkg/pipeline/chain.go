package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
)

// Chain is the ordered handler list of one owner. It is itself a lifecycle
// component: starting the chain starts its handlers in chain order, and
// stopping it stops them in the same order.
//
// Chain mutation is not synchronized; see the package documentation.
type Chain struct {
	*lifecycle.Base

	owner    Owner
	first    Handler // first extra handler, nil when there are none
	terminal Handler
}

// NewChain creates an empty chain owned by owner. owner may be nil for a
// free-standing chain, in which case handlers are not attached and no
// container events are fired.
func NewChain(owner Owner, logger log.Logger) *Chain {
	c := &Chain{owner: owner}
	name := "chain"
	if owner != nil {
		name = owner.Name() + "/chain"
	}
	c.Base = lifecycle.NewBase(name, c, logger)
	return c
}

// Terminal returns the terminal handler, or nil.
func (c *Chain) Terminal() Handler { return c.terminal }

// First returns the entry point for invocation: the first extra handler,
// else the terminal, else nil.
func (c *Chain) First() Handler {
	if c.first != nil {
		return c.first
	}
	return c.terminal
}

// Handlers returns the extra handlers in order followed by the terminal.
func (c *Chain) Handlers() []Handler {
	var out []Handler
	for h := c.first; h != nil && h != c.terminal; h = h.Next() {
		out = append(out, h)
	}
	if c.terminal != nil {
		out = append(out, c.terminal)
	}
	return out
}

// Invoke runs the request through the chain. An empty chain does nothing.
func (c *Chain) Invoke(w http.ResponseWriter, r *http.Request) error {
	h := c.First()
	if h == nil {
		return nil
	}
	return h.Invoke(w, r)
}

// SetTerminal installs h as the terminal handler. If the chain is running
// and h is a component, h is started first; if that fails the chain is left
// exactly as it was and the error is returned. The previous terminal is then
// stopped and detached.
func (c *Chain) SetTerminal(ctx context.Context, h Handler) error {
	old := c.terminal
	if old == h {
		return nil
	}

	if h != nil {
		if c.contains(h) {
			return fmt.Errorf("%w: %s", ErrHandlerPresent, handlerName(h))
		}
		if err := c.attach(h); err != nil {
			return err
		}
		if err := c.startHandler(ctx, h); err != nil {
			c.Logger().Error("failed to start terminal handler",
				log.String("handler", handlerName(h)),
				log.Err(err),
			)
			c.detach(h)
			return fmt.Errorf("start terminal %s: %w", handlerName(h), err)
		}
	}

	if old != nil {
		if lc, ok := old.(lifecycle.Lifecycle); ok && c.Available() {
			if err := lc.Stop(ctx); err != nil {
				c.Logger().Error("failed to stop previous terminal handler",
					log.String("handler", handlerName(old)),
					log.Err(err),
				)
			}
		}
		c.detach(old)
	}

	if last := c.lastExtra(); last != nil {
		last.SetNext(h)
	}
	if h != nil {
		h.SetNext(nil)
	}
	c.terminal = h
	return nil
}

// Insert adds h immediately before the terminal. If the chain is running and
// h is a component it is started before it is linked; on failure h is
// detached, not linked, and the error is returned.
func (c *Chain) Insert(ctx context.Context, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}
	if c.contains(h) {
		return fmt.Errorf("%w: %s", ErrHandlerPresent, handlerName(h))
	}
	if err := c.attach(h); err != nil {
		return err
	}
	if err := c.startHandler(ctx, h); err != nil {
		c.Logger().Error("failed to start handler",
			log.String("handler", handlerName(h)),
			log.Err(err),
		)
		c.detach(h)
		return fmt.Errorf("start handler %s: %w", handlerName(h), err)
	}

	h.SetNext(c.terminal)
	if last := c.lastExtra(); last != nil {
		last.SetNext(h)
	} else {
		c.first = h
	}

	c.fire(EventAddHandler, h)
	return nil
}

// Remove unlinks h, detaches it, and stops (if the chain is running) and
// destroys it if it is a component. Errors from h are logged. Removing a
// handler that is not in the chain does nothing.
func (c *Chain) Remove(ctx context.Context, h Handler) {
	if h == nil || !c.unlink(h) {
		return
	}
	c.detach(h)

	if lc, ok := h.(lifecycle.Lifecycle); ok {
		if c.Available() {
			if err := lc.Stop(ctx); err != nil {
				c.Logger().Error("failed to stop removed handler",
					log.String("handler", handlerName(h)),
					log.Err(err),
				)
			}
		}
		if err := lc.Destroy(ctx); err != nil {
			c.Logger().Error("failed to destroy removed handler",
				log.String("handler", handlerName(h)),
				log.Err(err),
			)
		}
	}

	c.fire(EventRemoveHandler, h)
}

// IsAsyncSupported reports whether every handler supports async requests.
func (c *Chain) IsAsyncSupported() bool {
	for _, h := range c.Handlers() {
		if !h.AsyncSupported() {
			return false
		}
	}
	return true
}

// FindNonAsyncHandlers returns the type names of the handlers that do not
// support async requests, in chain order and without duplicates.
func (c *Chain) FindNonAsyncHandlers() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, h := range c.Handlers() {
		if h.AsyncSupported() {
			continue
		}
		name := handlerName(h)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// BackgroundProcess runs BackgroundProcess on every handler that has one.
func (c *Chain) BackgroundProcess(ctx context.Context) {
	for _, h := range c.Handlers() {
		if bp, ok := h.(BackgroundProcessor); ok {
			bp.BackgroundProcess(ctx)
		}
	}
}

// InitInternal has nothing to prepare.
func (c *Chain) InitInternal(ctx context.Context) error { return nil }

// StartInternal starts every component handler in chain order.
func (c *Chain) StartInternal(ctx context.Context) error {
	for _, h := range c.Handlers() {
		if err := c.startComponent(ctx, h); err != nil {
			return fmt.Errorf("start handler %s: %w", handlerName(h), err)
		}
	}
	return c.SetState(lifecycle.StateStarting)
}

// StopInternal stops every component handler in chain order. All handlers
// are attempted; their errors are joined.
func (c *Chain) StopInternal(ctx context.Context) error {
	if err := c.SetState(lifecycle.StateStopping); err != nil {
		return err
	}
	var errs []error
	for _, h := range c.Handlers() {
		if lc, ok := h.(lifecycle.Lifecycle); ok {
			if err := lc.Stop(ctx); err != nil {
				errs = append(errs, fmt.Errorf("stop handler %s: %w", handlerName(h), err))
			}
		}
	}
	return errors.Join(errs...)
}

// DestroyInternal removes every handler.
func (c *Chain) DestroyInternal(ctx context.Context) error {
	for _, h := range c.Handlers() {
		c.Remove(ctx, h)
	}
	return nil
}

// startHandler starts h if the chain is running and h is a component.
func (c *Chain) startHandler(ctx context.Context, h Handler) error {
	if !c.Available() {
		return nil
	}
	return c.startComponent(ctx, h)
}

func (c *Chain) startComponent(ctx context.Context, h Handler) error {
	lc, ok := h.(lifecycle.Lifecycle)
	if !ok {
		return nil
	}
	if err := lc.Start(ctx); err != nil {
		return err
	}
	// A failure swallowed by the handler's own policy still leaves it
	// unavailable.
	if !lc.State().Available() {
		return fmt.Errorf("handler left in state %s", lc.StateName())
	}
	return nil
}

// attach binds h to the chain's owner. A free-standing chain binds nothing
// but still refuses handlers that belong to an owner.
func (c *Chain) attach(h Handler) error {
	a, ok := h.(Attachable)
	if !ok {
		return nil
	}
	if c.owner == nil {
		if o := a.Owner(); o != nil {
			return fmt.Errorf("%w: owned by %s", ErrAttachmentConflict, o.Name())
		}
		return nil
	}
	return a.Attach(c.owner)
}

// detach clears h's owner if this chain's owner holds it.
func (c *Chain) detach(h Handler) {
	if c.owner == nil {
		return
	}
	if a, ok := h.(Attachable); ok && a.Owner() == c.owner {
		a.Detach()
	}
}

func (c *Chain) fire(typ string, h Handler) {
	if c.owner != nil {
		c.owner.FireContainerEvent(typ, h)
	}
}

// lastExtra returns the last non-terminal handler, or nil.
func (c *Chain) lastExtra() Handler {
	if c.first == nil {
		return nil
	}
	h := c.first
	for h.Next() != nil && h.Next() != c.terminal {
		h = h.Next()
	}
	return h
}

func (c *Chain) contains(h Handler) bool {
	for _, cur := range c.Handlers() {
		if cur == h {
			return true
		}
	}
	return false
}

// unlink removes h from the links and reports whether it was present.
func (c *Chain) unlink(h Handler) bool {
	if h == c.terminal {
		if last := c.lastExtra(); last != nil {
			last.SetNext(nil)
		}
		c.terminal = nil
		return true
	}

	if c.first == nil {
		return false
	}
	if c.first == h {
		next := h.Next()
		if next == c.terminal {
			next = nil
		}
		c.first = next
		h.SetNext(nil)
		return true
	}
	for prev := c.first; prev.Next() != nil && prev.Next() != c.terminal; prev = prev.Next() {
		if prev.Next() == h {
			prev.SetNext(h.Next())
			h.SetNext(nil)
			return true
		}
	}
	return false
}

func handlerName(h Handler) string {
	return fmt.Sprintf("%T", h)
}
