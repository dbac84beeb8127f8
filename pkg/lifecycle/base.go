package lifecycle

import (
	"context"
	"reflect"
	"sync"

	"github.com/bft-labs/dispatch/pkg/log"
)

// heldKey marks a context as running inside an operation of one Base.
type heldKey struct{ b *Base }

// Base implements the lifecycle state machine around a Hooks value.
// Components embed *Base and create it with NewBase.
type Base struct {
	name   string
	self   Lifecycle
	hooks  Hooks
	logger log.Logger

	// opMu serializes Init, Start, Stop and Destroy. held is the marked
	// context of the operation holding it, guarded by stateMu.
	opMu sync.Mutex
	held context.Context

	// stateMu guards state and throwOnFailure.
	stateMu        sync.RWMutex
	state          State
	throwOnFailure bool

	// listeners is copy-on-write: mutators replace the slice.
	listenersMu sync.Mutex
	listeners   []Listener
}

// NewBase returns a Base in StateNew that drives hooks. If hooks also
// implements Lifecycle (the usual case, a component embedding *Base) it is
// reported as the event source.
func NewBase(name string, hooks Hooks, logger log.Logger) *Base {
	b := &Base{
		name:           name,
		hooks:          hooks,
		logger:         log.Named(logger, name),
		state:          StateNew,
		throwOnFailure: true,
	}
	if lc, ok := hooks.(Lifecycle); ok {
		b.self = lc
	} else {
		b.self = b
	}
	return b
}

// Name returns the component name given to NewBase.
func (b *Base) Name() string { return b.name }

// String returns the component name.
func (b *Base) String() string { return b.name }

// Logger returns the component-scoped logger.
func (b *Base) Logger() log.Logger { return b.logger }

// ThrowOnFailure reports whether hook failures are returned to the caller.
func (b *Base) ThrowOnFailure() bool {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.throwOnFailure
}

// SetThrowOnFailure selects whether hook failures are returned (true, the
// default) or only logged. The component ends in StateFailed either way.
func (b *Base) SetThrowOnFailure(v bool) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.throwOnFailure = v
}

// State returns the current lifecycle state.
func (b *Base) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// StateName returns the name of the current state.
func (b *Base) StateName() string {
	return b.State().String()
}

// Available reports whether the component currently accepts work.
func (b *Base) Available() bool {
	return b.State().Available()
}

// AddListener registers l. Duplicates are permitted and notified twice.
func (b *Base) AddListener(l Listener) {
	if l == nil {
		return
	}
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()
	next := make([]Listener, len(b.listeners), len(b.listeners)+1)
	copy(next, b.listeners)
	b.listeners = append(next, l)
}

// RemoveListener removes the first registration of l.
func (b *Base) RemoveListener(l Listener) {
	if l == nil {
		return
	}
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()
	for i, cur := range b.listeners {
		if sameListener(cur, l) {
			next := make([]Listener, 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			b.listeners = append(next, b.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns a snapshot of the registered listeners.
func (b *Base) Listeners() []Listener {
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()
	out := make([]Listener, len(b.listeners))
	copy(out, b.listeners)
	return out
}

// sameListener compares listeners by identity. Function listeners are not
// comparable and are matched by code pointer.
func sameListener(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	if ta.Kind() == reflect.Func {
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

// FireLifecycleEvent delivers an event of the given type to a snapshot of
// the listeners, in registration order. The first listener error stops
// delivery and is returned.
func (b *Base) FireLifecycleEvent(typ string, data interface{}) error {
	return b.fire(context.Background(), typ, data)
}

func (b *Base) fire(ctx context.Context, typ string, data interface{}) error {
	b.listenersMu.Lock()
	snapshot := b.listeners
	b.listenersMu.Unlock()

	ev := Event{Ctx: ctx, Source: b.self, Type: typ, Data: data}
	for _, l := range snapshot {
		if err := l.LifecycleEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// SetState moves the component to s from inside a hook. Only the moves a
// hook is entitled to make are accepted: STARTING_PREP to STARTING,
// STOPPING_PREP to STOPPING, FAILED to STOPPING, and anything to FAILED.
func (b *Base) SetState(s State) error {
	return b.setStateInternal(b.heldCtx(), s, nil, true)
}

// SetStateWithData is SetState with event data for the listeners.
func (b *Base) SetStateWithData(s State, data interface{}) error {
	return b.setStateInternal(b.heldCtx(), s, data, true)
}

// heldCtx returns the context of the running operation, or Background.
func (b *Base) heldCtx() context.Context {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	if b.held == nil {
		return context.Background()
	}
	return b.held
}

func (b *Base) setStateInternal(ctx context.Context, s State, data interface{}, check bool) error {
	b.stateMu.Lock()
	prev := b.state
	if check {
		legal := s == StateFailed ||
			(prev == StateStartingPrep && s == StateStarting) ||
			(prev == StateStoppingPrep && s == StateStopping) ||
			(prev == StateFailed && s == StateStopping)
		if !legal {
			b.stateMu.Unlock()
			return &TransitionError{Component: b.name, Event: s.String(), State: prev}
		}
	}
	b.state = s
	b.stateMu.Unlock()

	b.logger.Debug("state transition",
		log.String("from", prev.String()),
		log.String("to", s.String()),
	)

	if ev := s.Event(); ev != "" {
		return b.fire(ctx, ev, data)
	}
	return nil
}

// forceState sets the state without validation or events.
func (b *Base) forceState(s State) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
}

func (b *Base) invalidTransition(event string) error {
	return &TransitionError{Component: b.name, Event: event, State: b.State()}
}

// acquire takes the operation lock unless ctx already holds it.
func (b *Base) acquire(ctx context.Context) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(heldKey{b}) != nil {
		return ctx, func() {}
	}
	b.opMu.Lock()
	held := context.WithValue(ctx, heldKey{b}, true)
	b.stateMu.Lock()
	b.held = held
	b.stateMu.Unlock()
	return held, func() {
		b.stateMu.Lock()
		b.held = nil
		b.stateMu.Unlock()
		b.opMu.Unlock()
	}
}

// Init runs InitInternal between INITIALIZING and INITIALIZED.
func (b *Base) Init(ctx context.Context) error {
	ctx, release := b.acquire(ctx)
	defer release()
	return b.init(ctx)
}

func (b *Base) init(ctx context.Context) error {
	if b.State() != StateNew {
		return b.invalidTransition(EventBeforeInit)
	}

	err := func() error {
		if err := b.setStateInternal(ctx, StateInitializing, nil, false); err != nil {
			return err
		}
		if err := b.hooks.InitInternal(ctx); err != nil {
			return err
		}
		return b.setStateInternal(ctx, StateInitialized, nil, false)
	}()
	if err != nil {
		return b.handleFailure(err, "init")
	}
	return nil
}

// Start runs StartInternal between STARTING_PREP and STARTED.
func (b *Base) Start(ctx context.Context) error {
	ctx, release := b.acquire(ctx)
	defer release()
	return b.start(ctx)
}

func (b *Base) start(ctx context.Context) error {
	switch st := b.State(); st {
	case StateStartingPrep, StateStarting, StateStarted:
		b.logger.Info("already started", log.String("state", st.String()))
		return nil
	case StateNew:
		if err := b.init(ctx); err != nil {
			return err
		}
		if b.State() != StateInitialized {
			// init failed and the failure policy swallowed it
			return nil
		}
	case StateFailed:
		if err := b.stop(ctx); err != nil {
			return err
		}
		if b.State() != StateStopped {
			return nil
		}
	case StateInitialized, StateStopped:
	default:
		return b.invalidTransition(EventBeforeStart)
	}

	err := func() error {
		if err := b.setStateInternal(ctx, StateStartingPrep, nil, false); err != nil {
			return err
		}
		if err := b.hooks.StartInternal(ctx); err != nil {
			return err
		}
		switch b.State() {
		case StateFailed:
			// The hook failed in a controlled way; finish the clean-up.
			return b.stop(ctx)
		case StateStarting:
			return b.setStateInternal(ctx, StateStarted, nil, false)
		default:
			return b.invalidTransition(EventAfterStart)
		}
	}()
	if err != nil {
		return b.handleFailure(err, "start")
	}
	return nil
}

// Stop runs StopInternal between STOPPING_PREP and STOPPED.
func (b *Base) Stop(ctx context.Context) error {
	ctx, release := b.acquire(ctx)
	defer release()
	return b.stop(ctx)
}

func (b *Base) stop(ctx context.Context) error {
	st := b.State()
	switch st {
	case StateStoppingPrep, StateStopping, StateStopped:
		b.logger.Info("already stopped", log.String("state", st.String()))
		return nil
	case StateNew:
		// Never started, for instance because a parent failed first.
		b.forceState(StateStopped)
		return nil
	case StateStarted, StateFailed:
	default:
		return b.invalidTransition(EventBeforeStop)
	}

	err := func() error {
		if st == StateFailed {
			// Stay out of STOPPING_PREP, which would briefly look available,
			// but still announce the stop.
			if err := b.fire(ctx, EventBeforeStop, nil); err != nil {
				return err
			}
		} else if err := b.setStateInternal(ctx, StateStoppingPrep, nil, false); err != nil {
			return err
		}

		if err := b.hooks.StopInternal(ctx); err != nil {
			return err
		}

		if s := b.State(); s != StateStopping && s != StateFailed {
			return b.invalidTransition(EventAfterStop)
		}
		return b.setStateInternal(ctx, StateStopped, nil, false)
	}()
	if err != nil {
		err = b.handleFailure(err, "stop")
	}

	if _, ok := b.hooks.(SingleUse); ok {
		if serr := b.setStateInternal(ctx, StateStopped, nil, false); serr != nil {
			b.logger.Error("listener failed after single-use stop", log.Err(serr))
		}
		if derr := b.destroy(ctx); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// Destroy runs DestroyInternal between DESTROYING and DESTROYED.
func (b *Base) Destroy(ctx context.Context) error {
	ctx, release := b.acquire(ctx)
	defer release()
	return b.destroy(ctx)
}

func (b *Base) destroy(ctx context.Context) error {
	if b.State() == StateFailed {
		if err := b.stop(ctx); err != nil {
			// Destruction proceeds regardless.
			b.logger.Error("stop before destroy failed", log.Err(err))
		}
	}

	switch st := b.State(); st {
	case StateDestroying, StateDestroyed:
		if _, single := b.hooks.(SingleUse); !single {
			b.logger.Info("already destroyed", log.String("state", st.String()))
		}
		return nil
	case StateStopped, StateFailed, StateNew, StateInitialized:
	default:
		return b.invalidTransition(EventBeforeDestroy)
	}

	err := func() error {
		if err := b.setStateInternal(ctx, StateDestroying, nil, false); err != nil {
			return err
		}
		if err := b.hooks.DestroyInternal(ctx); err != nil {
			return err
		}
		return b.setStateInternal(ctx, StateDestroyed, nil, false)
	}()
	if err != nil {
		return b.handleFailure(err, "destroy")
	}
	return nil
}

// handleFailure forces StateFailed and applies the failure policy.
func (b *Base) handleFailure(err error, op string) error {
	b.forceState(StateFailed)
	if !isLifecycleError(err) {
		err = &Error{Component: b.name, Op: op, Err: err}
	}
	if b.ThrowOnFailure() {
		return err
	}
	b.logger.Error(op+" failed", log.Err(err))
	return nil
}
