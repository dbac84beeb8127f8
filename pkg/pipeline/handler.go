package pipeline

import (
	"context"
	"net/http"
)

// Handler is one link of a Chain.
//
// Handler values are compared by identity, so implementations should be
// pointer types.
type Handler interface {
	// Invoke processes the request and usually calls the next handler.
	Invoke(w http.ResponseWriter, r *http.Request) error

	// Next returns the following handler, or nil for the terminal.
	Next() Handler

	// SetNext is called by the chain when links change.
	SetNext(h Handler)

	// AsyncSupported reports whether the handler tolerates requests that
	// outlive the Invoke call.
	AsyncSupported() bool
}

// BackgroundProcessor is implemented by handlers and containers that want
// periodic housekeeping. The owning container calls it on its background
// schedule.
type BackgroundProcessor interface {
	BackgroundProcess(ctx context.Context)
}

// HandlerBase provides the link and attachment bookkeeping of a Handler.
// Embed it and implement Invoke.
type HandlerBase struct {
	AttachPoint

	next  Handler
	async bool
}

// Next returns the following handler.
func (b *HandlerBase) Next() Handler { return b.next }

// SetNext sets the following handler.
func (b *HandlerBase) SetNext(h Handler) { b.next = h }

// AsyncSupported reports the flag set with SetAsyncSupported.
func (b *HandlerBase) AsyncSupported() bool { return b.async }

// SetAsyncSupported marks the handler as async capable.
func (b *HandlerBase) SetAsyncSupported(v bool) { b.async = v }

// InvokeNext calls the following handler, if any.
func (b *HandlerBase) InvokeNext(w http.ResponseWriter, r *http.Request) error {
	if b.next == nil {
		return nil
	}
	return b.next.Invoke(w, r)
}

// FuncHandler adapts a function to a Handler. The function receives the
// following handler (possibly nil) so it can continue the chain.
type FuncHandler struct {
	HandlerBase
	fn func(w http.ResponseWriter, r *http.Request, next Handler) error
}

// Func returns a handler running fn.
func Func(fn func(w http.ResponseWriter, r *http.Request, next Handler) error, async bool) *FuncHandler {
	h := &FuncHandler{fn: fn}
	h.SetAsyncSupported(async)
	return h
}

// Invoke calls the wrapped function.
func (h *FuncHandler) Invoke(w http.ResponseWriter, r *http.Request) error {
	return h.fn(w, r, h.Next())
}
