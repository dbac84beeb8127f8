package handlers

import (
	"net/http"

	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// StatusWriter records the status code and body size written through it.
type StatusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

// WrapWriter returns w as a *StatusWriter, wrapping it only once.
func WrapWriter(w http.ResponseWriter) *StatusWriter {
	if sw, ok := w.(*StatusWriter); ok {
		return sw
	}
	return &StatusWriter{ResponseWriter: w}
}

// WriteHeader records the status code.
func (w *StatusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write records the body size.
func (w *StatusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Status returns the written status, or 0 if nothing was written.
func (w *StatusWriter) Status() int { return w.status }

// Bytes returns the number of body bytes written.
func (w *StatusWriter) Bytes() int64 { return w.bytes }

// Written reports whether a status has been sent.
func (w *StatusWriter) Written() bool { return w.status != 0 }

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *StatusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// effectiveStatus is the status a client sees for a finished invocation.
// Errors that escaped before anything was written become 500 at the
// connector.
func effectiveStatus(sw *StatusWriter, err error) int {
	switch {
	case sw.Written():
		return sw.Status()
	case err != nil:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// pathOwner is implemented by containers.
type pathOwner interface {
	Path() string
}

// ownerLabel names the container a handler is attached to.
func ownerLabel(h pipeline.Attachable) string {
	switch o := h.Owner().(type) {
	case nil:
		return "none"
	case pathOwner:
		return o.Path()
	default:
		return o.Name()
	}
}
