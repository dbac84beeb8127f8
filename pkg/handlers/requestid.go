package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// RequestIDHeader carries the request ID in requests and responses.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request ID stored by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID assigns every request an ID. An incoming X-Request-ID header is
// kept; otherwise a random UUID is generated. The ID is echoed in the
// response header and stored in the request context.
type RequestID struct {
	pipeline.HandlerBase
}

// NewRequestID creates a request ID handler.
func NewRequestID() *RequestID {
	h := &RequestID{}
	h.SetAsyncSupported(true)
	return h
}

func (h *RequestID) Invoke(w http.ResponseWriter, r *http.Request) error {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		r.Header.Set(RequestIDHeader, id)
	}
	w.Header().Set(RequestIDHeader, id)
	return h.InvokeNext(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
}
