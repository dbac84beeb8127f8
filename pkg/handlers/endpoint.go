package handlers

import (
	"net/http"

	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// Endpoint is a terminal handler serving requests with an http.Handler.
type Endpoint struct {
	pipeline.HandlerBase
	handler http.Handler
}

// NewEndpoint wraps h.
func NewEndpoint(h http.Handler, async bool) *Endpoint {
	e := &Endpoint{handler: h}
	e.SetAsyncSupported(async)
	return e
}

func (e *Endpoint) Invoke(w http.ResponseWriter, r *http.Request) error {
	e.handler.ServeHTTP(w, r)
	return nil
}
