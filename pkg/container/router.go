package container

import (
	"net/http"

	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// Mapper selects the child of parent that should process r, or nil.
type Mapper func(parent *Container, r *http.Request) *Container

// ChildRouter is a terminal handler that forwards requests to a child
// container chosen by a Mapper. Unmapped requests get 404 and requests for
// a child that is not running get 503.
type ChildRouter struct {
	pipeline.HandlerBase

	mapper Mapper
	logger log.Logger
}

// NewChildRouter returns a router using mapper.
func NewChildRouter(mapper Mapper, logger log.Logger) *ChildRouter {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	r := &ChildRouter{mapper: mapper, logger: logger}
	r.SetAsyncSupported(true)
	return r
}

// Invoke dispatches to the mapped child.
func (cr *ChildRouter) Invoke(w http.ResponseWriter, r *http.Request) error {
	parent, _ := cr.Owner().(*Container)
	if parent == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}

	child := cr.mapper(parent, r)
	if child == nil {
		cr.logger.Debug("no child mapped",
			log.String("container", parent.Path()),
			log.String("host", r.Host),
			log.String("path", r.URL.Path),
		)
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return nil
	}
	if !child.Available() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return nil
	}
	return child.Invoke(w, r)
}
