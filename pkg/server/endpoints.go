package server

import (
	"encoding/json"
	"net/http"

	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/handlers"
	"github.com/bft-labs/dispatch/pkg/registry"
)

// StatusNode is one container in the status report.
type StatusNode struct {
	Name      string       `json:"name"`
	Kind      string       `json:"kind"`
	State     string       `json:"state"`
	Available bool         `json:"available"`
	Children  []StatusNode `json:"children,omitempty"`
}

// StatusReport is served by the status endpoint.
type StatusReport struct {
	Tree       StatusNode       `json:"tree"`
	Components []registry.Entry `json:"components,omitempty"`
}

func statusTree(c *container.Container) StatusNode {
	n := StatusNode{
		Name:      c.Name(),
		Kind:      string(c.Kind()),
		State:     c.StateName(),
		Available: c.Available(),
	}
	for _, child := range c.Children() {
		n.Children = append(n.Children, statusTree(child))
	}
	return n
}

// StatusHandler reports the state of the container tree rooted at engine
// and, when reg is not nil, of every registered component.
func StatusHandler(engine *container.Container, reg *registry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := StatusReport{Tree: statusTree(engine)}
		if reg != nil {
			report.Components = reg.Snapshot()
		}
		writeJSON(w, http.StatusOK, report)
	})
}

// EchoResponse is served by the echo endpoint.
type EchoResponse struct {
	Method    string `json:"method"`
	Host      string `json:"host"`
	Path      string `json:"path"`
	Context   string `json:"context"`
	Endpoint  string `json:"endpoint"`
	RequestID string `json:"request_id,omitempty"`
}

// EchoHandler describes the request it received.
func EchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := EchoResponse{
			Method:    r.Method,
			Host:      r.Host,
			Path:      r.URL.Path,
			RequestID: handlers.RequestIDFromContext(r.Context()),
		}
		if rt, ok := RouteFromContext(r.Context()); ok {
			resp.Path = rt.OriginalPath
			resp.Context = rt.ContextPath
			resp.Endpoint = rt.EndpointPath
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// StaticHandler serves files below docbase.
func StaticHandler(docbase string) http.Handler {
	return http.FileServer(http.Dir(docbase))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
