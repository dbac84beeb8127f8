package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/bft-labs/dispatch/pkg/container"
	"github.com/bft-labs/dispatch/pkg/handlers"
	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// RootContextName names the context mounted at the root of a host.
const RootContextName = "ROOT"

// ContextName returns the container name for a normalized context path.
func ContextName(path string) string {
	if path == "" || path == "/" {
		return RootContextName
	}
	return strings.TrimPrefix(path, "/")
}

// ContextPath is the inverse of ContextName.
func ContextPath(c *container.Container) string {
	if c.Name() == RootContextName {
		return ""
	}
	return "/" + c.Name()
}

// matchPrefix reports whether prefix covers path on a segment boundary.
func matchPrefix(path, prefix string) bool {
	return prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/")
}

// hostName strips the port and normalizes case.
func hostName(hostport string) string {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// HostMapper selects the engine child named by the Host header, directly or
// through aliases, falling back to defaultHost.
func HostMapper(aliases map[string]string, defaultHost string) container.Mapper {
	lookup := func(engine *container.Container, name string) *container.Container {
		if h := engine.FindChild(name); h != nil {
			return h
		}
		if target, ok := aliases[name]; ok {
			return engine.FindChild(target)
		}
		return nil
	}
	defaultHost = strings.ToLower(defaultHost)

	return func(engine *container.Container, r *http.Request) *container.Container {
		if h := lookup(engine, hostName(r.Host)); h != nil {
			return h
		}
		return lookup(engine, defaultHost)
	}
}

// ContextMapper selects the host child with the longest context path that
// prefixes the request path.
func ContextMapper() container.Mapper {
	return func(host *container.Container, r *http.Request) *container.Container {
		var best *container.Container
		bestLen := -1
		for _, c := range host.Children() {
			p := ContextPath(c)
			if matchPrefix(r.URL.Path, p) && len(p) > bestLen {
				best, bestLen = c, len(p)
			}
		}
		return best
	}
}

// Route describes where a request was mapped inside its context.
type Route struct {
	ContextPath  string
	EndpointPath string
	OriginalPath string
}

type routeKey struct{}

// RouteFromContext returns the route stored by EndpointRouter.
func RouteFromContext(ctx context.Context) (Route, bool) {
	rt, ok := ctx.Value(routeKey{}).(Route)
	return rt, ok
}

type mount struct {
	prefix   string
	endpoint *handlers.Endpoint
}

// EndpointRouter is the terminal handler of a context. It forwards each
// request to the endpoint mounted under the longest matching prefix, with
// the context path and the prefix stripped from the URL.
type EndpointRouter struct {
	pipeline.HandlerBase

	contextPath string

	mu     sync.RWMutex
	mounts []mount
}

// NewEndpointRouter creates a router for the context mounted at contextPath.
func NewEndpointRouter(contextPath string) *EndpointRouter {
	er := &EndpointRouter{contextPath: strings.TrimRight(contextPath, "/")}
	er.SetAsyncSupported(true)
	return er
}

// Mount serves prefix with h. The router stays async capable only while
// every mounted endpoint is.
func (er *EndpointRouter) Mount(prefix string, h http.Handler, async bool) error {
	prefix = strings.TrimRight(prefix, "/")

	er.mu.Lock()
	defer er.mu.Unlock()
	for _, m := range er.mounts {
		if m.prefix == prefix {
			return fmt.Errorf("endpoint %q already mounted in %q", prefix, er.contextPath)
		}
	}
	er.mounts = append(er.mounts, mount{prefix: prefix, endpoint: handlers.NewEndpoint(h, async)})
	sort.SliceStable(er.mounts, func(i, j int) bool {
		return len(er.mounts[i].prefix) > len(er.mounts[j].prefix)
	})
	if !async {
		er.SetAsyncSupported(false)
	}
	return nil
}

func (er *EndpointRouter) Invoke(w http.ResponseWriter, r *http.Request) error {
	rel := strings.TrimPrefix(r.URL.Path, er.contextPath)
	if rel == "" {
		rel = "/"
	}

	er.mu.RLock()
	var target mount
	found := false
	for _, m := range er.mounts {
		if matchPrefix(rel, m.prefix) {
			target, found = m, true
			break
		}
	}
	er.mu.RUnlock()

	if !found {
		http.NotFound(w, r)
		return nil
	}

	rest := strings.TrimPrefix(rel, target.prefix)
	if rest == "" {
		rest = "/"
	}
	ctx := context.WithValue(r.Context(), routeKey{}, Route{
		ContextPath:  er.contextPath,
		EndpointPath: target.prefix,
		OriginalPath: r.URL.Path,
	})
	r2 := r.WithContext(ctx)
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = rest
	r2.URL.RawPath = ""

	return target.endpoint.Invoke(w, r2)
}
