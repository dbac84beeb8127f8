package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
)

var (
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("component already registered")

	// ErrNotFound is returned when unregistering an unknown name.
	ErrNotFound = errors.New("component not registered")

	// ErrEmptyName is returned for registrations without a name.
	ErrEmptyName = errors.New("empty component name")
)

// Entry is a point-in-time view of one registered component.
type Entry struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Available bool   `json:"available"`
}

// Registry is a concurrency-safe set of named components.
type Registry struct {
	mu         sync.RWMutex
	components map[string]lifecycle.Lifecycle
	logger     log.Logger

	stateDesc *prometheus.Desc
	availDesc *prometheus.Desc
}

var _ lifecycle.Registrar = (*Registry)(nil)
var _ prometheus.Collector = (*Registry)(nil)

// New creates an empty registry.
func New(logger log.Logger) *Registry {
	return &Registry{
		components: make(map[string]lifecycle.Lifecycle),
		logger:     log.Named(logger, "registry"),
		stateDesc: prometheus.NewDesc(
			"dispatch_component_state",
			"Lifecycle state of the component (0=NEW ... 11=FAILED).",
			[]string{"component"}, nil,
		),
		availDesc: prometheus.NewDesc(
			"dispatch_component_available",
			"Whether the component accepts work (1) or not (0).",
			[]string{"component"}, nil,
		),
	}
}

// Register adds c under name.
func (r *Registry) Register(name string, c lifecycle.Lifecycle) error {
	if name == "" {
		return ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.components[name] = c
	r.logger.Debug("component registered", log.String("name", name))
	return nil
}

// Unregister removes name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.components, name)
	r.logger.Debug("component unregistered", log.String("name", name))
	return nil
}

// Lookup returns the component registered under name.
func (r *Registry) Lookup(name string) (lifecycle.Lifecycle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[name]
	return c, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot returns the current state of every component, sorted by name.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.components))
	for name, c := range r.components {
		st := c.State()
		entries = append(entries, Entry{Name: name, State: st.String(), Available: st.Available()})
	}
	r.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.stateDesc
	ch <- r.availDesc
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, c := range r.components {
		st := c.State()
		avail := 0.0
		if st.Available() {
			avail = 1
		}
		ch <- prometheus.MustNewConstMetric(r.stateDesc, prometheus.GaugeValue, float64(st), name)
		ch <- prometheus.MustNewConstMetric(r.availDesc, prometheus.GaugeValue, avail, name)
	}
}
