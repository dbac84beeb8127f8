package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/dispatch/pkg/lifecycle"
	"github.com/bft-labs/dispatch/pkg/log"
	"github.com/bft-labs/dispatch/pkg/pipeline"
)

// Metrics counts requests and observes their latency per container. It is a
// component: collectors are registered when it starts and removed when it
// is destroyed. Several Metrics handlers may share one Registerer.
type Metrics struct {
	pipeline.HandlerBase
	*lifecycle.Base

	registerer prometheus.Registerer

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	owned    []prometheus.Collector

	labelsMu sync.Mutex
	labels   map[string]struct{}
}

// NewMetrics creates a metrics handler. A nil registerer selects
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer, logger log.Logger) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{registerer: reg, labels: make(map[string]struct{})}
	m.Base = lifecycle.NewBase("metrics", m, logger)
	m.SetAsyncSupported(true)
	return m
}

func (m *Metrics) InitInternal(ctx context.Context) error { return nil }

// StartInternal registers the collectors, reusing identical ones that are
// already registered.
func (m *Metrics) StartInternal(ctx context.Context) error {
	if m.requests == nil {
		requests := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "requests_total",
			Help:      "Total number of requests by container and status code.",
		}, []string{"container", "code"})
		duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds by container.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"container"})

		var err error
		if m.requests, err = registerOrReuse(m, requests); err != nil {
			return err
		}
		if m.duration, err = registerOrReuse(m, duration); err != nil {
			return err
		}
	}
	return m.SetState(lifecycle.StateStarting)
}

func (m *Metrics) StopInternal(ctx context.Context) error {
	return m.SetState(lifecycle.StateStopping)
}

// DestroyInternal drops this handler's series and unregisters the
// collectors it registered itself.
func (m *Metrics) DestroyInternal(ctx context.Context) error {
	m.labelsMu.Lock()
	defer m.labelsMu.Unlock()
	for label := range m.labels {
		if m.requests != nil {
			m.requests.DeletePartialMatch(prometheus.Labels{"container": label})
		}
		if m.duration != nil {
			m.duration.DeleteLabelValues(label)
		}
	}
	for _, c := range m.owned {
		m.registerer.Unregister(c)
	}
	m.owned = nil
	m.labels = make(map[string]struct{})
	m.requests, m.duration = nil, nil
	return nil
}

func (m *Metrics) Invoke(w http.ResponseWriter, r *http.Request) error {
	if m.requests == nil {
		return m.InvokeNext(w, r)
	}

	start := time.Now()
	sw := WrapWriter(w)
	err := m.InvokeNext(sw, r)

	label := ownerLabel(m)
	m.requests.WithLabelValues(label, strconv.Itoa(effectiveStatus(sw, err))).Inc()
	m.duration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	m.remember(label)
	return err
}

// remember records label for clean-up at destroy.
func (m *Metrics) remember(label string) {
	m.labelsMu.Lock()
	m.labels[label] = struct{}{}
	m.labelsMu.Unlock()
}

func registerOrReuse[T prometheus.Collector](m *Metrics, c T) (T, error) {
	if err := m.registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	m.owned = append(m.owned, c)
	return c, nil
}
