// Package metrics exports store change activity as Prometheus metrics.
package metrics

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	sb "github.com/goliatone/go-stratabase"
)

const (
	kindSet     = "set"
	kindCleared = "cleared"
)

// Collector counts property changes per layer and tracks how many objects
// the observed stores hold. Object counts follow change events, so a store
// cleared with ClearAllFor(id, false) keeps id counted until its next change.
type Collector struct {
	changes *prometheus.CounterVec
	objects prometheus.Gauge

	mu    sync.Mutex
	known map[*sb.Stratabase]map[uuid.UUID]struct{}
	total int
}

// NewCollector builds unregistered metrics under namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stratabase",
			Name:      "property_changes_total",
			Help:      "Property changes by layer name and kind (set or cleared).",
		}, []string{"layer", "kind"}),
		objects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stratabase",
			Name:      "objects",
			Help:      "Objects held by the observed stores.",
		}),
		known: map[*sb.Stratabase]map[uuid.UUID]struct{}{},
	}
}

// Register adds the collector's metrics to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{c.changes, c.objects} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Observe subscribes to s. Unsubscribe the returned subscription to stop
// counting changes; Forget also drops the store's objects from the gauge.
func (c *Collector) Observe(s *sb.Stratabase) *sb.Subscription {
	ids := s.IDs()
	c.mu.Lock()
	if previous, ok := c.known[s]; ok {
		c.total -= len(previous)
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	c.known[s] = seen
	c.total += len(seen)
	c.objects.Set(float64(c.total))
	c.mu.Unlock()

	return s.Subscribe(func(change sb.Change) {
		kind := kindSet
		if change.IsRemoval {
			kind = kindCleared
		}
		c.changes.WithLabelValues(s.LayerName(change.Layer), kind).Inc()
		c.track(s, change.ID, s.Contains(change.ID))
	})
}

// Forget removes the objects of s from the gauge.
func (c *Collector) Forget(s *sb.Stratabase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total -= len(c.known[s])
	delete(c.known, s)
	c.objects.Set(float64(c.total))
}

func (c *Collector) track(s *sb.Stratabase, id uuid.UUID, present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen, ok := c.known[s]
	if !ok {
		return
	}
	_, counted := seen[id]
	switch {
	case present && !counted:
		seen[id] = struct{}{}
		c.total++
	case !present && counted:
		delete(seen, id)
		c.total--
	default:
		return
	}
	c.objects.Set(float64(c.total))
}

// Changes exposes the change counter for tests and custom exporters.
func (c *Collector) Changes() *prometheus.CounterVec { return c.changes }

// Objects exposes the object gauge.
func (c *Collector) Objects() prometheus.Gauge { return c.objects }
