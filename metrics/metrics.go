// Package metrics collects operational counters for the L2 node: chain
// progress, state application, bridge activity, and fraud handling.
// Metrics are created through a Registry and read back with Snapshot;
// the primitives themselves stay minimal so hot paths only pay for an
// atomic add or a short critical section.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Counter is a monotonic event count.
type Counter struct {
	name string
	n    atomic.Int64
}

// Inc adds 1 to the counter.
func (c *Counter) Inc() { c.n.Add(1) }

// Add adds delta to the counter. Counters only move forward, so
// non-positive deltas are dropped.
func (c *Counter) Add(delta int64) {
	if delta > 0 {
		c.n.Add(delta)
	}
}

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Gauge is an instantaneous value, such as a chain height or a pool size.
type Gauge struct {
	name string
	n    atomic.Int64
}

// Set replaces the gauge value.
func (g *Gauge) Set(v int64) { g.n.Store(v) }

// Inc adds 1 to the gauge.
func (g *Gauge) Inc() { g.n.Add(1) }

// Dec subtracts 1 from the gauge.
func (g *Gauge) Dec() { g.n.Add(-1) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.n.Load() }

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// HistogramStats is a point-in-time summary of a Histogram.
type HistogramStats struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// Mean returns the arithmetic mean of the observations, or 0 when there
// are none.
func (s HistogramStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Histogram summarizes observed values as count, sum, min, and max. That
// is enough to derive a mean without retaining samples, which keeps
// Observe cheap on paths like batch application.
type Histogram struct {
	name string
	mu   sync.Mutex
	s    HistogramStats
}

// Observe folds a value into the summary.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	if h.s.Count == 0 || v < h.s.Min {
		h.s.Min = v
	}
	if h.s.Count == 0 || v > h.s.Max {
		h.s.Max = v
	}
	h.s.Count++
	h.s.Sum += v
	h.mu.Unlock()
}

// Stats returns a copy of the current summary.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// Registry is a named collection of metrics. Accessors create the metric
// on first use, so callers never check for nil; registering the same name
// under two different kinds is a programming error and panics.
type Registry struct {
	mu      sync.Mutex
	metrics map[string]any
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]any)}
}

// Counter returns the counter registered under name, creating it on
// first use.
func (r *Registry) Counter(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok {
		c, ok := m.(*Counter)
		if !ok {
			panic("metrics: " + name + " registered with a different kind")
		}
		return c
	}
	c := &Counter{name: name}
	r.metrics[name] = c
	return c
}

// Gauge returns the gauge registered under name, creating it on first
// use.
func (r *Registry) Gauge(name string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok {
		g, ok := m.(*Gauge)
		if !ok {
			panic("metrics: " + name + " registered with a different kind")
		}
		return g
	}
	g := &Gauge{name: name}
	r.metrics[name] = g
	return g
}

// Histogram returns the histogram registered under name, creating it on
// first use.
func (r *Registry) Histogram(name string) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[name]; ok {
		h, ok := m.(*Histogram)
		if !ok {
			panic("metrics: " + name + " registered with a different kind")
		}
		return h
	}
	h := &Histogram{name: name}
	r.metrics[name] = h
	return h
}

// Snapshot returns the current value of every registered metric, keyed by
// name. Counters and gauges report int64; histograms report their
// HistogramStats.
func (r *Registry) Snapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.metrics))
	for name, m := range r.metrics {
		switch m := m.(type) {
		case *Counter:
			out[name] = m.Value()
		case *Gauge:
			out[name] = m.Value()
		case *Histogram:
			out[name] = m.Stats()
		}
	}
	return out
}
