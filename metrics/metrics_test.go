package metrics

import (
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("test.counter")
	c.Inc()
	c.Add(5)
	c.Add(-3) // non-positive deltas are dropped
	if got := c.Value(); got != 6 {
		t.Fatalf("counter = %d, want 6", got)
	}
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.Gauge("test.gauge")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Value(); got != 9 {
		t.Fatalf("gauge = %d, want 9", got)
	}
}

func TestHistogram(t *testing.T) {
	r := NewRegistry()
	h := r.Histogram("test.hist")
	if s := h.Stats(); s.Count != 0 || s.Mean() != 0 {
		t.Fatalf("empty histogram stats = %+v", s)
	}
	for _, v := range []float64{2, 8, 5} {
		h.Observe(v)
	}
	s := h.Stats()
	if s.Count != 3 || s.Sum != 15 {
		t.Fatalf("count=%d sum=%f", s.Count, s.Sum)
	}
	if s.Min != 2 || s.Max != 8 || s.Mean() != 5 {
		t.Fatalf("min=%f max=%f mean=%f", s.Min, s.Max, s.Mean())
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("shared")
	b := r.Counter("shared")
	if a != b {
		t.Fatal("registry returned distinct counters for the same name")
	}
	a.Inc()
	if b.Value() != 1 {
		t.Fatal("counter instances not shared")
	}
}

func TestRegistryKindMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("no panic on re-registering a name with a different kind")
		}
	}()
	r := NewRegistry()
	r.Counter("dual")
	r.Gauge("dual")
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	r.Counter("c").Add(3)
	r.Gauge("g").Set(-7)
	r.Histogram("h").Observe(4)

	snap := r.Snapshot()
	if got := snap["c"].(int64); got != 3 {
		t.Fatalf("counter snapshot = %d, want 3", got)
	}
	if got := snap["g"].(int64); got != -7 {
		t.Fatalf("gauge snapshot = %d, want -7", got)
	}
	if got := snap["h"].(HistogramStats); got.Count != 1 || got.Sum != 4 {
		t.Fatalf("histogram snapshot = %+v", got)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Counter("contended").Inc()
			}
		}()
	}
	wg.Wait()
	if got := r.Counter("contended").Value(); got != 1600 {
		t.Fatalf("counter = %d, want 1600", got)
	}
}
