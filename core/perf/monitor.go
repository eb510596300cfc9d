package perf

import (
	"sort"
	"sync"
	"time"

	"github.com/huangsam/dashcache/schema"
)

// Monitor is an in-memory Sink that can be snapshotted.
type Monitor struct {
	mu     sync.Mutex
	labels map[string]*labelCounters
	now    func() time.Time
}

type labelCounters struct {
	hits, misses, calls, errors int64
	total, max                  time.Duration
}

// NewMonitor creates an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{labels: make(map[string]*labelCounters), now: time.Now}
}

func (m *Monitor) counters(label string) *labelCounters {
	c, ok := m.labels[label]
	if !ok {
		c = &labelCounters{}
		m.labels[label] = c
	}
	return c
}

// CacheHit implements Sink.
func (m *Monitor) CacheHit(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters(label).hits++
}

// CacheMiss implements Sink.
func (m *Monitor) CacheMiss(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters(label).misses++
}

// FetchDone implements Sink.
func (m *Monitor) FetchDone(label string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters(label)
	c.calls++
	c.total += d
	if d > c.max {
		c.max = d
	}
	if err != nil {
		c.errors++
	}
}

// Reset clears every counter.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels = make(map[string]*labelCounters)
}

// Snapshot returns totals and per-label statistics, labels sorted by name.
func (m *Monitor) Snapshot() schema.PerfSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := schema.PerfSnapshot{TakenAt: m.now(), Labels: make([]schema.LabelStats, 0, len(m.labels))}
	var total time.Duration
	for label, c := range m.labels {
		stats := schema.LabelStats{
			Label:         label,
			Hits:          c.hits,
			Misses:        c.misses,
			Calls:         c.calls,
			Errors:        c.errors,
			TotalDuration: c.total,
			MaxDuration:   c.max,
		}
		if c.calls > 0 {
			stats.AvgDuration = c.total / time.Duration(c.calls)
		}
		snap.Labels = append(snap.Labels, stats)

		snap.Hits += c.hits
		snap.Misses += c.misses
		snap.Calls += c.calls
		snap.Errors += c.errors
		total += c.total
	}
	sort.Slice(snap.Labels, func(i, j int) bool { return snap.Labels[i].Label < snap.Labels[j].Label })

	if snap.Calls > 0 {
		snap.AvgDuration = total / time.Duration(snap.Calls)
	}
	snap.HitRatio = HitRatio(snap.Hits, snap.Misses)
	return snap
}

// HitRatio returns hits / (hits + misses), or 0 when nothing was looked up.
func HitRatio(hits, misses int64) float64 {
	lookups := hits + misses
	if lookups == 0 {
		return 0
	}
	return float64(hits) / float64(lookups)
}
