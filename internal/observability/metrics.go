// Package observability provides an in-process metrics sink for counters
// and timings, consumed by the optimizer and executor.
package observability

import (
	"sort"
	"sync"
	"time"
)

// Metrics is a thread-safe counter and timing sink. All methods are O(1)
// and safe for concurrent use.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	timings  map[string]*TimingStats
}

// TimingStats holds aggregate statistics for one timing series.
type TimingStats struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean returns the mean duration, or zero when no observations exist.
func (t *TimingStats) Mean() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// NewMetrics creates a new metrics sink.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
		timings:  make(map[string]*TimingStats),
	}
}

// Inc increments a counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add increments a counter by delta.
func (m *Metrics) Add(name string, delta int64) {
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

// Observe records one duration for a timing series.
func (m *Metrics) Observe(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.timings[name]
	if !ok {
		stats = &TimingStats{Min: d, Max: d}
		m.timings[name] = stats
	}

	stats.Count++
	stats.Total += d
	if d < stats.Min {
		stats.Min = d
	}
	if d > stats.Max {
		stats.Max = d
	}
}

// Counter returns the current value of a counter.
func (m *Metrics) Counter(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[name]
}

// Timing returns a copy of a timing series, or nil when absent.
func (m *Metrics) Timing(name string) *TimingStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.timings[name]
	if !ok {
		return nil
	}
	cp := *stats
	return &cp
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Counters map[string]int64
	Timings  map[string]TimingStats
}

// Snapshot returns a consistent copy of all counters and timings.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(m.counters)),
		Timings:  make(map[string]TimingStats, len(m.timings)),
	}
	for name, v := range m.counters {
		snap.Counters[name] = v
	}
	for name, stats := range m.timings {
		snap.Timings[name] = *stats
	}
	return snap
}

// CounterNames returns all counter names in sorted order.
func (m *Metrics) CounterNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
