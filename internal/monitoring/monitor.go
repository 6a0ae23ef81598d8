package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps event counts and the last observed engine values for the
// JSON snapshot. Prometheus holds the authoritative series.
type Monitor struct {
	mu        sync.RWMutex
	counts    map[string]int
	values    map[string]interface{}
	lastEvent time.Time
	startTime time.Time
	now       func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{
		counts:    make(map[string]int),
		values:    make(map[string]interface{}),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Set replaces the last value of name.
func (m *Monitor) Set(name string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	m.lastEvent = m.now()
}

// Increment bumps the count of name and returns the new count.
func (m *Monitor) Increment(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	m.lastEvent = m.now()
	return m.counts[name]
}

// Count returns how many times name was incremented.
func (m *Monitor) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[name]
}

// Snapshot flattens counts and values into one map with uptime and the
// time of the last recorded event.
func (m *Monitor) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]interface{}, len(m.counts)+len(m.values)+2)
	for k, v := range m.values {
		out[k] = v
	}
	for k, n := range m.counts {
		out[k] = n
	}
	out["uptime_seconds"] = time.Since(m.startTime).Seconds()
	if !m.lastEvent.IsZero() {
		out["last_event"] = m.lastEvent.UTC().Format(time.RFC3339)
	}
	return out
}
