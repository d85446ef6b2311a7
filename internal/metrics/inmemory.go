package metrics

import (
	"strconv"
	"sync"
	"time"
)

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counters: make(map[string]int64)}
}

func (m *InMemoryRecorder) add(key string, n int64) {
	m.mu.Lock()
	m.counters[key] += n
	m.mu.Unlock()
}

// Count returns the value of a counter, e.g. Count("click", "first").
func (m *InMemoryRecorder) Count(name string, labels ...string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key(name, labels...)]
}

func key(name string, labels ...string) string {
	for _, l := range labels {
		name += "|" + l
	}
	return name
}

func (m *InMemoryRecorder) IncLinkGenerated(linkType string) {
	m.add(key("link_generated", linkType), 1)
}

func (m *InMemoryRecorder) IncClickTracked(result string) {
	m.add(key("click", result), 1)
}

func (m *InMemoryRecorder) IncConversionRecorded(channel string) {
	m.add(key("conversion", channel), 1)
}

func (m *InMemoryRecorder) AddRevenue(currency string, minorUnits int64) {
	m.add(key("revenue", currency), minorUnits)
}

func (m *InMemoryRecorder) IncLandingView(template string) {
	m.add(key("landing_view", template), 1)
}

func (m *InMemoryRecorder) IncEventPublished(eventType, status string) {
	m.add(key("event", eventType, status), 1)
}

func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	m.add(key("http", method, route, strconv.Itoa(status)), 1)
}
