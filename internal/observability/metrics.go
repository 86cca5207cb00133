package observability

import (
	"sync"
)

// Metrics provides basic in-memory counters for the routing pipeline.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

// Counter names recorded by the routing engine.
const (
	MetricEventsConsumed       = "events_consumed"
	MetricPoisonMessages       = "poison_messages"
	MetricClassifierHits       = "classifier_hits"
	MetricClassifierFallbacks  = "classifier_fallbacks"
	MetricAssignmentsPersisted = "assignments_persisted"
	MetricSuggestionsPublished = "suggestions_published"
	MetricErrorsPublished      = "errors_published"
	MetricPublishFailures      = "publish_failures"
	MetricBrokerReconnects     = "broker_reconnects"
	MetricDuplicatesSuppressed = "duplicates_suppressed"
	MetricDegradedTicketReads  = "degraded_ticket_reads"
)

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]int64),
	}
}

// Inc increments the named counter.
func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// Snapshot returns a copy of all counters, for the health endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}
