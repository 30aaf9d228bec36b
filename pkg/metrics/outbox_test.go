package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Observe("order_created", "published")
	m.Observe("order_created", "published")
	m.Observe("", "dead_lettered")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_publish_total", map[string]string{"event_type": "order_created", "outcome": "published"}); err != nil || got != 2 {
		t.Fatalf("expected published=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_publish_total", map[string]string{"event_type": "unknown", "outcome": "dead_lettered"}); err != nil || got != 1 {
		t.Fatalf("expected dead_lettered=1, got %f (%v)", got, err)
	}
}

func TestOutboxMetricsNilRegistererIsNoop(t *testing.T) {
	var m *OutboxMetrics
	m.Observe("order_created", "published")
	NewOutboxMetrics(nil).Observe("order_created", "retry")
}
