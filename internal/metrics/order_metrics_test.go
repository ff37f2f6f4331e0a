package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)

	var total float64
	for metric := range ch {
		var m dto.Metric
		if err := metric.Write(&m); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		}
	}
	return total
}

func TestNewOrderMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.RecordOrderPlaced()
	m.RecordOrderPlaced()
	m.RecordOrderCancelled()
	m.RecordCustomerRegistered()
	m.RecordTimelineEvent()

	if got := counterValue(t, m.ordersPlaced); got != 2 {
		t.Fatalf("orders placed = %v, want 2", got)
	}
	if got := counterValue(t, m.ordersCancelled); got != 1 {
		t.Fatalf("orders cancelled = %v, want 1", got)
	}
	if got := counterValue(t, m.customersRegistered); got != 1 {
		t.Fatalf("customers registered = %v, want 1", got)
	}
	if got := counterValue(t, m.timelineEvents); got != 1 {
		t.Fatalf("timeline events = %v, want 1", got)
	}
}

func TestOrderMetricsReuseRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordOrderPlaced()
	if got := counterValue(t, second.ordersPlaced); got != 1 {
		t.Fatalf("second instance must share collector, got %v", got)
	}
}

func TestOrderMetricsLabelledCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.RecordPlacementFailure("dish_not_found")
	m.RecordPlacementFailure("dish_unavailable")
	m.RecordCancellationRejected("window_expired")
	m.RecordRegistrationConflict("email")
	m.RecordOutboxEvent("order.placed")

	if got := counterValue(t, m.placementFailures.WithLabelValues("dish_unavailable")); got != 1 {
		t.Fatalf("dish_unavailable failures = %v", got)
	}
	if got := counterValue(t, m.cancellationRejected.WithLabelValues("window_expired")); got != 1 {
		t.Fatalf("window_expired rejections = %v", got)
	}
	if got := counterValue(t, m.registrationConflicts.WithLabelValues("email")); got != 1 {
		t.Fatalf("email conflicts = %v", got)
	}
	if got := counterValue(t, m.outboxEvents.WithLabelValues("order.placed")); got != 1 {
		t.Fatalf("outbox events = %v", got)
	}
}

func TestTrackOperationBalancesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	done := m.TrackOperation("place_order")
	if got := counterValue(t, m.inFlight.WithLabelValues("place_order")); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
	done()
	if got := counterValue(t, m.inFlight.WithLabelValues("place_order")); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}

	m.RecordRemoteLookup(TargetDishCatalog, ResultFound, 15*time.Millisecond)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "foodorder_remote_lookup_duration_seconds" {
			found = true
			if got := f.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
				t.Fatalf("lookup samples = %d", got)
			}
		}
	}
	if !found {
		t.Fatal("remote lookup histogram not gathered")
	}
}

func TestNilOrderMetricsIsNoop(t *testing.T) {
	var m *OrderMetrics
	m.RecordOrderPlaced()
	m.RecordPlacementFailure("x")
	m.RecordOrderCancelled()
	m.RecordCancellationRejected("x")
	m.RecordCustomerRegistered()
	m.RecordRegistrationConflict("email")
	m.RecordRemoteLookup(TargetDishCatalog, ResultFound, time.Millisecond)
	m.RecordTimelineEvent()
	m.RecordOutboxEvent("x")
	m.TrackOperation("x")()
}
