package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Метки удалённых целей валидации.
const (
	TargetDishCatalog      = "dish_catalog"
	TargetCustomerRegistry = "customer_registry"
)

// Результаты удалённых вызовов.
const (
	ResultFound     = "found"
	ResultNotFound  = "not_found"
	ResultTransient = "transient"
)

// OrderMetrics содержит метрики оформления и отмены заказов.
// Все методы безопасны для nil-получателя.
type OrderMetrics struct {
	ordersPlaced          prometheus.Counter
	placementFailures     *prometheus.CounterVec
	ordersCancelled       prometheus.Counter
	cancellationRejected  *prometheus.CounterVec
	customersRegistered   prometheus.Counter
	registrationConflicts *prometheus.CounterVec

	remoteLookupDuration *prometheus.HistogramVec
	operationDuration    *prometheus.HistogramVec
	inFlight             *prometheus.GaugeVec

	timelineEvents prometheus.Counter
	outboxEvents   *prometheus.CounterVec
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре (удобно в тестах).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodorder_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		placementFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodorder_order_placement_failures_total",
			Help: "Total number of rejected or failed order placements by reason",
		}, []string{"reason"}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodorder_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		cancellationRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodorder_order_cancellations_rejected_total",
			Help: "Total number of rejected cancellations by reason",
		}, []string{"reason"}),
		customersRegistered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodorder_customers_registered_total",
			Help: "Total number of registered customers",
		}),
		registrationConflicts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodorder_customer_registration_conflicts_total",
			Help: "Total number of registrations rejected by uniqueness constraint",
		}, []string{"field"}),
		remoteLookupDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "foodorder_remote_lookup_duration_seconds",
			Help:    "Duration of remote validation lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"target", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "foodorder_operation_duration_seconds",
			Help:    "Duration of orchestrator operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		inFlight: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "foodorder_operations_in_flight",
			Help: "Number of orchestrator operations currently executing",
		}, []string{"operation"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "foodorder_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "foodorder_outbox_events_enqueued_total",
			Help: "Total number of events enqueued to outbox by type",
		}, []string{"event_type"}),
	}
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *OrderMetrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// RecordPlacementFailure учитывает неудачное оформление с причиной.
func (m *OrderMetrics) RecordPlacementFailure(reason string) {
	if m == nil {
		return
	}
	m.placementFailures.WithLabelValues(reason).Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordOrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

// RecordCancellationRejected учитывает отказ в отмене.
func (m *OrderMetrics) RecordCancellationRejected(reason string) {
	if m == nil {
		return
	}
	m.cancellationRejected.WithLabelValues(reason).Inc()
}

// RecordCustomerRegistered увеличивает счётчик зарегистрированных клиентов.
func (m *OrderMetrics) RecordCustomerRegistered() {
	if m == nil {
		return
	}
	m.customersRegistered.Inc()
}

// RecordRegistrationConflict учитывает конфликт уникальности (email/phone).
func (m *OrderMetrics) RecordRegistrationConflict(field string) {
	if m == nil {
		return
	}
	m.registrationConflicts.WithLabelValues(field).Inc()
}

// RecordRemoteLookup записывает длительность удалённого вызова и его результат.
func (m *OrderMetrics) RecordRemoteLookup(target, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteLookupDuration.WithLabelValues(target, result).Observe(duration.Seconds())
}

// TrackOperation отмечает начало операции и возвращает функцию завершения.
func (m *OrderMetrics) TrackOperation(operation string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	gauge := m.inFlight.WithLabelValues(operation)
	gauge.Inc()
	return func() {
		gauge.Dec()
		m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent учитывает событие, поставленное в outbox.
func (m *OrderMetrics) RecordOutboxEvent(eventType string) {
	if m == nil {
		return
	}
	m.outboxEvents.WithLabelValues(eventType).Inc()
}
