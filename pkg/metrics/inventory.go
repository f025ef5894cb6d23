package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics counts reservation outcomes and ledger writes.
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	movements    *prometheus.CounterVec
	expired      prometheus.Counter
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_total",
		Help:      "Reservation attempts by outcome.",
	}, []string{"outcome"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_movements_total",
		Help:      "Stock ledger rows written by movement type.",
	}, []string{"type"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_expired_total",
		Help:      "Reservations moved to expired by lazy or periodic sweeps.",
	})
	reg.MustRegister(reservations, movements, expired)
	return &InventoryMetrics{
		reservations: reservations,
		movements:    movements,
		expired:      expired,
	}
}

// IncReservation records one reserve attempt; outcome is e.g. "created", "grown", "insufficient".
func (m *InventoryMetrics) IncReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *InventoryMetrics) IncMovement(movementType string) {
	if m == nil || m.movements == nil {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(movementType)).Inc()
}

func (m *InventoryMetrics) AddExpired(n int) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}
