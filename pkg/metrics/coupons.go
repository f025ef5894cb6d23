package metrics

import "github.com/prometheus/client_golang/prometheus"

// CouponMetrics counts validator verdicts and redemptions.
type CouponMetrics struct {
	validations *prometheus.CounterVec
	redemptions *prometheus.CounterVec
}

func NewCouponMetrics(reg prometheus.Registerer) *CouponMetrics {
	if reg == nil {
		return &CouponMetrics{}
	}
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_validations_total",
		Help:      "Coupon validation verdicts by result code.",
	}, []string{"result"})
	redemptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_redemptions_total",
		Help:      "Coupon usage recordings; duplicate means the order was already counted.",
	}, []string{"outcome"})
	reg.MustRegister(validations, redemptions)
	return &CouponMetrics{validations: validations, redemptions: redemptions}
}

func (m *CouponMetrics) IncValidation(result string) {
	if m == nil || m.validations == nil {
		return
	}
	m.validations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CouponMetrics) IncRedemption(duplicate bool) {
	if m == nil || m.redemptions == nil {
		return
	}
	outcome := "recorded"
	if duplicate {
		outcome = "duplicate"
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}
