package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "reservation-expiry"
	metrics.Record(job, 250*time.Millisecond, nil)
	metrics.Record(job, 10*time.Millisecond, errors.New("db down"))
	metrics.Skipped("cycle")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := findMetricFamily(mfs, "shopcore_cron_job_runs_total")
	require.NotNil(t, runs)
	byOutcome := map[string]float64{}
	for _, m := range runs.GetMetric() {
		outcome := ""
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "outcome" {
				outcome = lp.GetValue()
			}
		}
		byOutcome[outcome] += m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"success": 1, "failure": 1, "skipped": 1}, byOutcome)

	sum, err := fetchHistogramSum(mfs, "shopcore_cron_job_duration_seconds", "job", job)
	require.NoError(t, err)
	assert.InDelta(t, 0.26, sum, 0.001)

	last := findMetricFamily(mfs, "shopcore_cron_job_last_success_timestamp_seconds")
	require.NotNil(t, last)
	require.Len(t, last.GetMetric(), 1)
	assert.InDelta(t, float64(time.Now().Unix()), last.GetMetric()[0].GetGauge().GetValue(), 5)
}

func TestInventoryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInventoryMetrics(reg)
	m.IncReservation("created")
	m.IncReservation("created")
	m.IncReservation("insufficient")
	m.IncMovement("reserve")
	m.AddExpired(3)
	m.AddExpired(0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "shopcore_reservations_total", "outcome", "created")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "shopcore_stock_movements_total", "type", "reserve")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	mf := findMetricFamily(mfs, "shopcore_reservations_expired_total")
	require.NotNil(t, mf)
	assert.Equal(t, 3.0, mf.GetMetric()[0].GetCounter().GetValue())
}

func TestCouponMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCouponMetrics(reg)
	m.IncValidation("valid")
	m.IncRedemption(false)
	m.IncRedemption(true)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "shopcore_coupon_redemptions_total", "outcome", "duplicate")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "shopcore_coupon_validations_total", "result", "valid")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	cron.Record("x", time.Second, nil)
	NewCronJobMetrics(nil).Skipped("x")
	NewInventoryMetrics(nil).IncReservation("created")
	NewCouponMetrics(nil).IncRedemption(true)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
