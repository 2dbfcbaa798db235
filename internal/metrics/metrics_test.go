package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveInbound("processed")
		m.ObserveCompletion("short", "success", time.Second)
		m.ObserveAttempt("none")
		m.ObserveDelivery("sent")
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveInbound("processed")
	m.ObserveInbound("processed")
	m.ObserveInbound("no_sender")
	m.ObserveAttempt("length_exceeded")
	m.ObserveDelivery("sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Inbound.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Inbound.WithLabelValues("no_sender")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveryAttempts.WithLabelValues("length_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("sent")))

	n, err := testutil.GatherAndCount(reg, "smsrelay_inbound_messages_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewPanicsOnDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
