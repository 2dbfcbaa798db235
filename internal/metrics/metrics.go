// sms-relay - SMS gateway to a hosted language model
// Copyright (C) 2026  sms-relay contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// Package metrics holds the Prometheus collectors for the relay pipeline.
//
// All recording methods are safe to call on a nil *Metrics so components can
// run without instrumentation in tests and tools.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the relay's collectors.
type Metrics struct {
	Inbound            *prometheus.CounterVec
	Completions        *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	DeliveryAttempts   *prometheus.CounterVec
	Deliveries         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.  Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Inbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsrelay_inbound_messages_total",
				Help: "Inbound webhook calls by outcome (processed, no_sender, empty_text, bad_form, no_origin).",
			},
			[]string{"outcome"},
		),
		Completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsrelay_completions_total",
				Help: "Model completions by mode and result.",
			},
			[]string{"mode", "result"},
		),
		CompletionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smsrelay_completion_duration_seconds",
				Help:    "Model call latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		DeliveryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsrelay_delivery_attempts_total",
				Help: "Outbound send attempts by failure kind (none on success).",
			},
			[]string{"failure"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smsrelay_deliveries_total",
				Help: "Outbound deliveries by terminal state.",
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(m.Inbound, m.Completions, m.CompletionDuration, m.DeliveryAttempts, m.Deliveries)
	return m
}

// ObserveInbound counts one webhook call.
func (m *Metrics) ObserveInbound(outcome string) {
	if m == nil {
		return
	}
	m.Inbound.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records a finished model call.
func (m *Metrics) ObserveCompletion(mode, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(mode, result).Inc()
	m.CompletionDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveAttempt counts one send attempt.  failure is "none" on success.
func (m *Metrics) ObserveAttempt(failure string) {
	if m == nil {
		return
	}
	m.DeliveryAttempts.WithLabelValues(failure).Inc()
}

// ObserveDelivery counts a terminal delivery state.
func (m *Metrics) ObserveDelivery(state string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(state).Inc()
}
