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

package sms

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jredh-dev/sms-relay/internal/metrics"
	"github.com/jredh-dev/sms-relay/internal/shaper"
)

// Delivery defaults.
const (
	DefaultMaxAttempts        = 3
	DefaultEmergencyThreshold = 1400
	DefaultBackoff            = time.Second
)

// State is the terminal state of a delivery.
type State int

const (
	StatePending State = iota
	StateSent
	StateQueued
	StateExhaustedLengthShrink
	StateExhaustedGeneric
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateQueued:
		return "queued"
	case StateExhaustedLengthShrink:
		return "exhausted_length"
	case StateExhaustedGeneric:
		return "exhausted_generic"
	default:
		return "pending"
	}
}

// Exhausted reports whether s is a give-up state.
func (s State) Exhausted() bool {
	return s == StateExhaustedLengthShrink || s == StateExhaustedGeneric
}

// Outcome describes how a delivery ended.  Body is the last body attempted,
// which differs from the input after an emergency shrink.
type Outcome struct {
	State    State
	Attempts int
	Body     string
	Err      error
}

// DeadLetterSink receives messages that could not be delivered.
type DeadLetterSink interface {
	PublishDeadLetter(ctx context.Context, dl DeadLetter) error
}

// Manager delivers one message with bounded retries.
//
// A length rejection is answered by shrinking the body to the emergency
// threshold and retrying at once; waiting would not help.  Any other failure
// is retried with the same body after a fixed backoff.  Deliver never
// returns an error: callers acknowledge their webhook regardless, and the
// Outcome says what happened.
type Manager struct {
	sender      Sender
	maxAttempts int
	emergency   int
	backoff     time.Duration
	deadLetters DeadLetterSink
	logger      *zap.Logger
	metrics     *metrics.Metrics
	wait        func(ctx context.Context, d time.Duration) error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxAttempts caps the number of Send calls per message.
func WithMaxAttempts(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithEmergencyThreshold sets the length a body is cut to after a length
// rejection.
func WithEmergencyThreshold(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.emergency = n
		}
	}
}

// WithBackoff sets the delay between attempts after a non-length failure.
func WithBackoff(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.backoff = d
		}
	}
}

// WithDeadLetters publishes exhausted messages to sink.
func WithDeadLetters(sink DeadLetterSink) ManagerOption {
	return func(m *Manager) { m.deadLetters = sink }
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithManagerMetrics records attempts and outcomes.
func WithManagerMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a Manager that sends through sender.
func NewManager(sender Sender, opts ...ManagerOption) *Manager {
	m := &Manager{
		sender:      sender,
		maxAttempts: DefaultMaxAttempts,
		emergency:   DefaultEmergencyThreshold,
		backoff:     DefaultBackoff,
		logger:      zap.NewNop(),
		wait:        sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxLatency bounds one Deliver call: every attempt at the provider timeout
// plus the backoff between them.
func (m *Manager) MaxLatency() time.Duration {
	return time.Duration(m.maxAttempts) * (DefaultSendTimeout + m.backoff)
}

// Deliver sends msg, retrying per the Manager's policy.
func (m *Manager) Deliver(ctx context.Context, msg OutboundMessage) Outcome {
	out := m.deliver(ctx, msg)

	log := m.logger.With(
		zap.String("id", msg.ID),
		zap.String("to", msg.To),
		zap.String("state", out.State.String()),
		zap.Int("attempts", out.Attempts),
	)
	if out.State == StateSent {
		log.Info("sms delivered")
	} else {
		log.Error("sms delivery gave up", zap.Error(out.Err))
		m.deadLetter(ctx, msg, out)
	}
	m.metrics.ObserveDelivery(out.State.String())
	return out
}

func (m *Manager) deliver(ctx context.Context, msg OutboundMessage) Outcome {
	out := Outcome{State: StatePending, Body: msg.Body}

	for out.Attempts < m.maxAttempts {
		out.Attempts++
		msg.Body = out.Body

		err := m.sender.Send(ctx, msg)
		if err == nil {
			m.metrics.ObserveAttempt("none")
			out.State = StateSent
			out.Err = nil
			return out
		}
		out.Err = err

		kind := KindOf(err)
		m.metrics.ObserveAttempt(kind.String())
		m.logger.Warn("sms attempt failed",
			zap.String("id", msg.ID),
			zap.Int("attempt", out.Attempts),
			zap.Int("max_attempts", m.maxAttempts),
			zap.String("kind", kind.String()),
			zap.Error(err),
		)

		if kind == FailureLengthExceeded {
			// Already within the emergency threshold: shrinking further
			// cannot help.
			if shaper.Len(out.Body) <= m.emergency || out.Attempts >= m.maxAttempts {
				out.State = StateExhaustedLengthShrink
				return out
			}
			out.Body = shaper.Truncate(out.Body, m.emergency)
			continue
		}

		if out.Attempts < m.maxAttempts {
			if err := m.wait(ctx, m.backoff); err != nil {
				out.Err = err
				break
			}
		}
	}

	out.State = StateExhaustedGeneric
	return out
}

func (m *Manager) deadLetter(ctx context.Context, msg OutboundMessage, out Outcome) {
	if m.deadLetters == nil {
		return
	}
	dl := DeadLetter{
		Message:  msg,
		State:    out.State.String(),
		Attempts: out.Attempts,
	}
	if out.Err != nil {
		dl.Error = out.Err.Error()
	}
	// The request context may already be spent on retries.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.deadLetters.PublishDeadLetter(ctx, dl); err != nil {
		m.logger.Error("dead letter publish failed", zap.String("id", msg.ID), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
