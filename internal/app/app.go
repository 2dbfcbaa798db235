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

// Package app wires configuration into the relay's process-scoped services.
// Both binaries build their senders and delivery managers here.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jredh-dev/sms-relay/config"
	"github.com/jredh-dev/sms-relay/internal/metrics"
	"github.com/jredh-dev/sms-relay/internal/server"
	"github.com/jredh-dev/sms-relay/internal/sms"
)

// responseMargin covers form parsing, shaping and the response write.
const responseMargin = 5 * time.Second

// NewSender returns the SMS provider adapter selected by SMS_PROVIDER.
func NewSender(cfg *config.Config) (sms.Sender, error) {
	switch cfg.SMS.Provider {
	case config.ProviderTwilio:
		return sms.NewTwilioSender(cfg.SMS.TwilioAccountSID, cfg.SMS.TwilioAuthToken, cfg.SMS.TwilioFromNumber), nil
	case config.ProviderTelnyx:
		return sms.NewTelnyxSender(cfg.SMS.TelnyxAPIKey, cfg.SMS.TelnyxFromNumber), nil
	default:
		return nil, fmt.Errorf("unknown SMS provider %q", cfg.SMS.Provider)
	}
}

// NewManager builds a delivery manager from the delivery settings.  dlq may
// be nil.
func NewManager(cfg *config.Config, sender sms.Sender, dlq sms.DeadLetterSink, logger *zap.Logger, m *metrics.Metrics) *sms.Manager {
	opts := []sms.ManagerOption{
		sms.WithMaxAttempts(cfg.Delivery.MaxAttempts),
		sms.WithEmergencyThreshold(cfg.Delivery.EmergencyLength),
		sms.WithBackoff(cfg.Delivery.Backoff),
		sms.WithManagerLogger(logger),
		sms.WithManagerMetrics(m),
	}
	if dlq != nil {
		opts = append(opts, sms.WithDeadLetters(dlq))
	}
	return sms.NewManager(sender, opts...)
}

// WorstCaseLatency bounds one webhook: the model call plus every delivery
// attempt with its backoff.
func WorstCaseLatency(cfg *config.Config) time.Duration {
	attempts := time.Duration(cfg.Delivery.MaxAttempts)
	return cfg.Gemini.Timeout + attempts*(sms.DefaultSendTimeout+cfg.Delivery.Backoff)
}

// WriteTimeout is the HTTP write timeout that lets the slowest webhook
// still be acknowledged.
func WriteTimeout(cfg *config.Config) time.Duration {
	return WorstCaseLatency(cfg) + responseMargin
}

// ServerOptions sizes the webhook server for the slowest webhook.  Shutdown
// waits as long as a write may take, so in-flight webhooks finish before
// the OnStop hooks close what they deliver through.
func ServerOptions(cfg *config.Config, logger *zap.Logger) server.Options {
	return server.Options{
		WriteTimeout:    WriteTimeout(cfg),
		ShutdownTimeout: WriteTimeout(cfg),
		Logger:          logger,
	}
}
