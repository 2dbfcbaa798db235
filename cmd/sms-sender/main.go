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

// sms-sender is a long-running Kafka consumer that reads queued replies
// from the "sms-outbox" topic and delivers them through the configured SMS
// provider, with the same retry policy the relay uses inline.  Messages it
// gives up on go to "sms-dlq".
//
// Configuration is done entirely via environment variables:
//
//	KAFKA_BROKERS         comma-separated broker list, e.g. "kafka:9092"
//	SMS_PROVIDER          "twilio" (default) or "telnyx"
//	TWILIO_ACCOUNT_SID    \
//	TWILIO_AUTH_TOKEN      } when SMS_PROVIDER=twilio
//	TWILIO_FROM_NUMBER    /
//	TELNYX_API_KEY        \  when SMS_PROVIDER=telnyx
//	TELNYX_FROM_NUMBER    /
//	METRICS_ADDR          optional listen address for /metrics, e.g. ":9090"
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jredh-dev/sms-relay/config"
	"github.com/jredh-dev/sms-relay/internal/app"
	"github.com/jredh-dev/sms-relay/internal/logging"
	"github.com/jredh-dev/sms-relay/internal/metrics"
	"github.com/jredh-dev/sms-relay/internal/server"
	"github.com/jredh-dev/sms-relay/internal/sms"
)

var version = "dev"

func main() {
	var metricsAddr string

	root := &cobra.Command{
		Use:           "sms-sender",
		Short:         "Deliver queued SMS replies from Kafka",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), metricsAddr)
		},
	}
	root.Flags().StringVar(&metricsAddr, "metrics-addr", os.Getenv("METRICS_ADDR"), "listen address for /metrics and /health (empty disables)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sms-sender: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, metricsAddr string) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.ValidateConsumer(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	sender, err := app.NewSender(cfg)
	if err != nil {
		return err
	}
	dlq := sms.NewDeadLetters(cfg.Kafka.Brokers)

	manager := app.NewManager(cfg, sender, dlq, logger.Named("delivery"), m)
	consumer := sms.NewConsumer(cfg.Kafka.Brokers, manager, dlq, logger.Named("consumer"))
	// Close releases the reader and the DLQ writer.
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("error closing consumer", zap.Error(err))
		}
	}()

	if metricsAddr != "" {
		srv := server.New(server.Options{Logger: logger.Named("http")})
		go func() {
			if err := srv.ListenAndServe(ctx, metricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("sms-sender starting",
		zap.String("version", version),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("provider", cfg.SMS.Provider),
		zap.String("from", cfg.FromNumber()),
	)
	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
