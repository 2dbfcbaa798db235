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

// server receives SMS webhooks, asks the language model for a reply and
// texts it back.  With SMS_OUTBOX set the reply is queued on Kafka for
// sms-sender instead of being sent inline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jredh-dev/sms-relay/config"
	"github.com/jredh-dev/sms-relay/internal/app"
	"github.com/jredh-dev/sms-relay/internal/completion"
	"github.com/jredh-dev/sms-relay/internal/handlers"
	"github.com/jredh-dev/sms-relay/internal/logging"
	"github.com/jredh-dev/sms-relay/internal/metrics"
	"github.com/jredh-dev/sms-relay/internal/relayclient"
	"github.com/jredh-dev/sms-relay/internal/server"
	"github.com/jredh-dev/sms-relay/internal/sms"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "sms-relay",
		Short:         "SMS gateway to a hosted language model",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(simulateCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sms-relay: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg := config.Load()
	logger, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	model, err := completion.NewGeminiModel(ctx, completion.GeminiConfig{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
	})
	if err != nil {
		return err
	}
	requester := completion.New(model,
		completion.WithTimeout(cfg.Gemini.Timeout),
		completion.WithLogger(logger.Named("completion")),
		completion.WithMetrics(m),
	)

	srv := server.New(app.ServerOptions(cfg, logger.Named("http")))

	deliverer, err := newDeliverer(cfg, srv, logger, m)
	if err != nil {
		return err
	}

	h := handlers.NewSMS(handlers.SMSDeps{
		Completer:      requester,
		Deliverer:      deliverer,
		Origin:         cfg.FromNumber(),
		MaxLength:      cfg.Delivery.MaxLength,
		ProcessTimeout: app.WorstCaseLatency(cfg),
		Logger:         logger.Named("webhook"),
		Metrics:        m,
	})
	srv.Router.Post("/sms", h.Receive)

	logger.Info("sms-relay starting",
		zap.String("version", version),
		zap.String("provider", cfg.SMS.Provider),
		zap.String("model", model.Name()),
		zap.Bool("outbox", cfg.Kafka.Outbox),
	)
	return srv.ListenAndServe(ctx, ":"+cfg.Server.Port)
}

// newDeliverer picks inline delivery or the Kafka outbox.  Kafka writers
// are closed when the server stops.
func newDeliverer(cfg *config.Config, srv *server.Server, logger *zap.Logger, m *metrics.Metrics) (handlers.Deliverer, error) {
	if cfg.Kafka.Outbox {
		outbox := sms.NewOutboxPublisher(cfg.Kafka.Brokers, logger.Named("outbox"))
		srv.OnStop(closer(logger, "outbox", outbox.Close))
		return outbox, nil
	}

	sender, err := app.NewSender(cfg)
	if err != nil {
		return nil, err
	}

	var dlq sms.DeadLetterSink
	if len(cfg.Kafka.Brokers) > 0 {
		dl := sms.NewDeadLetters(cfg.Kafka.Brokers)
		srv.OnStop(closer(logger, "dead letters", dl.Close))
		dlq = dl
	}
	return app.NewManager(cfg, sender, dlq, logger.Named("delivery"), m), nil
}

func closer(logger *zap.Logger, name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			logger.Warn("close failed", zap.String("component", name), zap.Error(err))
		}
	}
}

// simulateCmd posts a fake inbound SMS to a running relay.  The reply goes
// out through the relay's real SMS provider.
func simulateCmd() *cobra.Command {
	var (
		relayURL string
		in       relayclient.Inbound
	)
	cmd := &cobra.Command{
		Use:   "simulate [text...]",
		Short: "Send a simulated inbound SMS to a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Text = strings.Join(args, " ")
			client := relayclient.New(relayURL)
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}
			id, err := client.SendInbound(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "acknowledged %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&relayURL, "url", "http://localhost:8080", "relay base URL")
	cmd.Flags().StringVar(&in.From, "from", "", "sender number the reply goes to")
	cmd.Flags().StringVar(&in.To, "to", os.Getenv("TWILIO_FROM_NUMBER"), "relay number the SMS was sent to")
	cmd.MarkFlagRequired("from") //nolint:errcheck
	return cmd
}
