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
	"encoding/json"
	"fmt"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// OutboxTopic is where the relay queues replies when it runs in outbox
	// mode.  The sms-sender consumer delivers them.
	OutboxTopic = "sms-outbox"

	// DLQTopic is where messages that exhaust all retries are written so they
	// can be inspected and replayed manually without blocking the main consumer.
	DLQTopic = "sms-dlq"

	consumerGroup = "sms-relay-sender"

	// commitTimeout bounds an offset commit after shutdown has begun.
	commitTimeout = 5 * time.Second
)

// messageReader is the subset of *kafka.Reader the Consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used for publishing.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

// DeadLetters writes undeliverable messages to the sms-dlq topic.  It
// implements DeadLetterSink.
type DeadLetters struct {
	w messageWriter
}

// NewDeadLetters creates a DLQ writer connected to brokers.
func NewDeadLetters(brokers []string) *DeadLetters {
	return &DeadLetters{w: newWriter(brokers, DLQTopic)}
}

// PublishDeadLetter writes dl keyed by message id.
func (d *DeadLetters) PublishDeadLetter(ctx context.Context, dl DeadLetter) error {
	value, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	return d.w.WriteMessages(ctx, kafka.Message{Key: []byte(dl.Message.ID), Value: value})
}

// publishRaw forwards a record the consumer could not decode.
func (d *DeadLetters) publishRaw(ctx context.Context, original kafka.Message) error {
	return d.w.WriteMessages(ctx, kafka.Message{Key: original.Key, Value: original.Value})
}

// Close flushes and closes the writer.
func (d *DeadLetters) Close() error {
	return d.w.Close()
}

// OutboxPublisher queues replies on the sms-outbox topic instead of sending
// them inline.  Its Deliver has the same shape as Manager.Deliver so the
// webhook handler can use either.
type OutboxPublisher struct {
	w      messageWriter
	logger *zap.Logger
}

// NewOutboxPublisher creates a publisher connected to brokers.
func NewOutboxPublisher(brokers []string, logger *zap.Logger) *OutboxPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxPublisher{w: newWriter(brokers, OutboxTopic), logger: logger}
}

// Deliver writes msg to the outbox.  A write failure is reported as
// StateExhaustedGeneric; there is no retry here because kafka-go's writer
// already retries internally.
func (p *OutboxPublisher) Deliver(ctx context.Context, msg OutboundMessage) Outcome {
	out := Outcome{Attempts: 1, Body: msg.Body}

	value, err := json.Marshal(msg)
	if err == nil {
		err = p.w.WriteMessages(ctx, kafka.Message{Key: []byte(msg.ID), Value: value})
	}
	if err != nil {
		out.State = StateExhaustedGeneric
		out.Err = fmt.Errorf("outbox write: %w", err)
		p.logger.Error("sms outbox write failed", zap.String("id", msg.ID), zap.Error(err))
		return out
	}

	out.State = StateQueued
	p.logger.Info("sms queued", zap.String("id", msg.ID), zap.String("to", msg.To))
	return out
}

// Close flushes and closes the writer.
func (p *OutboxPublisher) Close() error {
	return p.w.Close()
}

// Consumer reads OutboundMessages from the sms-outbox Kafka topic and
// delivers them through a Manager.  It commits each offset after dispatch,
// whether or not delivery succeeded, so one bad message cannot stall the
// partition.
//
// Design rationale:
//   - segmentio/kafka-go is chosen over confluent-kafka-go because it is pure
//     Go (no CGO, no librdkafka dependency), making it straightforward to build
//     a small static Docker image.
//   - At-least-once (not exactly-once) is acceptable here because SMS delivery
//     itself is not idempotent at the carrier level regardless; the recipient
//     sees a duplicate text rather than a silent miss.
type Consumer struct {
	reader  messageReader
	dlq     *DeadLetters
	manager *Manager
	logger  *zap.Logger
}

// NewConsumer creates a Consumer connected to the given Kafka brokers.
// Exhausted deliveries reach the DLQ through the Manager's dead-letter sink;
// pass the same *DeadLetters to both.
func NewConsumer(brokers []string, manager *Manager, dlq *DeadLetters, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          OutboxTopic,
		GroupID:        consumerGroup,
		MinBytes:       1,
		MaxBytes:       1 << 20, // 1 MiB
		CommitInterval: 0,       // explicit commits only
		StartOffset:    kafka.LastOffset,
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:  reader,
		dlq:     dlq,
		manager: manager,
		logger:  logger,
	}
}

// Run blocks, consuming messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("sms-sender: consuming", zap.String("topic", OutboxTopic))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Clean shutdown.
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		c.handle(ctx, m)
	}
}

// handle delivers and commits one fetched message.  Shutdown does not
// interrupt it: a cancelled send would be dead-lettered and, with the commit
// failing too, redelivered as well.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.handleTimeout())
	defer cancel()

	c.dispatch(ctx, m)

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Warn("sms-sender: commit failed (message may be redelivered)", zap.Error(err))
	}
}

func (c *Consumer) handleTimeout() time.Duration {
	if c.manager == nil {
		return commitTimeout
	}
	return c.manager.MaxLatency() + commitTimeout
}

// Close releases all Kafka resources.
func (c *Consumer) Close() error {
	rerr := c.reader.Close()
	var werr error
	if c.dlq != nil {
		werr = c.dlq.Close()
	}
	if rerr != nil {
		return rerr
	}
	return werr
}

// dispatch decodes one record and hands it to the Manager.  Undecodable
// records go straight to the DLQ.
func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) Outcome {
	var msg OutboundMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil || msg.To == "" {
		if err == nil {
			err = fmt.Errorf("missing destination")
		}
		c.logger.Error("sms-sender: undecodable message", zap.ByteString("key", m.Key), zap.Error(err))
		if c.dlq != nil {
			if werr := c.dlq.publishRaw(ctx, m); werr != nil {
				c.logger.Error("sms-sender: CRITICAL could not write to DLQ", zap.Error(werr))
			}
		}
		return Outcome{State: StateExhaustedGeneric, Err: err}
	}
	return c.manager.Deliver(ctx, msg)
}
