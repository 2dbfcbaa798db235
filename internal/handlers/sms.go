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

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jredh-dev/sms-relay/internal/completion"
	"github.com/jredh-dev/sms-relay/internal/metrics"
	"github.com/jredh-dev/sms-relay/internal/mode"
	"github.com/jredh-dev/sms-relay/internal/phone"
	"github.com/jredh-dev/sms-relay/internal/shaper"
	"github.com/jredh-dev/sms-relay/internal/sms"
)

// EmptyTextReply is sent when the inbound message has no text left after
// the mode token is stripped.
const EmptyTextReply = "Пожалуйста, отправьте свой запрос текстом."

// DefaultProcessTimeout bounds one webhook's model call plus delivery.
const DefaultProcessTimeout = 60 * time.Second

// Inbound outcomes recorded in smsrelay_inbound_messages_total.
const (
	outcomeProcessed = "processed"
	outcomeNoSender  = "no_sender"
	outcomeEmptyText = "empty_text"
	outcomeBadForm   = "bad_form"
	outcomeNoOrigin  = "no_origin"
)

// Completer turns a cleaned prompt into a reply.  It must not fail; failures
// come back as a completion.Result with a fallback text.
type Completer interface {
	Complete(ctx context.Context, text string, m mode.Mode) completion.Result
}

// Deliverer sends (or queues) the reply.  It must not fail either.
type Deliverer interface {
	Deliver(ctx context.Context, msg sms.OutboundMessage) sms.Outcome
}

// SMSDeps are the process-scoped services the webhook needs.
type SMSDeps struct {
	Completer Completer
	Deliverer Deliverer

	// Origin is the number replies are sent from.  When empty the inbound
	// recipient is echoed back instead.
	Origin string

	MaxLength      int           // defaults to shaper.DefaultMaxLength
	ProcessTimeout time.Duration // defaults to DefaultProcessTimeout

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// SMS handles inbound SMS webhooks.
type SMS struct {
	deps SMSDeps
}

// inbound is a webhook payload normalized across providers.
type inbound struct {
	ID   string
	Text string
	From string
	To   string
}

// NewSMS returns the webhook handler.  Zero MaxLength and ProcessTimeout
// take their defaults; a nil Logger discards logs.
func NewSMS(deps SMSDeps) *SMS {
	if deps.MaxLength <= 0 {
		deps.MaxLength = shaper.DefaultMaxLength
	}
	if deps.ProcessTimeout <= 0 {
		deps.ProcessTimeout = DefaultProcessTimeout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SMS{deps: deps}
}

// Receive handles POST /sms.  The provider re-delivers on anything but an
// empty 200, so every path ends with one.
func (h *SMS) Receive(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	if err := r.ParseForm(); err != nil {
		h.deps.Logger.Warn("unparseable webhook", zap.Error(err))
		h.deps.Metrics.ObserveInbound(outcomeBadForm)
		return
	}

	in := parseInbound(r)
	if in.From == "" {
		h.deps.Logger.Info("webhook without sender ignored", zap.String("message_id", in.ID))
		h.deps.Metrics.ObserveInbound(outcomeNoSender)
		return
	}

	// Detach from the request so a provider hang-up cannot abort a paid
	// model call half way.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.deps.ProcessTimeout)
	defer cancel()

	h.process(ctx, in)
}

func (h *SMS) process(ctx context.Context, in inbound) {
	log := h.deps.Logger.With(zap.String("message_id", in.ID), zap.String("sender", phone.Hash(in.From)))

	origin := h.deps.Origin
	if origin == "" {
		origin = in.To
	}
	if origin == "" {
		log.Error("service unavailable: no origin number to reply from")
		h.deps.Metrics.ObserveInbound(outcomeNoOrigin)
		return
	}

	text, m := mode.Resolve(in.Text)
	log.Debug("inbound sms", zap.String("text", text), zap.Stringer("mode", m))

	var reply string
	if text == "" {
		reply = EmptyTextReply
		h.deps.Metrics.ObserveInbound(outcomeEmptyText)
	} else {
		res := h.deps.Completer.Complete(ctx, text, m)
		reply = res.Text()
		log.Info("completion finished", zap.Stringer("mode", m), zap.Stringer("result", res.Kind))
		h.deps.Metrics.ObserveInbound(outcomeProcessed)
	}

	out := h.deps.Deliverer.Deliver(ctx, sms.OutboundMessage{
		ID:   in.ID,
		To:   in.From,
		From: origin,
		Body: shaper.Shape(reply, h.deps.MaxLength),
	})
	if out.State.Exhausted() {
		log.Warn("reply not delivered", zap.Stringer("state", out.State), zap.Int("attempts", out.Attempts))
	}
}

// parseInbound accepts Twilio (Body/From/To/MessageSid) and Vonage
// (text/msisdn/to/messageId) field names.  Numbers come back in E.164.
func parseInbound(r *http.Request) inbound {
	in := inbound{
		ID:   firstValue(r, "MessageSid", "messageId"),
		Text: firstValue(r, "Body", "text"),
		From: phone.E164(firstValue(r, "From", "msisdn")),
		To:   phone.E164(firstValue(r, "To", "to")),
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	return in
}

func firstValue(r *http.Request, keys ...string) string {
	for _, k := range keys {
		if v := r.Form.Get(k); v != "" {
			return v
		}
	}
	return ""
}
