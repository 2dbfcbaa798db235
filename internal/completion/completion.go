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

// Package completion turns a cleaned SMS question into model output.
//
// The Requester never returns an error to its caller.  Transport failures,
// safety blocks and empty answers all become a Result that still carries
// text suitable for sending back to the user.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jredh-dev/sms-relay/internal/metrics"
	"github.com/jredh-dev/sms-relay/internal/mode"
)

// User-facing fallback texts.
const (
	FailureText = "Извините, произошла ошибка AI. Попробуйте позже."
	BlockedText = "Извините, я не могу ответить на этот запрос."
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 25 * time.Second

// ErrEmptyResponse is the Failure cause when the model returned no text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Request is everything the model needs for one completion.
type Request struct {
	Text        string
	Instruction string
	MaxTokens   int
	Safety      mode.SafetyProfile
}

// Response is the raw model answer.  Blocked is set when the model refused
// to answer for safety reasons; BlockReason then names the cause.
type Response struct {
	Text        string
	Blocked     bool
	BlockReason string
}

// Model is the hosted language model collaborator.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// Kind discriminates Result variants.
type Kind int

const (
	KindSuccess Kind = iota
	KindBlocked
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindBlocked:
		return "blocked"
	default:
		return "failure"
	}
}

// Result is the outcome of one completion.  Exactly one of the variant
// payloads is meaningful, as selected by Kind.
type Result struct {
	Kind   Kind
	text   string
	Reason string // KindBlocked
	Err    error  // KindFailure
}

// Success wraps model text.
func Success(text string) Result { return Result{Kind: KindSuccess, text: text} }

// Blocked records a safety refusal.
func Blocked(reason string) Result { return Result{Kind: KindBlocked, Reason: reason} }

// Failure records a model or transport error.
func Failure(err error) Result { return Result{Kind: KindFailure, Err: err} }

// Text returns the body to send to the user: the model's answer on success,
// otherwise the matching fallback.
func (r Result) Text() string {
	switch r.Kind {
	case KindSuccess:
		return r.text
	case KindBlocked:
		return BlockedText
	default:
		return FailureText
	}
}

// Requester builds model requests from mode profiles and maps every outcome
// to a Result.
type Requester struct {
	model   Model
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Requester.
type Option func(*Requester)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Requester) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Requester) { r.logger = l }
}

// WithMetrics records completion outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Requester) { r.metrics = m }
}

// New creates a Requester around model.
func New(model Model, opts ...Option) *Requester {
	r := &Requester{
		model:   model,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Complete asks the model to answer text using the profile for m.  It always
// returns within the configured timeout plus scheduling slack, and never
// panics on a misbehaving model.
func (r *Requester) Complete(ctx context.Context, text string, m mode.Mode) (res Result) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = Failure(fmt.Errorf("model panic: %v", p))
		}
		r.observe(m, res, started)
	}()

	profile := m.Profile()
	req := Request{
		Text:        text,
		Instruction: profile.SystemInstruction,
		MaxTokens:   profile.TokenBudget,
		Safety:      profile.Safety,
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.model.Generate(ctx, req)
	switch {
	case err != nil:
		return Failure(fmt.Errorf("generate: %w", err))
	case resp.Blocked:
		return Blocked(resp.BlockReason)
	case strings.TrimSpace(resp.Text) == "":
		return Failure(ErrEmptyResponse)
	}
	return Success(strings.TrimSpace(resp.Text))
}

func (r *Requester) observe(m mode.Mode, res Result, started time.Time) {
	fields := []zap.Field{
		zap.String("mode", m.String()),
		zap.String("result", res.Kind.String()),
		zap.Duration("elapsed", time.Since(started)),
	}
	switch res.Kind {
	case KindBlocked:
		r.logger.Warn("completion blocked", append(fields, zap.String("reason", res.Reason))...)
	case KindFailure:
		r.logger.Error("completion failed", append(fields, zap.Error(res.Err))...)
	default:
		r.logger.Debug("completion ok", append(fields, zap.Int("chars", len([]rune(res.text))))...)
	}
	r.metrics.ObserveCompletion(m.String(), res.Kind.String(), time.Since(started))
}
