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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultSendTimeout bounds a single provider API call.
const DefaultSendTimeout = 15 * time.Second

const telnyxMessagesURL = "https://api.telnyx.com/v2/messages"

// Sender is the interface any SMS backend must implement.  Send returns nil
// on acceptance by the provider, a *SendError when the failure can be
// classified, or any other error for transient failures.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// TelnyxSender sends outbound SMS messages via the Telnyx REST API using
// stdlib net/http only; Telnyx publishes no maintained Go SDK.
type TelnyxSender struct {
	apiKey     string
	fromNumber string
	url        string
	httpClient *http.Client
}

// NewTelnyxSender creates a TelnyxSender ready to use.
//
// apiKey is the Telnyx API v2 key (starts with "KEY...").
// fromNumber is your Telnyx-provisioned number in E.164 format (e.g. "+15550001234").
func NewTelnyxSender(apiKey, fromNumber string) *TelnyxSender {
	return &TelnyxSender{
		apiKey:     apiKey,
		fromNumber: fromNumber,
		url:        telnyxMessagesURL,
		httpClient: &http.Client{Timeout: DefaultSendTimeout},
	}
}

// WithURL points the sender at a different messages endpoint.
func (s *TelnyxSender) WithURL(url string) *TelnyxSender {
	s.url = url
	return s
}

// telnyxRequest is the JSON body sent to POST /v2/messages.
type telnyxRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// telnyxResponse captures just the fields we care about for logging.
type telnyxResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Send dispatches msg to the Telnyx API.  msg.From overrides the configured
// number when set.
func (s *TelnyxSender) Send(ctx context.Context, msg OutboundMessage) error {
	from := msg.From
	if from == "" {
		from = s.fromNumber
	}
	if from == "" {
		return ErrNoOrigin
	}

	body, err := json.Marshal(telnyxRequest{
		From: from,
		To:   msg.To,
		Text: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var telResp telnyxResponse
	_ = json.Unmarshal(respBody, &telResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || len(telResp.Errors) > 0 {
		for _, e := range telResp.Errors {
			if telnyxLengthError(e.Title, e.Detail) {
				return LengthExceeded(fmt.Errorf("telnyx error %s: %s", e.Code, e.Detail))
			}
		}
		if len(telResp.Errors) > 0 {
			return fmt.Errorf("telnyx returned %d: error %s: %s", resp.StatusCode, telResp.Errors[0].Code, telResp.Errors[0].Detail)
		}
		return fmt.Errorf("telnyx returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// telnyxLengthError recognises Telnyx's rejection of over-long text.  Telnyx
// reports it as a parameter error whose code is shared with other parameter
// problems, so the text is the only signal.
func telnyxLengthError(title, detail string) bool {
	s := strings.ToLower(title + " " + detail)
	return strings.Contains(s, "too long") ||
		strings.Contains(s, "character limit") ||
		strings.Contains(s, "exceeds the maximum length")
}

// FuncSender adapts a function to the Sender interface.
type FuncSender func(ctx context.Context, msg OutboundMessage) error

// Send calls f.
func (f FuncSender) Send(ctx context.Context, msg OutboundMessage) error {
	return f(ctx, msg)
}

// IsNoOrigin reports whether err is ErrNoOrigin.
func IsNoOrigin(err error) bool {
	return errors.Is(err, ErrNoOrigin)
}
