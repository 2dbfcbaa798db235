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

// Package relayclient talks to a running relay the way an SMS provider
// does.  It backs the simulate command used for local testing.
package relayclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is generous: the relay answers only after the model call
// and delivery are done.
const DefaultTimeout = 2 * time.Minute

// Inbound is a simulated provider webhook, sent with Twilio field names.
type Inbound struct {
	ID   string // generated when empty
	From string
	To   string
	Text string
}

// Client is the interface for the relay's HTTP endpoints.
// Tests inject a mock.
type Client interface {
	Health(ctx context.Context) error
	SendInbound(ctx context.Context, in Inbound) (string, error)
}

type httpClient struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) Client {
	return &httpClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

func (c *httpClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay health: status %d", resp.StatusCode)
	}
	return nil
}

// SendInbound posts in to /sms and returns the message id used.  The relay
// acknowledges with an empty 200; anything else is reported as an error.
func (c *httpClient) SendInbound(ctx context.Context, in Inbound) (string, error) {
	if in.ID == "" {
		in.ID = "SIM" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	form := url.Values{
		"MessageSid": {in.ID},
		"From":       {in.From},
		"To":         {in.To},
		"Body":       {in.Text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sms", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay inbound: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return in.ID, fmt.Errorf("relay inbound: status %d", resp.StatusCode)
	}
	if len(body) > 0 {
		return in.ID, fmt.Errorf("relay inbound: unexpected response body %q", body)
	}
	return in.ID, nil
}
