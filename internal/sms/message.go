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

// Package sms delivers outbound SMS through a pluggable provider backend with
// bounded retries, and moves queued or undeliverable messages over Kafka.
package sms

// OutboundMessage is one reply to send.  It is also the JSON schema of the
// sms-outbox and sms-dlq Kafka topics:
//
//	{
//	  "id":   "550e8400-e29b-41d4-a716-446655440000",
//	  "to":   "+15551234567",
//	  "from": "+15550001234",
//	  "body": "12"
//	}
type OutboundMessage struct {
	// ID correlates the reply with the inbound message in logs.  It is the
	// provider's inbound message id when one was supplied.
	ID string `json:"id"`

	// To is the E.164 destination, i.e. the original sender.
	To string `json:"to"`

	// From is the origin number.  Empty means the backend's configured
	// number.
	From string `json:"from,omitempty"`

	// Body is the UTF-8 message text.  Providers concatenate multi-segment
	// messages up to their own hard limit (1600 characters for Twilio).
	Body string `json:"body"`
}

// DeadLetter records a message that exhausted its delivery attempts.
type DeadLetter struct {
	Message  OutboundMessage `json:"message"`
	State    string          `json:"state"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error,omitempty"`
}
