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
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// twilioBodyTooLong is Twilio's "The concatenated message body exceeds the
// 1600 character limit" REST error.
const twilioBodyTooLong = 21617

// messageCreator is the part of the Twilio API service the sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	api        messageCreator
	fromNumber string
}

// NewTwilioSender creates a sender authenticated with the account SID and
// auth token.  fromNumber is the Twilio number replies come from.
func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: c.Api, fromNumber: fromNumber}
}

// Send creates one outbound message.  The Twilio SDK has no per-call context;
// the client's own HTTP timeout bounds the call, and a context that is
// already done short-circuits it.
func (s *TwilioSender) Send(ctx context.Context, msg OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := msg.From
	if from == "" {
		from = s.fromNumber
	}
	if from == "" {
		return ErrNoOrigin
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(from)
	params.SetBody(msg.Body)

	if _, err := s.api.CreateMessage(params); err != nil {
		return classifyTwilio(err)
	}
	return nil
}

func classifyTwilio(err error) error {
	var restErr *client.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Code == twilioBodyTooLong {
			return LengthExceeded(fmt.Errorf("twilio %d: %s", restErr.Code, restErr.Message))
		}
		return fmt.Errorf("twilio %d: %s", restErr.Code, restErr.Message)
	}
	return fmt.Errorf("twilio: %w", err)
}
