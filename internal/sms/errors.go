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
	"errors"
	"fmt"
)

// FailureKind classifies a send failure for the retry policy.
type FailureKind int

const (
	// FailureOther covers network errors, 5xx responses and anything the
	// backend could not classify.  Retrying the same body may succeed.
	FailureOther FailureKind = iota

	// FailureLengthExceeded means the provider rejected the body as too
	// long.  Only a shorter body can succeed.
	FailureLengthExceeded
)

func (k FailureKind) String() string {
	if k == FailureLengthExceeded {
		return "length_exceeded"
	}
	return "other"
}

// ErrNoOrigin is returned when a message has no origin number to send from.
var ErrNoOrigin = errors.New("sms: no origin number configured")

// SendError is returned by Sender implementations so the Manager can pick a
// retry strategy without parsing provider error text.
type SendError struct {
	Kind FailureKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sms send (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// LengthExceeded wraps err as a FailureLengthExceeded SendError.
func LengthExceeded(err error) error {
	return &SendError{Kind: FailureLengthExceeded, Err: err}
}

// KindOf returns the FailureKind carried by err.  Errors that are not a
// SendError are FailureOther.
func KindOf(err error) FailureKind {
	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureOther
}
