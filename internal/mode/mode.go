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

// Package mode selects a response profile from the trailing command token of
// an inbound SMS.
//
// A sender appends "111" to ask for a terse engineer-style answer or "222" to
// ask for a long one.  Anything else gets the default profile.
package mode

import "strings"

// Mode is the response length/tone profile selected for one message.
type Mode int

const (
	Default Mode = iota
	Short
	Long
)

const (
	shortToken = "111"
	longToken  = "222"
)

// String returns the lower-case name used in logs and metric labels.
func (m Mode) String() string {
	switch m {
	case Short:
		return "short"
	case Long:
		return "long"
	default:
		return "default"
	}
}

// Resolve splits raw into the text to send to the model and the requested
// mode.  Only a token at the very end of the trimmed message counts; the same
// digits anywhere else are part of the question.
func Resolve(raw string) (string, Mode) {
	text := strings.TrimSpace(raw)

	switch {
	case strings.HasSuffix(text, shortToken):
		return strings.TrimSpace(strings.TrimSuffix(text, shortToken)), Short
	case strings.HasSuffix(text, longToken):
		return strings.TrimSpace(strings.TrimSuffix(text, longToken)), Long
	}
	return text, Default
}
