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

// Package phone normalizes the addresses providers put in webhooks.
// Twilio sends E.164 ("+15551234567"), Vonage sends the same digits without
// the plus ("15551234567"); replies go out in E.164 either way.  Both always
// carry the country code, so digits are never added or removed.  Sender
// numbers are logged as a short hash rather than in the clear.
package phone

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Digits strips a phone number down to ASCII digits.  Full-width digits, as
// typed on CJK keyboards, are folded to ASCII first.
func Digits(number string) string {
	var digits strings.Builder
	for _, r := range width.Fold.String(strings.TrimSpace(number)) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// E164 returns number as "+<digits>".  Alphanumeric sender IDs and short
// codes are returned trimmed but otherwise untouched.
func E164(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.IndexFunc(number, unicode.IsLetter) >= 0 {
		return number
	}
	d := Digits(number)
	if len(d) < 7 {
		return number
	}
	return "+" + d
}

// Hash returns a short, stable, non-reversible tag for number, for logs.
func Hash(number string) string {
	if number == "" {
		return ""
	}
	key := Digits(number)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(number))
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:6])
}
