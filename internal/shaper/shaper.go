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

// Package shaper fits generated text into an outbound SMS body.
//
// Lengths are counted in Unicode code points, which is how the SMS providers
// count characters in their concatenated-message limits.
package shaper

import "unicode/utf8"

// Ellipsis marks a body that was cut short.
const Ellipsis = "..."

// DefaultMaxLength sits below the 1600 character provider limit so the
// provider never rejects a freshly shaped body.
const DefaultMaxLength = 1500

// Shape returns text unchanged if it fits in max code points.  Longer text is
// cut to exactly max code points: a prefix of text followed by Ellipsis.
// Text is never rewritten, so a decomposed character keeps both its code
// points.
func Shape(text string, max int) string {
	return Truncate(text, max)
}

// Truncate cuts text to max code points, replacing the tail with Ellipsis.
// Text that already fits is returned as is.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	if max <= len(Ellipsis) {
		return Ellipsis[:max]
	}
	return prefix(text, max-len(Ellipsis)) + Ellipsis
}

// Len reports the length of text in code points.
func Len(text string) int {
	return utf8.RuneCountInString(text)
}

func prefix(text string, n int) string {
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
