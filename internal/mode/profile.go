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

package mode

// HarmCategory names a content-safety category understood by the model.
type HarmCategory string

const (
	HarmHarassment       HarmCategory = "harassment"
	HarmHateSpeech       HarmCategory = "hate_speech"
	HarmSexuallyExplicit HarmCategory = "sexually_explicit"
	HarmDangerousContent HarmCategory = "dangerous_content"
)

// Threshold is the minimum harm probability at which the model blocks output.
type Threshold string

const (
	BlockNone           Threshold = "none"
	BlockOnlyHigh       Threshold = "only_high"
	BlockMediumAndAbove Threshold = "medium_and_above"
	BlockLowAndAbove    Threshold = "low_and_above"
)

// SafetyProfile maps every harm category to its block threshold.
type SafetyProfile map[HarmCategory]Threshold

// Profile is the fixed model configuration for a Mode.
type Profile struct {
	TokenBudget       int
	SystemInstruction string
	Safety            SafetyProfile
}

// Categories lists the harm categories every SafetyProfile covers, in the
// order they are sent to the model.
var Categories = []HarmCategory{
	HarmHarassment,
	HarmHateSpeech,
	HarmSexuallyExplicit,
	HarmDangerousContent,
}

// Only dangerous content varies by mode.  The short mode answers technical
// and numeric questions (dosages, voltages, chemistry) that the default
// filter tends to refuse, so it is relaxed there; every other category keeps
// the same stricter threshold in all modes.
func safety(dangerous Threshold) SafetyProfile {
	return SafetyProfile{
		HarmHarassment:       BlockMediumAndAbove,
		HarmHateSpeech:       BlockMediumAndAbove,
		HarmSexuallyExplicit: BlockMediumAndAbove,
		HarmDangerousContent: dangerous,
	}
}

var profiles = map[Mode]Profile{
	Short: {
		TokenBudget: 100,
		SystemInstruction: "Ты инженер. Отвечай предельно кратко: число, формула или одно предложение. " +
			"Без вступлений и пояснений.",
		Safety: safety(BlockNone),
	},
	Default: {
		TokenBudget: 400,
		SystemInstruction: "Ты помощник, который отвечает по SMS. Отвечай кратко и по делу, " +
			"простым текстом без разметки, чтобы ответ поместился в одно сообщение.",
		Safety: safety(BlockOnlyHigh),
	},
	Long: {
		TokenBudget: 1000,
		SystemInstruction: "Ты помощник, который отвечает по SMS. Дай развёрнутый, структурированный ответ " +
			"простым текстом без markdown. Уложись в 1500 символов.",
		Safety: safety(BlockOnlyHigh),
	},
}

// Profile returns the model configuration for m.  Unknown values fall back
// to the Default profile.
func (m Mode) Profile() Profile {
	if p, ok := profiles[m]; ok {
		return p
	}
	return profiles[Default]
}
