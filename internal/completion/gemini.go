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

package completion

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/jredh-dev/sms-relay/internal/mode"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures NewGeminiModel.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API endpoint.  Empty means the SDK default.
	BaseURL string
}

// GeminiModel implements Model on top of the Google GenAI SDK.  The client
// is created once at startup and shared by all requests.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates the GenAI client eagerly so a bad key or endpoint
// fails at startup instead of on the first SMS.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiModel{client: client, model: cfg.Model}, nil
}

// Name returns the configured model name.
func (g *GeminiModel) Name() string {
	return g.model
}

// Generate sends req as a single user turn.
func (g *GeminiModel) Generate(ctx context.Context, req Request) (Response, error) {
	//nolint:gosec // token budgets come from the static mode table
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		SafetySettings:  safetySettings(req.Safety),
		// Thinking tokens count against MaxOutputTokens; with a 100 token
		// budget they can leave nothing for the answer.
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	if req.Instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instruction, genai.RoleUser)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Text), config)
	if err != nil {
		return Response{}, fmt.Errorf("gemini %s: %w", g.model, err)
	}
	if result == nil {
		return Response{}, fmt.Errorf("gemini %s: nil response", g.model)
	}

	if fb := result.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return Response{Blocked: true, BlockReason: string(fb.BlockReason)}, nil
	}
	if len(result.Candidates) > 0 {
		if reason := result.Candidates[0].FinishReason; blockedFinish(reason) {
			return Response{Blocked: true, BlockReason: string(reason)}, nil
		}
	}

	return Response{Text: result.Text()}, nil
}

func blockedFinish(reason genai.FinishReason) bool {
	switch reason {
	case genai.FinishReasonSafety,
		genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent,
		genai.FinishReasonSPII:
		return true
	}
	return false
}

var harmCategories = map[mode.HarmCategory]genai.HarmCategory{
	mode.HarmHarassment:       genai.HarmCategoryHarassment,
	mode.HarmHateSpeech:       genai.HarmCategoryHateSpeech,
	mode.HarmSexuallyExplicit: genai.HarmCategorySexuallyExplicit,
	mode.HarmDangerousContent: genai.HarmCategoryDangerousContent,
}

var thresholds = map[mode.Threshold]genai.HarmBlockThreshold{
	mode.BlockNone:           genai.HarmBlockThresholdBlockNone,
	mode.BlockOnlyHigh:       genai.HarmBlockThresholdBlockOnlyHigh,
	mode.BlockMediumAndAbove: genai.HarmBlockThresholdBlockMediumAndAbove,
	mode.BlockLowAndAbove:    genai.HarmBlockThresholdBlockLowAndAbove,
}

// safetySettings converts a profile in mode.Categories order so requests are
// deterministic.
func safetySettings(p mode.SafetyProfile) []*genai.SafetySetting {
	settings := make([]*genai.SafetySetting, 0, len(p))
	for _, c := range mode.Categories {
		t, ok := p[c]
		if !ok {
			continue
		}
		settings = append(settings, &genai.SafetySetting{
			Category:  harmCategories[c],
			Threshold: thresholds[t],
		})
	}
	return settings
}
