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

// Package config loads relay configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SMS provider names accepted in SMS_PROVIDER.
const (
	ProviderTwilio = "twilio"
	ProviderTelnyx = "telnyx"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Gemini   GeminiConfig
	SMS      SMSConfig
	Delivery DeliveryConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string        // empty = SDK default endpoint
	Timeout time.Duration // per model call
}

type SMSConfig struct {
	Provider string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	TelnyxAPIKey     string
	TelnyxFromNumber string
}

type DeliveryConfig struct {
	MaxLength       int // shaped body limit
	EmergencyLength int // shrink target after a length rejection
	MaxAttempts     int
	Backoff         time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Outbox  bool // queue replies on sms-outbox instead of sending inline
}

// Load returns application configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      getEnv("ENV", "production"),
			LogLevel: getEnv("LOG_LEVEL", ""),
		},
		Gemini: GeminiConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", ""),
			Timeout: getEnvDuration("MODEL_TIMEOUT", 25*time.Second),
		},
		SMS: SMSConfig{
			Provider:         strings.ToLower(getEnv("SMS_PROVIDER", ProviderTwilio)),
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
			TelnyxAPIKey:     getEnv("TELNYX_API_KEY", ""),
			TelnyxFromNumber: getEnv("TELNYX_FROM_NUMBER", ""),
		},
		Delivery: DeliveryConfig{
			MaxLength:       getEnvInt("SMS_MAX_LENGTH", 1500),
			EmergencyLength: getEnvInt("SMS_EMERGENCY_LENGTH", 1400),
			MaxAttempts:     getEnvInt("SMS_MAX_ATTEMPTS", 3),
			Backoff:         getEnvDuration("SMS_RETRY_BACKOFF", time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Outbox:  getEnvBool("SMS_OUTBOX", false),
		},
	}
}

// FromNumber is the origin number of the selected provider.
func (c *Config) FromNumber() string {
	if c.SMS.Provider == ProviderTelnyx {
		return c.SMS.TelnyxFromNumber
	}
	return c.SMS.TwilioFromNumber
}

// ValidateSender checks the settings needed to send SMS.
func (c *Config) ValidateSender() error {
	var errs []error
	switch c.SMS.Provider {
	case ProviderTwilio:
		errs = append(errs,
			required("TWILIO_ACCOUNT_SID", c.SMS.TwilioAccountSID),
			required("TWILIO_AUTH_TOKEN", c.SMS.TwilioAuthToken),
			required("TWILIO_FROM_NUMBER", c.SMS.TwilioFromNumber),
		)
	case ProviderTelnyx:
		errs = append(errs,
			required("TELNYX_API_KEY", c.SMS.TelnyxAPIKey),
			required("TELNYX_FROM_NUMBER", c.SMS.TelnyxFromNumber),
		)
	default:
		errs = append(errs, fmt.Errorf("SMS_PROVIDER %q is not one of %q, %q", c.SMS.Provider, ProviderTwilio, ProviderTelnyx))
	}

	d := c.Delivery
	if d.MaxLength < 4 {
		errs = append(errs, fmt.Errorf("SMS_MAX_LENGTH must be at least 4, got %d", d.MaxLength))
	}
	if d.EmergencyLength < 4 || d.EmergencyLength > d.MaxLength {
		errs = append(errs, fmt.Errorf("SMS_EMERGENCY_LENGTH must be between 4 and SMS_MAX_LENGTH (%d), got %d", d.MaxLength, d.EmergencyLength))
	}
	if d.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("SMS_MAX_ATTEMPTS must be positive, got %d", d.MaxAttempts))
	}
	return errors.Join(errs...)
}

// Validate checks everything the relay server needs.  Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	errs := []error{
		required("GEMINI_API_KEY", c.Gemini.APIKey),
		c.ValidateSender(),
	}
	if c.Kafka.Outbox && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("SMS_OUTBOX requires KAFKA_BROKERS"))
	}
	return errors.Join(errs...)
}

// ValidateConsumer checks what the outbox consumer needs.
func (c *Config) ValidateConsumer() error {
	var errs []error
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("required environment variable \"KAFKA_BROKERS\" is not set"))
	}
	errs = append(errs, c.ValidateSender())
	return errors.Join(errs...)
}

func required(key, value string) error {
	if value == "" {
		return fmt.Errorf("required environment variable %q is not set", key)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1.5s") or bare seconds ("2").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
