package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jredh-dev/sms-relay/config"
	"github.com/jredh-dev/sms-relay/internal/server"
	"github.com/jredh-dev/sms-relay/internal/sms"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SMS.Provider = config.ProviderTwilio
	cfg.SMS.TwilioAccountSID = "AC123"
	cfg.SMS.TwilioAuthToken = "secret"
	cfg.SMS.TwilioFromNumber = "+15550001234"
	cfg.SMS.TelnyxAPIKey = "KEY1"
	cfg.SMS.TelnyxFromNumber = "+15550009999"
	cfg.Gemini.Timeout = 25 * time.Second
	cfg.Delivery = config.DeliveryConfig{MaxLength: 1500, EmergencyLength: 1400, MaxAttempts: 3, Backoff: time.Second}
	return cfg
}

func TestNewSender(t *testing.T) {
	cfg := testConfig()

	s, err := NewSender(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sms.TwilioSender{}, s)

	cfg.SMS.Provider = config.ProviderTelnyx
	s, err = NewSender(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sms.TelnyxSender{}, s)

	cfg.SMS.Provider = "carrier-pigeon"
	_, err = NewSender(cfg)
	assert.Error(t, err)
}

type sink struct{ n int }

func (s *sink) PublishDeadLetter(context.Context, sms.DeadLetter) error {
	s.n++
	return nil
}

func TestNewManager_AppliesDeliverySettings(t *testing.T) {
	cfg := testConfig()
	cfg.Delivery.MaxAttempts = 2
	cfg.Delivery.Backoff = time.Millisecond

	calls := 0
	sender := sms.FuncSender(func(context.Context, sms.OutboundMessage) error {
		calls++
		return errors.New("down")
	})
	dlq := &sink{}
	m := NewManager(cfg, sender, dlq, zaptest.NewLogger(t), nil)

	out := m.Deliver(context.Background(), sms.OutboundMessage{ID: "1", To: "+2", From: "+1", Body: "hi"})

	assert.Equal(t, sms.StateExhaustedGeneric, out.State)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, dlq.n)
}

func TestWriteTimeout(t *testing.T) {
	cfg := testConfig()
	want := 25*time.Second + 3*(sms.DefaultSendTimeout+time.Second)
	assert.Equal(t, want, WorstCaseLatency(cfg))
	assert.Greater(t, WriteTimeout(cfg), WorstCaseLatency(cfg))
}

func TestServerOptions_ShutdownOutlastsWebhook(t *testing.T) {
	cfg := testConfig()
	opts := ServerOptions(cfg, zaptest.NewLogger(t))

	assert.Equal(t, WriteTimeout(cfg), opts.WriteTimeout)
	assert.GreaterOrEqual(t, opts.ShutdownTimeout, WriteTimeout(cfg))
	assert.Greater(t, opts.ShutdownTimeout, server.DefaultShutdownTimeout)
	assert.NotNil(t, opts.Logger)
}
