package sms

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jredh-dev/sms-relay/internal/metrics"
	"github.com/jredh-dev/sms-relay/internal/shaper"
)

// scriptedSender returns errs in order, then nil, and records every body.
type scriptedSender struct {
	errs   []error
	bodies []string
}

func (s *scriptedSender) Send(_ context.Context, msg OutboundMessage) error {
	s.bodies = append(s.bodies, msg.Body)
	i := len(s.bodies) - 1
	if i < len(s.errs) {
		return s.errs[i]
	}
	return nil
}

type recordingSink struct {
	letters []DeadLetter
}

func (r *recordingSink) PublishDeadLetter(_ context.Context, dl DeadLetter) error {
	r.letters = append(r.letters, dl)
	return nil
}

// newTestManager replaces the backoff sleep with a recorder.
func newTestManager(t *testing.T, s Sender, opts ...ManagerOption) (*Manager, *[]time.Duration) {
	t.Helper()
	var waits []time.Duration
	opts = append([]ManagerOption{WithManagerLogger(zaptest.NewLogger(t))}, opts...)
	m := NewManager(s, opts...)
	m.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return m, &waits
}

func msg(body string) OutboundMessage {
	return OutboundMessage{ID: "id-1", To: "+15551234567", From: "+15550001234", Body: body}
}

func TestDeliver_FirstAttempt(t *testing.T) {
	s := &scriptedSender{}
	m, waits := newTestManager(t, s)

	out := m.Deliver(context.Background(), msg("12"))

	assert.Equal(t, StateSent, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.NoError(t, out.Err)
	assert.Equal(t, []string{"12"}, s.bodies)
	assert.Empty(t, *waits)
}

func TestDeliver_ShrinkAndRetry(t *testing.T) {
	s := &scriptedSender{errs: []error{
		LengthExceeded(errors.New("exceeds the 1600 character limit")),
	}}
	m, waits := newTestManager(t, s)

	body := strings.Repeat("a", 1800)
	out := m.Deliver(context.Background(), msg(body))

	require.Equal(t, StateSent, out.State)
	assert.Equal(t, 2, out.Attempts)
	require.Len(t, s.bodies, 2)
	assert.Equal(t, body, s.bodies[0])
	assert.Equal(t, strings.Repeat("a", 1397)+"...", s.bodies[1])
	assert.Equal(t, 1400, shaper.Len(out.Body))
	assert.Empty(t, *waits, "length retry must not wait")
}

func TestDeliver_LengthErrorWithinThresholdAborts(t *testing.T) {
	s := &scriptedSender{errs: []error{
		LengthExceeded(errors.New("too long")),
		LengthExceeded(errors.New("too long")),
	}}
	sink := &recordingSink{}
	m, _ := newTestManager(t, s, WithDeadLetters(sink))

	out := m.Deliver(context.Background(), msg(strings.Repeat("b", 1300)))

	assert.Equal(t, StateExhaustedLengthShrink, out.State)
	assert.Equal(t, 1, out.Attempts)
	require.Len(t, sink.letters, 1)
	assert.Equal(t, "exhausted_length", sink.letters[0].State)
	assert.Equal(t, "id-1", sink.letters[0].Message.ID)
}

func TestDeliver_LengthErrorAfterShrinkAborts(t *testing.T) {
	lenErr := LengthExceeded(errors.New("too long"))
	s := &scriptedSender{errs: []error{lenErr, lenErr, lenErr}}
	m, _ := newTestManager(t, s)

	out := m.Deliver(context.Background(), msg(strings.Repeat("c", 2000)))

	assert.Equal(t, StateExhaustedLengthShrink, out.State)
	assert.Equal(t, 2, out.Attempts, "second failure is already within threshold")
}

func TestDeliver_GenericRetryWithBackoff(t *testing.T) {
	netErr := errors.New("connection refused")
	s := &scriptedSender{errs: []error{netErr, netErr}}
	m, waits := newTestManager(t, s, WithBackoff(time.Second))

	out := m.Deliver(context.Background(), msg("hello"))

	assert.Equal(t, StateSent, out.State)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []string{"hello", "hello", "hello"}, s.bodies)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *waits)
}

func TestDeliver_GenericExhausted(t *testing.T) {
	netErr := errors.New("503")
	s := &scriptedSender{errs: []error{netErr, netErr, netErr, netErr, netErr}}
	sink := &recordingSink{}
	m, waits := newTestManager(t, s, WithDeadLetters(sink))

	out := m.Deliver(context.Background(), msg("hello"))

	assert.Equal(t, StateExhaustedGeneric, out.State)
	assert.Equal(t, DefaultMaxAttempts, out.Attempts)
	assert.Len(t, s.bodies, DefaultMaxAttempts)
	assert.Len(t, *waits, DefaultMaxAttempts-1, "no wait after the last attempt")
	assert.ErrorIs(t, out.Err, netErr)
	require.Len(t, sink.letters, 1)
	assert.Equal(t, "503", sink.letters[0].Error)
}

func TestDeliver_NeverExceedsMaxAttempts(t *testing.T) {
	lenErr := LengthExceeded(errors.New("too long"))
	netErr := errors.New("timeout")
	scripts := [][]error{
		{netErr, netErr, netErr, netErr, netErr, netErr},
		{lenErr, netErr, netErr, netErr, netErr},
		{netErr, lenErr, netErr, netErr},
	}
	for _, max := range []int{1, 2, 3, 5} {
		for _, script := range scripts {
			s := &scriptedSender{errs: script}
			m, _ := newTestManager(t, s, WithMaxAttempts(max))
			out := m.Deliver(context.Background(), msg(strings.Repeat("z", 3000)))
			assert.LessOrEqual(t, len(s.bodies), max)
			assert.Equal(t, len(s.bodies), out.Attempts)
		}
	}
}

func TestDeliver_ContextCancelledDuringBackoff(t *testing.T) {
	s := &scriptedSender{errs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}
	m := NewManager(s, WithBackoff(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := m.Deliver(ctx, msg("hi"))
	assert.Equal(t, StateExhaustedGeneric, out.State)
	assert.Equal(t, 1, out.Attempts)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestDeliver_Metrics(t *testing.T) {
	met := metrics.New(prometheus.NewRegistry())
	s := &scriptedSender{errs: []error{LengthExceeded(errors.New("long"))}}
	m, _ := newTestManager(t, s, WithManagerMetrics(met))

	m.Deliver(context.Background(), msg(strings.Repeat("q", 1500)))

	assert.Equal(t, 1.0, testutil.ToFloat64(met.DeliveryAttempts.WithLabelValues("length_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.DeliveryAttempts.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.Deliveries.WithLabelValues("sent")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, FailureLengthExceeded, KindOf(LengthExceeded(errors.New("x"))))
	assert.Equal(t, FailureOther, KindOf(errors.New("x")))
	assert.Equal(t, FailureOther, KindOf(nil))

	wrapped := errors.Join(errors.New("ctx"), LengthExceeded(errors.New("x")))
	assert.Equal(t, FailureLengthExceeded, KindOf(wrapped))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "sent", StateSent.String())
	assert.True(t, StateExhaustedGeneric.Exhausted())
	assert.True(t, StateExhaustedLengthShrink.Exhausted())
	assert.False(t, StateQueued.Exhausted())
}

func TestManager_MaxLatency(t *testing.T) {
	m := NewManager(nil, WithMaxAttempts(3), WithBackoff(time.Second))
	assert.Equal(t, 3*(DefaultSendTimeout+time.Second), m.MaxLatency())
}
