package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHealthEndpoints(t *testing.T) {
	s := New(Options{Gatherer: prometheus.NewRegistry(), Logger: zaptest.NewLogger(t)})

	for _, path := range []string{"/", "/health"} {
		rec := httptest.NewRecorder()
		s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "OK", rec.Body.String(), path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "smsrelay_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := New(Options{Gatherer: reg})
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "smsrelay_test_total 1")
}

func TestRecovererKeepsServing(t *testing.T) {
	s := New(Options{Gatherer: prometheus.NewRegistry(), Logger: zaptest.NewLogger(t)})
	s.Router.Post("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	s := New(Options{Gatherer: prometheus.NewRegistry(), ShutdownTimeout: time.Second})
	stopped := make(chan struct{})
	s.OnStop(func() { close(stopped) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	select {
	case <-stopped:
	default:
		t.Fatal("OnStop hook not called")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestListenAndServe_DrainsBeforeOnStop(t *testing.T) {
	s := New(Options{Gatherer: prometheus.NewRegistry(), ShutdownTimeout: 5 * time.Second, Logger: zaptest.NewLogger(t)})

	entered := make(chan struct{})
	var finished atomic.Bool
	s.Router.Get("/slow", func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
		w.WriteHeader(http.StatusOK)
	})
	finishedAtStop := make(chan bool, 1)
	s.OnStop(func() { finishedAtStop <- finished.Load() })

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/slow")
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-entered
	cancel()

	assert.Equal(t, http.StatusOK, <-status, "in-flight request completes")
	require.NoError(t, <-done)
	assert.True(t, <-finishedAtStop, "OnStop ran before the in-flight request finished")
}

func TestListenAndServe_BadAddress(t *testing.T) {
	s := New(Options{Gatherer: prometheus.NewRegistry()})
	err := s.ListenAndServe(context.Background(), "127.0.0.1:-1")
	assert.Error(t, err)
}
