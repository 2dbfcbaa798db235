package relayclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendInbound(t *testing.T) {
	var got http.Header
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sms", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		got = r.Header
		form = map[string]string{
			"From": r.PostForm.Get("From"),
			"To":   r.PostForm.Get("To"),
			"Body": r.PostForm.Get("Body"),
			"Sid":  r.PostForm.Get("MessageSid"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	id, err := New(srv.URL+"/").SendInbound(context.Background(), Inbound{
		From: "+15557654321",
		To:   "+15550001234",
		Text: "What is 5+7 111",
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "SIM"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Get("Content-Type"))
	assert.Equal(t, "+15557654321", form["From"])
	assert.Equal(t, "+15550001234", form["To"])
	assert.Equal(t, "What is 5+7 111", form["Body"])
	assert.Equal(t, id, form["Sid"])
}

func TestSendInbound_KeepsGivenID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	id, err := New(srv.URL).SendInbound(context.Background(), Inbound{ID: "SM1", From: "+1", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "SM1", id)
}

func TestSendInbound_ProtocolViolations(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"non-200", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) }, "status 502"},
		{"body", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("<Response/>")) }, "unexpected response body"}, //nolint:errcheck
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL).SendInbound(context.Background(), Inbound{From: "+1", Text: "x"})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("OK")) //nolint:errcheck
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL).Health(context.Background()))

	srv.Close()
	assert.Error(t, New(srv.URL).Health(context.Background()))
}
