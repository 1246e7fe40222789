package messaging_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/poster-scheduler/internal/config"
	"github.com/unclebandit/poster-scheduler/internal/messaging"
)

func newClient(t *testing.T, handler http.HandlerFunc) *messaging.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return messaging.NewClient(config.MsgwapiConfig{
		BaseURL:    srv.URL + "/api/whatsapp/send",
		Token:      "secret-token",
		RatePerSec: 100,
		Timeout:    2 * time.Second,
	}, zerolog.Nop())
}

func TestNormalizeReceiver(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"9876543210", "919876543210"},
		{"+919876543210", "919876543210"},
		{"+91 98765-43210", "919876543210"},
		{" 98765 43210 ", "919876543210"},
		{"919876543210", "91919876543210"},
		{"+1 555 0100", "9115550100"},
		{"", ""},
		{"n/a", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, messaging.NormalizeReceiver(tt.raw, "91"), tt.raw)
	}
}

func TestSendBuildsEncodedQuery(t *testing.T) {
	var got map[string]string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/whatsapp/send", r.URL.Path)
		q := r.URL.Query()
		got = map[string]string{
			"receiver": q.Get("receiver"),
			"msgtext":  q.Get("msgtext"),
			"token":    q.Get("token"),
			"mediaurl": q.Get("mediaurl"),
		}
		w.Write([]byte(`{"success":true,"message":"queued"}`))
	})

	resp, err := client.Send(context.Background(), messaging.Message{
		Receiver: "919876543210",
		Text:     "Diwali offer & more",
		MediaURL: "https://cdn.example.com/posters/a b.jpg?x=1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]string{
		"receiver": "919876543210",
		"msgtext":  "Diwali offer & more",
		"token":    "secret-token",
		"mediaurl": "https://cdn.example.com/posters/a b.jpg?x=1",
	}, got)
}

func TestSendTreatsUnsuccessfulBodyAsFailure(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"invalid receiver"}`))
	})

	resp, err := client.Send(context.Background(), messaging.Message{Receiver: "91", MediaURL: "https://x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, messaging.ErrUnsuccessful)
	assert.Contains(t, err.Error(), "invalid receiver")
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestSendUnsuccessfulWithoutMessage(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	})

	_, err := client.Send(context.Background(), messaging.Message{Receiver: "91", MediaURL: "https://x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown error")
}

func TestSendHTTPError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Send(context.Background(), messaging.Message{Receiver: "91", MediaURL: "https://x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestSendMalformedBody(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := client.Send(context.Background(), messaging.Message{Receiver: "91", MediaURL: "https://x"})
	require.Error(t, err)
}

func TestSendHonorsContext(t *testing.T) {
	release := make(chan struct{})
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, messaging.Message{Receiver: "91", MediaURL: "https://x"})
	require.Error(t, err)
}

func TestSendCancelledBeforeRequestIsNotSent(t *testing.T) {
	hit := false
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		hit = true
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Send(ctx, messaging.Message{Receiver: "91", MediaURL: "https://x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, messaging.ErrNotSent)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, hit)
}

func TestSendHTTPErrorIsNotMarkedNotSent(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Send(context.Background(), messaging.Message{Receiver: "91", MediaURL: "https://x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, messaging.ErrNotSent)
}
