// Package messaging talks to the msgwapi WhatsApp gateway.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/poster-scheduler/internal/config"
)

// Message is one outbound call: a single media URL to a single receiver.
type Message struct {
	Receiver string
	Text     string
	MediaURL string
}

// Response is the gateway reply body. Success=false is a failed send even on HTTP 200.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

var ErrUnsuccessful = errors.New("gateway reported failure")

// ErrNotSent wraps failures that happen before any request leaves the
// process, such as a cancelled rate limit wait.
var ErrNotSent = errors.New("request not sent")

// Client issues GET requests to the gateway, throttled by a token bucket.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewClient(cfg config.MsgwapiConfig, log zerolog.Logger) *Client {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log.With().Str("component", "msgwapi").Logger(),
	}
}

// Send performs one gateway call. The receiver must already be normalized.
func (c *Client) Send(ctx context.Context, msg Message) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrNotSent, err)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse base url: %w", ErrNotSent, err)
	}
	q := u.Query()
	q.Set("receiver", msg.Receiver)
	q.Set("msgtext", msg.Text)
	q.Set("token", c.token)
	q.Set("mediaurl", msg.MediaURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrNotSent, err)
	}

	c.log.Debug().Str("receiver", msg.Receiver).Str("media_url", msg.MediaURL).Msg("sending whatsapp message")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if !out.Success {
		reason := out.Message
		if reason == "" {
			reason = "Unknown error"
		}
		return &out, fmt.Errorf("%w: %s", ErrUnsuccessful, reason)
	}
	return &out, nil
}

// NormalizeReceiver keeps digits only. A number written as "+<code>..." is
// already international; anything else gets the country code prepended.
func NormalizeReceiver(raw, countryCode string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(raw, "+"+countryCode) {
		return digits
	}
	return countryCode + digits
}
