// Package notify delivers alert events to a configured webhook URL as
// JSON. Delivery is best-effort: transient failures are retried with
// bounded exponential backoff, then the event is dropped. The payload
// shape is stable so n8n/Slack/Discord-style webhook consumers can rely
// on it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mitinsharma/serverstriker/internal/alert"
	"github.com/mitinsharma/serverstriker/internal/utils"
)

// ErrDelivery marks a webhook delivery that failed after all retries.
var ErrDelivery = errors.New("webhook delivery failed")

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Server    string `json:"server"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Severity  string `json:"severity,omitempty"`
}

// PayloadFor builds the webhook payload for an event. Timestamps are
// ISO-8601 in UTC.
func PayloadFor(server string, ev alert.Event) Payload {
	return Payload{
		Server:    server,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Message:   ev.Message,
		Severity:  string(ev.Severity),
	}
}

// Options configures a Notifier. Zero values fall back to defaults.
type Options struct {
	URL        string
	Server     string
	Attempts   int           // default 3
	BaseDelay  time.Duration // default 2s, doubled per retry
	MaxDelay   time.Duration // default 30s cap
	Timeout    time.Duration // per-attempt HTTP timeout, default 10s
	RatePerMin int           // sustained webhook posts per minute, default 30
}

func (o *Options) applyDefaults() {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 2 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.RatePerMin <= 0 {
		o.RatePerMin = 30
	}
}

// Notifier posts events to a single webhook URL.
type Notifier struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	log     *utils.Logger
}

// New constructs a Notifier for the given webhook target.
func New(opts Options, log *utils.Logger) *Notifier {
	opts.applyDefaults()
	return &Notifier{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(opts.RatePerMin)/60.0), opts.RatePerMin),
		log:     log,
	}
}

// Notify delivers one event. It retries transient failures up to the
// configured attempt count and returns ErrDelivery once exhausted. A
// blank URL disables delivery silently so the agent can run log-only.
func (n *Notifier) Notify(ctx context.Context, ev alert.Event) error {
	if n.opts.URL == "" {
		return nil
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	body, err := json.Marshal(PayloadFor(n.opts.Server, ev))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	delay := n.opts.BaseDelay
	for attempt := 1; attempt <= n.opts.Attempts; attempt++ {
		lastErr = n.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		n.log.Writef("Webhook attempt %d/%d failed: %v", attempt, n.opts.Attempts, lastErr)
		if attempt == n.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrDelivery, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > n.opts.MaxDelay {
			delay = n.opts.MaxDelay
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrDelivery, n.opts.Attempts, lastErr)
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
