package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultRetryAfter = 1 * time.Second

	// retryPadding is added on top of the sink-provided retry_after so the
	// retried request lands safely past the window edge.
	retryPadding = 250 * time.Millisecond
)

// FatalError carries a non-retryable sink response. Any non-2xx status other
// than 429 aborts the remainder of the run.
type FatalError struct {
	Status int
	Body   string
}

func (e *FatalError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("sink rejected message (%d)", e.Status)
	}
	return fmt.Sprintf("sink rejected message (%d): %s", e.Status, body)
}

// Options parameterise the webhook sender.
type Options struct {
	Timeout   time.Duration
	SendDelay time.Duration
	UserAgent string
}

// Sender posts formatted chunks to webhook sinks with backpressure handling.
// Sends are paced by a limiter so bursts stay under sink-side rate limits.
type Sender struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSender constructs a webhook sender.
func NewSender(opts Options, logger zerolog.Logger) *Sender {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	delay := opts.SendDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Sender{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		logger:  logger.With().Str("component", "delivery_sender").Logger(),
		sleep:   sleepContext,
	}
}

// PickSink implements the stable round-robin: the i-th unit of a run goes to
// sinks[i mod len(sinks)], independent of any failure state.
func PickSink(sinks []string, i int) string {
	return sinks[i%len(sinks)]
}

// Send posts {"content": text} to the sink URL. HTTP 429 responses are
// retried indefinitely after the sink-advertised delay; any other non-2xx
// status is a FatalError. The limiter spaces successive sends apart.
func (s *Sender) Send(ctx context.Context, sinkURL, content string) error {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal sink payload: %w", err)
	}

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		status, body, err := s.post(ctx, sinkURL, payload)
		if err != nil {
			return fmt.Errorf("post to sink: %w", err)
		}

		if status >= 200 && status < 300 {
			return nil
		}

		if status == http.StatusTooManyRequests {
			wait := parseRetryAfter(body) + retryPadding
			s.logger.Warn().Dur("retry_after", wait).Msg("sink backpressure; retrying")
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		return &FatalError{Status: status, Body: string(body)}
	}
}

func (s *Sender) post(ctx context.Context, url string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// parseRetryAfter extracts the retry_after value (seconds) from a 429 body.
// Absent or unparseable values default to one second.
func parseRetryAfter(body []byte) time.Duration {
	var payload struct {
		RetryAfter *float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter != nil {
		return time.Duration(*payload.RetryAfter * float64(time.Second))
	}

	if seconds, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}

	return defaultRetryAfter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
