package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client is the narrow interface to the external translation service: one
// batch call, same-length ordered response.
type Client interface {
	Translate(ctx context.Context, credential string, texts []string) ([]string, error)
}

// APIError carries a classified translation service failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("translation api error (%d)", e.Status)
	}
	return fmt.Sprintf("translation api error (%d): %s", e.Status, e.Message)
}

// IsRateLimited reports whether the error is a quota/rate-limit signal,
// detected via status code or message heuristics.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(errString(err))
	return strings.Contains(msg, "too many requests") || strings.Contains(msg, "quota")
}

// IsUnavailable reports whether the error is a transient service outage.
// These are never retried; the caller falls back to untranslated text.
func IsUnavailable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusInternalServerError || apiErr.Status == http.StatusServiceUnavailable {
			return true
		}
	}
	msg := strings.ToLower(errString(err))
	return strings.Contains(msg, "overloaded") || strings.Contains(msg, "service unavailable")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Options parameterise the HTTP translation client.
type Options struct {
	BaseURL        string
	TargetLanguage string
	Timeout        time.Duration
	UserAgent      string
}

// HTTPClient talks to the translation endpoint over REST.
type HTTPClient struct {
	opts   Options
	http   *resty.Client
	logger zerolog.Logger
}

// NewHTTPClient constructs the translation client.
func NewHTTPClient(opts Options, logger zerolog.Logger) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetTimeout(timeout)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		client.SetHeader("User-Agent", ua)
	}

	return &HTTPClient{
		opts:   opts,
		http:   client,
		logger: logger.With().Str("component", "translate_client").Logger(),
	}
}

type translateItem struct {
	I    int    `json:"i"`
	Text string `json:"text"`
}

type translateRequest struct {
	TargetLanguage string          `json:"target_language"`
	Items          []translateItem `json:"items"`
}

type translateResponse struct {
	Translations []string `json:"translations"`
	Error        struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Translate sends one batch and expects a translations array of exactly the
// input length, in input order. Elements come back trimmed.
func (c *HTTPClient) Translate(ctx context.Context, credential string, texts []string) ([]string, error) {
	items := make([]translateItem, len(texts))
	for i, text := range texts {
		items[i] = translateItem{I: i, Text: text}
	}

	var parsed translateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-API-Key", credential).
		SetBody(translateRequest{TargetLanguage: c.opts.TargetLanguage, Items: items}).
		SetResult(&parsed).
		SetError(&parsed).
		Post("/translate")
	if err != nil {
		return nil, fmt.Errorf("translation request: %w", err)
	}

	if resp.IsError() {
		message := parsed.Error.Message
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		return nil, &APIError{Status: resp.StatusCode(), Message: message}
	}

	if len(parsed.Translations) != len(texts) {
		return nil, fmt.Errorf("translation count mismatch: sent %d, received %d", len(texts), len(parsed.Translations))
	}

	out := make([]string, len(parsed.Translations))
	for i, t := range parsed.Translations {
		out[i] = strings.TrimSpace(t)
	}
	return out, nil
}

var _ Client = (*HTTPClient)(nil)
