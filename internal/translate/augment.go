package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"news-webhook-relay/internal/record"
)

// RetryPerCredential multiplies the credential count into the total attempt
// cap for one batch call. Heuristic; overridable through configuration.
const RetryPerCredential = 3

// AugmenterOptions tune the batch translation stage.
type AugmenterOptions struct {
	BatchSize       int
	BatchDelay      time.Duration
	RetryMultiplier int
}

// Augmenter runs the optional translation pass over a batch of records.
// Translation only changes displayed text: any failure makes the whole stage
// report "no translation available" and the pipeline keeps the originals.
type Augmenter struct {
	client Client
	pool   *CredentialPool
	opts   AugmenterOptions
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewAugmenter constructs the translation stage.
func NewAugmenter(client Client, pool *CredentialPool, opts AugmenterOptions, logger zerolog.Logger) *Augmenter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.RetryMultiplier <= 0 {
		opts.RetryMultiplier = RetryPerCredential
	}
	return &Augmenter{
		client: client,
		pool:   pool,
		opts:   opts,
		logger: logger.With().Str("component", "translate_augmenter").Logger(),
		sleep:  sleepContext,
	}
}

// Augment returns copies of the records with Summary and FullTweet replaced
// by translations. ok is false when no translation is available, in which
// case the caller must use the originals; items are never dropped.
func (a *Augmenter) Augment(ctx context.Context, records []record.RawRecord) (out []record.RawRecord, ok bool) {
	if len(records) == 0 {
		return records, true
	}

	summaries := make([]string, len(records))
	for i, r := range records {
		summaries[i] = r.Summary
	}

	translatedSummaries, err := a.translateAll(ctx, summaries)
	if err != nil {
		a.logger.Warn().Err(err).Msg("summary translation failed; delivering original text")
		return nil, false
	}

	// Full tweets are batched separately; empty ones are skipped, not sent.
	tweetIdx := make([]int, 0, len(records))
	tweets := make([]string, 0, len(records))
	for i, r := range records {
		if r.FullTweet != "" {
			tweetIdx = append(tweetIdx, i)
			tweets = append(tweets, r.FullTweet)
		}
	}

	translatedTweets, err := a.translateAll(ctx, tweets)
	if err != nil {
		a.logger.Warn().Err(err).Msg("full-tweet translation failed; delivering original text")
		return nil, false
	}

	out = make([]record.RawRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].Summary = translatedSummaries[i]
	}
	for j, idx := range tweetIdx {
		out[idx].FullTweet = translatedTweets[j]
	}
	return out, true
}

// translateAll splits texts into fixed-size batches and translates each with
// rotated credentials, pausing between batches to stay under rate limits.
func (a *Augmenter) translateAll(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, 0, len(texts))

	for start := 0; start < len(texts); start += a.opts.BatchSize {
		end := start + a.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if start > 0 && a.opts.BatchDelay > 0 {
			if err := a.sleep(ctx, a.opts.BatchDelay); err != nil {
				return nil, err
			}
		}

		translated, err := a.translateBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, translated...)
	}

	return out, nil
}

// translateBatch performs one batch call. Rate-limit errors rotate to a
// fresh credential up to credentialCount times the retry multiplier;
// service-unavailable and all other errors propagate immediately.
func (a *Augmenter) translateBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	maxAttempts := a.pool.Size() * a.opts.RetryMultiplier
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		credential := a.pool.Acquire()

		translated, err := a.client.Translate(ctx, credential, texts)
		if err == nil {
			return translated, nil
		}

		if IsRateLimited(err) {
			a.pool.MarkLimited(credential)
			lastErr = err
			continue
		}
		if IsUnavailable(err) {
			return nil, fmt.Errorf("translation service unavailable: %w", err)
		}
		return nil, err
	}

	return nil, fmt.Errorf("translation rate-limit retries exhausted after %d attempts: %w", maxAttempts, lastErr)
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
