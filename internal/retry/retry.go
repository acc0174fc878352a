// Package retry wraps operations in bounded exponential-backoff retry.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ArunBabu98/sellist-server/internal/jsonutil"
)

// Config controls the retry policy for one operation.
type Config struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// InitialDelay is the sleep before the second attempt.
	InitialDelay time.Duration
	// Factor multiplies the delay after each failed attempt.
	Factor float64
	// Classify decides whether an error is worth another attempt.
	// Nil means IsTransient.
	Classify func(error) bool
	// Label names the operation in log events.
	Label string
}

// DefaultConfig matches the per-phase policy used by the pipeline.
func DefaultConfig(label string) Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 1500 * time.Millisecond,
		Factor:       2.0,
		Label:        label,
	}
}

// transientMarkers are message substrings indicating conditions where a
// retry against the same provider has a reasonable chance of succeeding.
var transientMarkers = []string{
	"429",
	"500",
	"502",
	"503",
	"504",
	"timeout",
	"timed out",
	"deadline exceeded",
	"overloaded",
	"rate limit",
	"quota",
	"econnreset",
	"socket",
	"connection",
	"unavailable",
}

// IsTransient classifies an error as retryable by inspecting its message for
// transient-condition markers. JSON parse failures from the sanitizer are
// also transient: model sampling variance means the same prompt may produce a
// well-formed response on the next attempt. Schema-level failures (a missing
// required field after a successful parse) are not retried; those indicate a
// prompt/schema mismatch that more attempts will not fix.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jsonutil.ErrInvalidJSON) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The caller's context is gone; retrying cannot help.
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Do runs op under the given retry policy and returns its result. On a
// retryable failure it sleeps the current delay, multiplies it by cfg.Factor
// and tries again, up to cfg.MaxAttempts total attempts. Non-retryable errors
// and the last error after exhaustion propagate unchanged.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	classify := cfg.Classify
	if classify == nil {
		classify = IsTransient
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().Str("op", cfg.Label).Int("attempt", attempt).Msg("succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if !classify(err) {
			log.Debug().Str("op", cfg.Label).Err(err).Msg("non-retryable error")
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		log.Warn().
			Str("op", cfg.Label).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("delay", delay).
			Err(err).
			Msg("transient error, backing off")

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * cfg.Factor)
	}

	log.Error().Str("op", cfg.Label).Int("attempts", cfg.MaxAttempts).Err(lastErr).Msg("retries exhausted")
	return zero, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
