package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// RetryConfig configures the retry behavior for inference calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for inference API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryableError reports whether an error is worth another attempt.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limits
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}

	// Network hiccups
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// generateWithRetry executes the model call with exponential backoff.
// Each attempt waits on the rate limiter. All failures come back as
// ErrUpstream so callers keep evidence pending and retry later.
func (s *Synthesizer) generateWithRetry(ctx context.Context, prompt string) (*ai.ModelResponse, error) {
	var lastErr error
	delay := s.cfg.Retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= s.cfg.Retry.MaxRetries; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: rate limit wait: %v", ErrUpstream, err)
			}
		}

		resp, err := s.generate(ctx, prompt)
		if err == nil {
			s.logger.Debug("inference call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) || attempt == s.cfg.Retry.MaxRetries {
			break
		}

		s.logger.Warn("inference call failed, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.cfg.Retry.MaxInterval {
			delay = s.cfg.Retry.MaxInterval
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}
