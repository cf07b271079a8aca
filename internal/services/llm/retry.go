package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/common"
	"google.golang.org/genai"
)

// RetryPolicy defines how transient upstream failures are retried.
// Embedding and generation calls share one policy.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// InitialBackoff is the base wait before a retry
	InitialBackoff time.Duration

	// MaxBackoff caps every wait
	MaxBackoff time.Duration

	// BackoffMultiplier is applied per attempt to rate-limit backoff
	BackoffMultiplier float64

	// AttemptTimeout bounds a single attempt; 0 means only the caller's context applies
	AttemptTimeout time.Duration
}

// Default retry constants
const (
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 2 * time.Second
	DefaultMaxBackoff        = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// NewRetryPolicy builds a policy from configuration, falling back to defaults for unset fields
func NewRetryPolicy(config *common.RetryConfig, attemptTimeout time.Duration) *RetryPolicy {
	policy := &RetryPolicy{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		AttemptTimeout:    attemptTimeout,
	}
	if config == nil {
		return policy
	}
	if config.MaxRetries >= 0 {
		policy.MaxRetries = config.MaxRetries
	}
	policy.InitialBackoff = common.ParseDurationOr(config.InitialBackoff, DefaultInitialBackoff)
	policy.MaxBackoff = common.ParseDurationOr(config.MaxBackoff, DefaultMaxBackoff)
	if config.BackoffMultiplier >= 1 {
		policy.BackoffMultiplier = config.BackoffMultiplier
	}
	return policy
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) && geminiErr.Code == 429 {
		return true
	}
	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) && claudeErr.StatusCode == 429 {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota")
}

// transientPatterns are matched against errors that carry no typed status
var transientPatterns = []string{
	"UNAVAILABLE",
	"DEADLINE_EXCEEDED",
	"overloaded",
	"connection reset",
	"connection refused",
	"unexpected EOF",
}

// IsTransientError reports whether a failed call is worth retrying:
// rate limits, 5xx responses, network timeouts and per-attempt deadlines.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if IsRateLimitError(err) {
		return true
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return isTransientStatus(geminiErr.Code)
	}
	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) {
		return isTransientStatus(claudeErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func isTransientStatus(code int) bool {
	// 529 is Anthropic's overloaded status
	return code == 408 || code == 429 || code >= 500
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from an error.
// Returns 0 if no delay is found in the error message.
//
// Example error message:
// "Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the rate-limit backoff for a given attempt.
// If apiDelay > 0 (from ExtractRetryDelay), it's used as the base.
// Otherwise, InitialBackoff is used.
// The result is capped at MaxBackoff.
func (p *RetryPolicy) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := p.InitialBackoff
	if apiDelay > 0 {
		// Use API-provided delay plus small buffer
		base = apiDelay + time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= p.BackoffMultiplier
	}

	return p.capped(time.Duration(float64(base) * multiplier))
}

// backoffFor returns the wait before retrying after err on the given attempt
func (p *RetryPolicy) backoffFor(attempt int, err error) time.Duration {
	if IsRateLimitError(err) {
		return p.CalculateBackoff(attempt, ExtractRetryDelay(err))
	}
	// Other transient failures back off linearly
	return p.capped(time.Duration(attempt+1) * p.InitialBackoff)
}

func (p *RetryPolicy) capped(d time.Duration) time.Duration {
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Retry runs fn until it succeeds, fails permanently, exhausts the policy or ctx is done.
// Each attempt gets its own AttemptTimeout-bounded context.
func Retry[T any](ctx context.Context, policy *RetryPolicy, logger arbor.ILogger, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, err := runAttempt(ctx, policy.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// The caller gave up; the attempt error is only a symptom
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		if !IsTransientError(err) {
			return zero, fmt.Errorf("%s failed: %w", operation, err)
		}

		if attempt == policy.MaxRetries {
			break
		}

		backoff := policy.backoffFor(attempt, err)
		logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Int("max_retries", policy.MaxRetries).
			Dur("backoff", backoff).
			Err(err).
			Msg("Transient upstream error, retrying")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, fmt.Errorf("%s failed after %d retries: %w", operation, policy.MaxRetries, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
