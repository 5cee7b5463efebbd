// Package retry re-runs operations that fail with transient connection errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
)

// Policy defines the backoff applied between attempts.
type Policy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Operation is one attempt.
type Operation func(ctx context.Context) error

// Classifier decides whether an error is worth another attempt.
type Classifier func(err error) bool

// Do runs op until it succeeds, fails with a permanent error, or the policy is exhausted.
// A nil classifier uses IsTransient.
func Do(ctx context.Context, name string, policy Policy, classify Classifier, op Operation) error {
	if classify == nil {
		classify = IsTransient
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt)
			slogger.Debug(ctx, "Retrying after delay", slogger.Fields{
				"operation": name,
				"attempt":   attempt,
				"delay_ms":  delay.Milliseconds(),
			})

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Fields{
					"operation": name,
					"attempts":  attempt + 1,
				})
			}
			return nil
		}
		lastErr = err

		if !classify(err) {
			return err
		}
		slogger.Warn(ctx, "Operation failed, will retry", slogger.Fields{
			"operation":   name,
			"error":       err.Error(),
			"attempt":     attempt + 1,
			"max_retries": policy.MaxRetries,
		})
	}

	return fmt.Errorf("%s failed after %d retries: %w", name, policy.MaxRetries, lastErr)
}

// Delay returns the wait before the given attempt, starting at 1.
func (p Policy) Delay(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

var transientMessages = []string{ //nolint:gochecknoglobals // lookup table
	"connection refused",
	"connection reset",
	"no servers available",
	"database is locked",
	"too many connections",
	"try again",
}

// IsTransient reports whether err looks like a connection problem that may clear up.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
