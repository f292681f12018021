package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
)

// Classifier decides whether an error should trigger another attempt.
type Classifier func(err error) bool

// State is the position of a Retrier in its lifecycle.
type State int

const (
	// StateReady means the next attempt may run immediately.
	StateReady State = iota
	// StateBackoff means the caller must wait before the next attempt.
	StateBackoff
	// StateSucceeded is terminal: the last attempt succeeded.
	StateSucceeded
	// StateExhausted is terminal: attempts ran out or the error was not retryable.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateBackoff:
		return "backoff"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Retrier is a bounded retry state machine with exponential backoff.
// It is not safe for concurrent use.
type Retrier struct {
	cfg      *config.RetryConfig
	classify Classifier

	attempt int
	state   State
	lastErr error
}

// New creates a Retrier. A nil cfg allows a single attempt.
func New(cfg *config.RetryConfig, classify Classifier) *Retrier {
	if classify == nil {
		classify = IsTransient
	}

	return &Retrier{cfg: cfg, classify: classify}
}

// Attempt returns the number of attempts recorded so far.
func (r *Retrier) Attempt() int {
	return r.attempt
}

// State returns the current state.
func (r *Retrier) State() State {
	return r.state
}

// Err returns the error of the last failed attempt.
func (r *Retrier) Err() error {
	return r.lastErr
}

// Record registers the outcome of an attempt and returns how long to wait before the next one.
// ok is false once the Retrier reached a terminal state.
func (r *Retrier) Record(err error) (wait time.Duration, ok bool) {
	if r.state == StateSucceeded || r.state == StateExhausted {
		return 0, false
	}

	r.attempt++

	if err == nil {
		r.state = StateSucceeded
		r.lastErr = nil
		return 0, false
	}

	r.lastErr = err

	if r.cfg == nil || !r.classify(err) || r.attempt >= r.cfg.MaxAttempts {
		r.state = StateExhausted
		return 0, false
	}

	wait = CalculateBackoff(r.attempt+1, r.cfg)
	if wait > 0 {
		r.state = StateBackoff
	} else {
		r.state = StateReady
	}

	return wait, true
}

// Wait blocks for d or until ctx is done.
func (r *Retrier) Wait(ctx context.Context, d time.Duration) error {
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.state = StateReady

	return nil
}

// Reset returns the Retrier to its initial state.
func (r *Retrier) Reset() {
	r.attempt = 0
	r.state = StateReady
	r.lastErr = nil
}

// Do executes fn with exponential backoff retry logic.
// It respects context cancellation and deadlines.
func Do(ctx context.Context, cfg *config.RetryConfig, operation string, classify Classifier, fn func() error) error {
	if cfg == nil {
		return fn()
	}

	r := New(cfg, classify)
	startTime := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", r.Attempt()+1, err)
		}

		err := fn()
		wait, again := r.Record(err)

		if r.State() == StateSucceeded {
			return nil
		}

		if !again {
			if r.Attempt() < cfg.MaxAttempts {
				return fmt.Errorf("non-retryable error on attempt %d/%d: %w", r.Attempt(), cfg.MaxAttempts, err)
			}

			return fmt.Errorf("all %d attempts failed after %v (last error: %w)",
				cfg.MaxAttempts, time.Since(startTime), err)
		}

		if err := r.Wait(ctx, wait); err != nil {
			return fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w",
				r.Attempt(), cfg.MaxAttempts, err)
		}

		metrics.RetryInc(operation)
	}
}

// CalculateBackoff computes the backoff duration for a given attempt with jitter.
func CalculateBackoff(attempt int, cfg *config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))

	if backoff > float64(cfg.MaxBackoff.Duration) {
		backoff = float64(cfg.MaxBackoff.Duration)
	}

	// ±25% jitter
	jitterRange := backoff * 0.25
	jitter := (rand.Float64() * 2 * jitterRange) - jitterRange //nolint:gosec
	backoff += jitter

	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// IsTransient checks if an error looks like a temporary network or server condition.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		return true
	}

	// Rate limiting
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "rate limit") {
		return true
	}

	if strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "bad gateway") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "gateway timeout") {
		return true
	}

	if strings.Contains(errStr, "connection pool") ||
		strings.Contains(errStr, "no available connection") {
		return true
	}

	return false
}
