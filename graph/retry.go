package graph

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy selects how RetryPolicy computes the delay between
// attempts. Grounded on the teacher's computeBackoff (graph/policy.go),
// generalized from a single hard-coded exponential curve into the three
// named strategies spec.md §4.8 calls for.
type BackoffStrategy int

const (
	BackoffFixed BackoffStrategy = iota
	BackoffLinear
	BackoffExponential
)

// RetryPolicy configures the retry supervisor (spec.md §4.8).
type RetryPolicy struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	Multiplier      float64
	MaxBackoff      time.Duration
	Strategy        BackoffStrategy
	// Recoverable overrides the default GraphError.Recoverable() check
	// when non-nil, letting callers narrow or widen the retryable set.
	Recoverable func(error) bool
}

// isRecoverable applies the policy's Recoverable override if present,
// else falls back to GraphError.Recoverable().
func (p RetryPolicy) isRecoverable(err error) bool {
	if p.Recoverable != nil {
		return p.Recoverable(err)
	}
	if gerr, ok := err.(*GraphError); ok {
		return gerr.Recoverable()
	}
	return false
}

// computeBackoff computes the delay before the given zero-based attempt
// number, capped by MaxBackoff, with up to InitialBackoff of jitter —
// ported near-verbatim from the teacher's policy.go.
func (p RetryPolicy) computeBackoff(attempt int, rng *rand.Rand) time.Duration {
	var base time.Duration
	switch p.Strategy {
	case BackoffFixed:
		base = p.InitialBackoff
	case BackoffLinear:
		base = p.InitialBackoff * time.Duration(attempt+1)
	case BackoffExponential:
		base = p.InitialBackoff * time.Duration(int64(1)<<uint(attempt))
	default:
		base = p.InitialBackoff
	}
	if p.MaxBackoff > 0 && base > p.MaxBackoff {
		base = p.MaxBackoff
	}
	if p.InitialBackoff <= 0 {
		return base
	}
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(p.InitialBackoff)))
	}
	total := base + jitter
	if p.MaxBackoff > 0 && total > p.MaxBackoff {
		total = p.MaxBackoff
	}
	return total
}

// RetryOutcomeKind tags the terminal disposition of executeWithRetry.
type RetryOutcomeKind int

const (
	RetrySucceeded RetryOutcomeKind = iota
	RetryExhausted
	RetryNotRetryable
)

// RetryOutcome is the result of executeWithRetry.
type RetryOutcome struct {
	Kind    RetryOutcomeKind
	Message Message
	Err     error
	Attempts int
}

// executeWithRetry wraps body with policy-driven retries over the
// recoverable error subset. body receives the zero-based attempt
// number so callers can thread it into a ToolInvocationContext for
// observability (spec.md §4.8).
func executeWithRetry(
	ctx context.Context,
	rng *rand.Rand,
	policy *RetryPolicy,
	body func(ctx context.Context, attempt int) (Message, error),
) RetryOutcome {
	if policy == nil {
		msg, err := body(ctx, 0)
		if err != nil {
			return RetryOutcome{Kind: RetryNotRetryable, Err: err, Attempts: 1}
		}
		return RetryOutcome{Kind: RetrySucceeded, Message: msg, Attempts: 1}
	}

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		msg, err := body(ctx, attempt)
		if err == nil {
			return RetryOutcome{Kind: RetrySucceeded, Message: msg, Attempts: attempt + 1}
		}
		lastErr = err
		if !policy.isRecoverable(err) {
			return RetryOutcome{Kind: RetryNotRetryable, Err: err, Attempts: attempt + 1}
		}
		if attempt == maxAttempts-1 {
			break
		}
		delay := policy.computeBackoff(attempt, rng)
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return RetryOutcome{Kind: RetryExhausted, Err: ctx.Err(), Attempts: attempt + 1}
			case <-timer.C:
			}
		}
	}
	return RetryOutcome{Kind: RetryExhausted, Err: lastErr, Attempts: maxAttempts}
}
