package tool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter is a ToolLifecycleListener that token-bucket limits
// invocations per tool name, so a misbehaving agent loop can't hammer
// an expensive or quota-limited tool (e.g. a paid search API).
type RateLimiter struct {
	BaseListener

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	newLimiter func() *rate.Limiter
}

// NewRateLimiter builds a limiter that allows rps requests per second
// per tool name, with burst as the initial token bucket size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		newLimiter: func() *rate.Limiter {
			return rate.NewLimiter(rate.Limit(rps), burst)
		},
	}
}

func (r *RateLimiter) limiterFor(name string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[name]; ok {
		return l
	}
	l := r.newLimiter()
	r.limiters[name] = l
	return l
}

// OnInvoke blocks until the tool's bucket has a token or ctx ends; in
// the latter case it returns an error, so a caller-supplied deadline
// bounds how long a starved tool waits.
func (r *RateLimiter) OnInvoke(ctx context.Context, tctx ToolInvocationContext) error {
	l := r.limiterFor(tctx.Tool.Name())
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("tool %q: rate limit wait: %w", tctx.Tool.Name(), err)
	}
	return nil
}
