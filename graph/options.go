// Package graph provides the core graph execution engine.
package graph

import "time"

// Option configures a Runner. Functional options keep Runner
// construction self-documenting and extensible without breaking
// callers as new knobs are added.
type Option func(*runnerConfig) error

type runnerConfig struct {
	defaultRetryPolicy    *RetryPolicy
	retryEnabledByDefault bool
	checkpointPolicy      *CheckpointPolicy
	metrics               *Metrics
	messageValidator      func(Message) error
	defaultNodeTimeout    time.Duration
}

// WithDefaultRetryPolicy sets the policy used when a graph enables
// retry but supplies no RetryPolicy of its own.
func WithDefaultRetryPolicy(p RetryPolicy) Option {
	return func(cfg *runnerConfig) error {
		cfg.defaultRetryPolicy = &p
		return nil
	}
}

// WithRetryEnabledByDefault sets the runner-level retry default spec.md
// §4.8 falls back to when a graph leaves RetryEnabled unset and has no
// RetryPolicy.
func WithRetryEnabledByDefault(enabled bool) Option {
	return func(cfg *runnerConfig) error {
		cfg.retryEnabledByDefault = enabled
		return nil
	}
}

// WithCheckpointPolicy enables the optional persistence-oriented runner
// variant (spec.md §6).
func WithCheckpointPolicy(p CheckpointPolicy) Option {
	return func(cfg *runnerConfig) error {
		cfg.checkpointPolicy = &p
		return nil
	}
}

// WithMetrics attaches a Prometheus-backed metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(cfg *runnerConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithMessageValidator attaches an external pluggable schema validator
// run against every message entering Execute (spec.md §4.12 step 2's
// "history legal + schema"). Resume does not run it.
func WithMessageValidator(fn func(Message) error) Option {
	return func(cfg *runnerConfig) error {
		cfg.messageValidator = fn
		return nil
	}
}

// WithDefaultNodeTimeout wraps every node dispatch attempt in a
// TimeoutMiddleware with the given duration, whatever middleware the
// graph declares. A duration <= 0 leaves dispatch unbounded.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *runnerConfig) error {
		cfg.defaultNodeTimeout = d
		return nil
	}
}
