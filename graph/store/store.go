// Package store provides IdempotencyStore, VectorCache, and
// CheckpointStore implementations: in-memory for tests and
// single-process use, Redis-backed for shared/multi-process
// deployments, and SQL-backed checkpoint stores for durable resume
// after a process restart.
package store

import "errors"

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")
