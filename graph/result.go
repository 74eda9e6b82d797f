package graph

// Result is a Success(v)|Failure(err) sum type. Exactly one of the two
// accessors is meaningful at a time; callers should check Ok before
// reading Value, mirroring spec.md §4.2 ("never both").
type Result[T any] struct {
	ok    bool
	value T
	err   error
}

// Success wraps a value in a successful Result.
func Success[T any](v T) Result[T] {
	return Result[T]{ok: true, value: v}
}

// Failure wraps an error in a failed Result.
func Failure[T any](err error) Result[T] {
	return Result[T]{ok: false, err: err}
}

// Ok reports whether this Result is a Success.
func (r Result[T]) Ok() bool { return r.ok }

// Value returns the success value. Only meaningful when Ok() is true.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure error. Only meaningful when Ok() is false.
func (r Result[T]) Err() error { return r.err }

// Unwrap returns (value, error) as a pair, for callers that prefer the
// conventional Go idiom over checking Ok() first.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.err
}
