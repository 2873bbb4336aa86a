package domain

// Result is the outcome of a tool or delegate call: a value or a reason.
type Result[T any] struct {
	value  T
	reason string
	ok     bool
}

func Success[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

func Failure[T any](reason string) Result[T] {
	if reason == "" {
		reason = "unknown reason"
	}
	return Result[T]{reason: reason}
}

func (r Result[T]) Ok() bool { return r.ok }

// Value returns the success value, or the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Reason returns the failure reason, or "" on success.
func (r Result[T]) Reason() string { return r.reason }

func (r Result[T]) String() string {
	if r.ok {
		return "Success"
	}
	return "Failure: " + r.reason
}
