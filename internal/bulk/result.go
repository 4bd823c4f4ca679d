package bulk

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of applying the operation to one item.
type Result[R any] struct {
	// Index is the item's position in the input.
	Index int

	// Success reports whether the operation returned without error.
	Success bool

	// Value is the operation's return value. Only meaningful when Success is true.
	Value R

	// Err describes the failure. Non-nil exactly when Success is false.
	Err *ErrorInfo

	// Duration is how long the operation took for this item.
	Duration time.Duration
}

// ErrorInfo describes a failed item. Message is never empty.
type ErrorInfo struct {
	Message  string
	Cause    error
	Panicked bool
}

// Error implements the error interface.
func (e *ErrorInfo) Error() string {
	return e.Message
}

// Unwrap returns the error the operation failed with, if any.
func (e *ErrorInfo) Unwrap() error {
	return e.Cause
}

// newErrorInfo normalizes an operation error.
func newErrorInfo(err error) *ErrorInfo {
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("operation failed (%T)", err)
	}
	return &ErrorInfo{Message: msg, Cause: err}
}

// panicInfo normalizes a recovered panic value. Non-error values are rendered
// with fmt.Sprint.
func panicInfo(v any) *ErrorInfo {
	msg := fmt.Sprint(v)
	if msg == "" {
		msg = "operation panicked"
	}

	info := &ErrorInfo{Message: msg, Panicked: true}
	if err, ok := v.(error); ok {
		info.Cause = err
	}
	return info
}

// invoke runs op on a single item and always returns a settled Result.
func invoke[T, R any](ctx context.Context, op Operation[T, R], item T, index int) (res Result[R]) {
	start := time.Now()
	res.Index = index

	defer func() {
		if v := recover(); v != nil {
			res = Result[R]{
				Index:    index,
				Err:      panicInfo(v),
				Duration: time.Since(start),
			}
		}
	}()

	value, err := op(ctx, item)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = newErrorInfo(err)
		return res
	}

	res.Success = true
	res.Value = value
	return res
}
