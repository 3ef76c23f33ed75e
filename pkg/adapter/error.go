package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// InvokeError wraps provider errors with status metadata.
type InvokeError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *InvokeError) Error() string {
	if e == nil {
		return "invoke error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("invoke error (status=%d)", e.Status)
}

func (e *InvokeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error is safe to retry. The router
// never retries on its own; this is for callers deciding whether to
// re-issue the whole route.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var invokeErr *InvokeError
	if errors.As(err, &invokeErr) {
		if invokeErr.Temporary {
			return true
		}
		if invokeErr.Status == 429 || (invokeErr.Status >= 500 && invokeErr.Status <= 599) {
			return true
		}
	}
	return false
}
