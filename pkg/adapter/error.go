package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AdapterError wraps provider errors with status metadata.
type AdapterError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("adapter error (status=%d)", e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether an error is safe to retry.
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
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		if adapterErr.Temporary {
			return true
		}
		return transientStatus(adapterErr.Status)
	}
	return false
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// Failure types for errors raised before or around the upstream call.
const (
	FailureAuth      = "missing_credentials"
	FailureRequest   = "invalid_request"
	FailureTransport = "transport_error"
	FailureUpstream  = "upstream_error"
	FailureCanceled  = "canceled"
)

// statusFunc extracts an HTTP status from an SDK error.
type statusFunc func(error) (int, bool)

// failureFromError classifies a transport or SDK error. Status 0 means the
// request never produced an HTTP response.
func failureFromError(err error, status statusFunc) *Result {
	if status != nil {
		if code, ok := status(err); ok {
			return failed(code, FailureUpstream, err.Error())
		}
	}
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) && adapterErr.Status != 0 {
		return failed(adapterErr.Status, FailureUpstream, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return failed(0, FailureCanceled, err.Error())
	}
	res := failed(0, FailureTransport, err.Error())
	res.Failure.Temporary = IsTransient(err)
	return res
}
