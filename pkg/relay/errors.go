package relay

import (
	"errors"
	"fmt"
)

// FailureReason classifies an outbound send failure.
type FailureReason string

const (
	ReasonRateLimited FailureReason = "rate_limited"
	ReasonNetwork     FailureReason = "network_error"
	ReasonRejected    FailureReason = "rejected_permanently"
)

// SendError is returned by channel Send implementations so the engine can
// decide between retry and drop.
type SendError struct {
	Reason FailureReason
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed (%s): %v", e.Reason, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// NewSendError wraps err with a failure classification.
func NewSendError(reason FailureReason, err error) *SendError {
	return &SendError{Reason: reason, Err: err}
}

// IsTransient reports whether a send failure is worth retrying. Errors that
// carry no classification are treated as network-level and retried.
func IsTransient(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Reason != ReasonRejected
	}
	return true
}
