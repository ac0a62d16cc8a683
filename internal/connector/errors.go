package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotConfigured     = errors.New("connector not configured")
	ErrConfiguration     = errors.New("connector configuration invalid")
	ErrRateLimited       = errors.New("venue rate limit exceeded")
	ErrTimeout           = errors.New("venue request timed out")
	ErrConnection        = errors.New("venue connection failed")
	ErrAuthentication    = errors.New("venue authentication failed")
	ErrInsufficientFunds = errors.New("insufficient funds or margin")
	ErrOrderRejected     = errors.New("order rejected by venue")
	ErrOrderNotFound     = errors.New("order not found at venue")
	ErrUnknown           = errors.New("unknown venue error")
)

// IsTransient reports errors that may succeed if the same request is made later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

// IsConfiguration reports errors no retry can fix without operator action.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAuthentication)
}

// wrap builds "<op> failed: <sentinel>: <cause>".
func wrap(op string, sentinel, err error) error {
	return fmt.Errorf("%s failed: %w: %w", op, sentinel, err)
}

// classifyTransport maps errors that did not come back as a venue API error.
func classifyTransport(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return wrap(op, ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s canceled: %w", op, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "no such host") {
		return wrap(op, ErrConnection, err)
	}
	if strings.Contains(msg, "Client.Timeout exceeded") || strings.Contains(msg, "i/o timeout") {
		return wrap(op, ErrTimeout, err)
	}
	return wrap(op, ErrUnknown, err)
}
