package backend

import (
	"errors"
	"fmt"
)

// Kind classifies backend failures.
type Kind int

const (
	// KindTransport: the request never got an HTTP response.
	KindTransport Kind = iota + 1
	// KindHTTP: the backend answered with an error status code.
	KindHTTP
	// KindStatus: 2xx response whose envelope status is not "success".
	KindStatus
	// KindDecode: the response body could not be parsed.
	KindDecode
	// KindUnavailable: the circuit breaker is open.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP:
		return "http"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Kind       Kind
	Endpoint   string
	StatusCode int
	// Message is the backend's own message when it sent one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("backend %s: %s", e.Endpoint, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a backend error of kind k.
func IsKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}

// UserMessage is the backend's message, or a generic one.
func UserMessage(err error) string {
	var be *Error
	if errors.As(err, &be) {
		if be.Message != "" {
			return be.Message
		}
		if be.Kind == KindUnavailable || be.Kind == KindTransport {
			return "The shipment service is unavailable. Please try again."
		}
	}
	return "Something went wrong. Please try again."
}
