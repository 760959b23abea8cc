// Package failure defines the error taxonomy shared across the service and
// the mapping from failure categories to retryability and user-facing
// messages.
package failure

import (
	"errors"
	"fmt"
)

// Kind is a failure category.
type Kind int

const (
	Unknown Kind = iota
	Network
	RateLimited
	InvalidCredential
	NotFound
	Format
	StorageUnavailable
	StorageCapacity
	PermissionDenied
	PositionUnavailable
	Timeout
	Validation
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case RateLimited:
		return "rate_limited"
	case InvalidCredential:
		return "invalid_credential"
	case NotFound:
		return "not_found"
	case Format:
		return "format"
	case StorageUnavailable:
		return "storage_unavailable"
	case StorageCapacity:
		return "storage_capacity"
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

// Failure carries a category alongside the underlying error. The raw error
// stays available for diagnostic logging; only the fixed message for its
// kind ever reaches end users.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// New wraps err with a failure category.
func New(kind Kind, err error) error {
	return &Failure{Kind: kind, Err: err}
}

// Newf creates a categorized failure from a format string.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the category of err, Unknown if it carries none.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return Unknown
}

// Is reports whether err belongs to the given category.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether a failure is transient. Connectivity failures
// and rate limits may succeed on retry; everything else is permanent for
// the current input.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Network, RateLimited:
		return true
	default:
		return false
	}
}

// messages is the fixed category -> user-facing sentence table. It must
// stay total: every kind resolves to exactly one sentence.
var messages = map[Kind]string{
	Network:             "Network problem, check your connection and try again",
	RateLimited:         "Too many requests, try again shortly",
	InvalidCredential:   "Weather service rejected the configured API key",
	NotFound:            "City not found, check the spelling and try again",
	Format:              "Weather service returned unexpected data",
	StorageUnavailable:  "Local storage is unavailable, changes will not be saved",
	StorageCapacity:     "Local storage is full, remove a city and try again",
	PermissionDenied:    "Location access was denied",
	PositionUnavailable: "Current location could not be determined",
	Timeout:             "The request timed out, try again",
	Validation:          "That input is not valid",
	Unknown:             "Something went wrong, try again",
}

// Message returns the human-readable sentence for err's category. Every
// error maps to some sentence; unrecognized failures get the generic
// fallback.
func Message(err error) string {
	if msg, ok := messages[KindOf(err)]; ok {
		return msg
	}
	return messages[Unknown]
}
