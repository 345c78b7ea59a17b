package analyzer

import "errors"

var (
	// ErrInvalidInput signals a submitted URL without an http(s) scheme or host.
	ErrInvalidInput = errors.New("invalid url")
	// ErrUnreachable signals a network-level failure before any response arrived.
	ErrUnreachable = errors.New("site unreachable")
	// ErrURLNotFound signals an id or address with no stored URL.
	ErrURLNotFound = errors.New("url not found")
)

// UnreachableError describes a fetch that never received a response.
// It matches ErrUnreachable under errors.Is.
type UnreachableError struct {
	Address string
	Reason  string
	Err     error
}

func (e *UnreachableError) Error() string {
	return "fetch " + e.Address + ": " + e.Reason
}

// Unwrap exposes both the sentinel and the underlying transport error.
func (e *UnreachableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnreachable}
	}
	return []error{ErrUnreachable, e.Err}
}
