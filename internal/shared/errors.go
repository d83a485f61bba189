package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Request errors, retried uniformly by the request client
	ErrTransport    = fmt.Errorf("transport error")
	ErrValidation   = fmt.Errorf("response rejected")
	ErrDecode       = fmt.Errorf("decode error")
	ErrClientClosed = fmt.Errorf("request client closed")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// Aggregation outcomes
	ErrNoMatches          = fmt.Errorf("no matches")
	ErrPartialBatch       = fmt.Errorf("partial batch failure")
	ErrSuggestionFailed   = fmt.Errorf("suggestion request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrSearchNotFound     = fmt.Errorf("search not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// RequestError describes a logical request that exhausted its attempts.
//
// Kind is one of [ErrTransport], [ErrValidation], [ErrDecode], [ErrTimeout] or [ErrClientClosed].
type RequestError struct {
	Kind     error
	Method   string
	URL      string
	Status   int
	Attempts int
	Err      error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %v after %d attempt(s)", e.Method, e.URL, e.Kind, e.Attempts)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause to [errors.Is] and [errors.As].
func (e *RequestError) Unwrap() []error {
	errs := make([]error, 0, 2)
	for _, err := range []error{e.Kind, e.Err} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// IsRequestKind reports whether err is a [RequestError] of the given kind.
func IsRequestKind(err, kind error) bool {
	var re *RequestError
	if !errors.As(err, &re) {
		return false
	}
	return errors.Is(re.Kind, kind)
}
