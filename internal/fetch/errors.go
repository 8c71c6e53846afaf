// internal/fetch/errors.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common fetch errors
var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrBlocked    = errors.New("bot challenge page returned")
	ErrEmptyBody  = errors.New("empty response body")
	ErrNoRenderer = errors.New("no rendering strategy configured")
)

// ErrorKind classifies why a fetch attempt failed
type ErrorKind string

const (
	KindNetwork          ErrorKind = "NETWORK"
	KindHTTPStatus       ErrorKind = "HTTP_STATUS"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindProxyError       ErrorKind = "PROXY_ERROR"
	KindProxyRateLimited ErrorKind = "PROXY_RATE_LIMITED"
)

// FetchError is the strategy-local failure of a single fetch attempt
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches another *FetchError by kind
func (e *FetchError) Is(target error) bool {
	if t, ok := target.(*FetchError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// GetStatusCode exposes the upstream status for retry classification
func (e *FetchError) GetStatusCode() int {
	return e.StatusCode
}

// Retryable reports whether the rendering proxy should be asked again:
// proxy-reported 5xx and rate limits only.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindProxyRateLimited:
		return true
	case KindProxyError:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// IsKind reports whether err is a *FetchError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

func newError(kind ErrorKind, rawURL string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: rawURL, Err: err}
}

func statusError(kind ErrorKind, rawURL string, status int, message string) *FetchError {
	return &FetchError{Kind: kind, URL: rawURL, StatusCode: status, Message: message}
}

// classifyTransportError maps an http.Client error to Timeout or Network
func classifyTransportError(rawURL string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, rawURL, err)
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return newError(KindTimeout, rawURL, err)
	}
	return newError(KindNetwork, rawURL, err)
}
