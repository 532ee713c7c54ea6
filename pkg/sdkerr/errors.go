// Package sdkerr defines the closed error taxonomy shared by the messaging
// and agent surfaces, together with the recovery guidance and retry loop that
// every transport in the SDK uses. No other package implements retries.
package sdkerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Kind identifies one member of the closed error set.
type Kind string

const (
	KindTransport           Kind = "transport"
	KindProtocol            Kind = "protocol"
	KindPermissionDenied    Kind = "permission_denied"
	KindHook                Kind = "hook"
	KindConfig              Kind = "config"
	KindIO                  Kind = "io"
	KindAPI                 Kind = "api_error"
	KindRateLimit           Kind = "rate_limit"
	KindTimeout             Kind = "timeout"
	KindConnection          Kind = "connection"
	KindAuthentication      Kind = "authentication"
	KindBadRequest          Kind = "bad_request"
	KindNotFound            Kind = "not_found"
	KindInternalServerError Kind = "internal_server_error"
	KindOverloaded          Kind = "overloaded"
	KindResponseValidation  Kind = "response_validation"
	KindOther               Kind = "other"
)

// RateLimitInfo carries the rate-limit headers surfaced by the service.
type RateLimitInfo struct {
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	ResetAt    time.Time
}

// Error is the single error type returned by public fallible operations.
type Error struct {
	Kind    Kind
	Message string

	// Status and RequestID are set for KindAPI and the status-derived kinds.
	Status    int
	RequestID string
	// ErrorType is the service-reported error type, when the body parsed.
	ErrorType string

	// RateLimit is set for KindRateLimit.
	RateLimit *RateLimitInfo

	// Duration is set for KindTimeout.
	Duration time.Duration

	// Backoff, when set, overrides the kind's default retry schedule.
	Backoff *Backoff

	// Err is the wrapped cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		// Cancellations arrive as timeouts without an elapsed duration;
		// render their message instead of "after 0s".
		if e.Duration > 0 {
			return fmt.Sprintf("request timeout after %s", e.Duration)
		}
	case KindAPI:
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
	case KindRateLimit:
		return "rate limit exceeded"
	}
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can compare against sentinel values.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && (other.Message == "" || other.Message == e.Message)
}

// As extracts an *Error from an arbitrary error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// New builds an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a kinded error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Transport builds a transport error (subprocess or network plumbing).
func Transport(format string, args ...any) *Error { return New(KindTransport, format, args...) }

// Protocol builds a protocol error (malformed frames, bad payloads).
func Protocol(format string, args ...any) *Error { return New(KindProtocol, format, args...) }

// PermissionDenied builds a permission error.
func PermissionDenied(format string, args ...any) *Error {
	return New(KindPermissionDenied, format, args...)
}

// Hook builds a hook-callback error.
func Hook(format string, args ...any) *Error { return New(KindHook, format, args...) }

// Config builds a configuration error.
func Config(format string, args ...any) *Error { return New(KindConfig, format, args...) }

// IO wraps an I/O error, preserving its kind for retry decisions.
func IO(err error) *Error {
	return &Error{Kind: KindIO, Message: fmt.Sprint(err), Err: err}
}

// Timeout builds a timeout error for the given elapsed duration.
func Timeout(d time.Duration) *Error { return &Error{Kind: KindTimeout, Duration: d} }

// Connection builds a network/DNS/TLS failure error.
func Connection(format string, args ...any) *Error { return New(KindConnection, format, args...) }

// BadRequest builds a validation or 400-class error.
func BadRequest(format string, args ...any) *Error { return New(KindBadRequest, format, args...) }

// NotFound builds a 404-class error.
func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

// ResponseValidation builds a structured-output parsing error.
func ResponseValidation(format string, args ...any) *Error {
	return New(KindResponseValidation, format, args...)
}

// Other builds an uncategorized error.
func Other(format string, args ...any) *Error { return New(KindOther, format, args...) }

type apiErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// FromResponse maps an HTTP status, body, and headers into the taxonomy.
// Non-2xx bodies are parsed as {"type":"error","error":{...}} when possible.
func FromResponse(status int, body []byte, headers http.Header) *Error {
	message := string(body)
	errType := ""
	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
		errType = parsed.Error.Type
	}
	requestID := headers.Get("request-id")
	if requestID == "" {
		requestID = headers.Get("x-request-id")
	}

	switch {
	case status == http.StatusBadRequest:
		return &Error{Kind: KindBadRequest, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindAuthentication, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	case status == http.StatusForbidden:
		return &Error{Kind: KindPermissionDenied, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &Error{Kind: KindTimeout, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Message: message, Status: status, ErrorType: errType, RequestID: requestID, RateLimit: rateLimitFromHeaders(headers)}
	case status == 529:
		return &Error{Kind: KindOverloaded, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	case status >= 500:
		return &Error{Kind: KindInternalServerError, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	default:
		return &Error{Kind: KindAPI, Message: message, Status: status, ErrorType: errType, RequestID: requestID}
	}
}

func rateLimitFromHeaders(headers http.Header) *RateLimitInfo {
	info := &RateLimitInfo{Limit: -1, Remaining: -1}
	if v := headers.Get("retry-after"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			info.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	if v := headers.Get("anthropic-ratelimit-requests-limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Limit = n
		}
	}
	if v := headers.Get("anthropic-ratelimit-requests-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Remaining = n
		}
	}
	if v := headers.Get("anthropic-ratelimit-requests-reset"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			info.ResetAt = t
		}
	}
	return info
}

// FromTransportError classifies low-level HTTP client failures.
func FromTransportError(err error, elapsed time.Duration) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindConnection, Message: err.Error(), Err: err}
	}
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Duration: elapsed, Err: err}
	}
	return &Error{Kind: KindConnection, Message: err.Error(), Err: err}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
