package sdkerr

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"
)

// BackoffKind selects the delay formula.
type BackoffKind int

const (
	BackoffNone BackoffKind = iota
	BackoffLinear
	BackoffExponential
)

// Backoff describes how long to wait between retry attempts.
type Backoff struct {
	Kind BackoffKind
	Base time.Duration
	Max  time.Duration
}

// Delay computes the wait before retrying after the given 1-indexed attempt.
// Linear: base*n. Exponential: min(base*2^(n-1), max), saturating.
func (b Backoff) Delay(attempt int) (time.Duration, bool) {
	if attempt < 1 {
		attempt = 1
	}
	switch b.Kind {
	case BackoffLinear:
		return b.Base * time.Duration(attempt), true
	case BackoffExponential:
		d := b.Base
		for i := 1; i < attempt; i++ {
			if d > b.Max/2 {
				return b.Max, true
			}
			d *= 2
		}
		if d > b.Max {
			d = b.Max
		}
		return d, true
	default:
		return 0, false
	}
}

// Linear builds a linear backoff from a base delay.
func Linear(base time.Duration) Backoff { return Backoff{Kind: BackoffLinear, Base: base} }

// Exponential builds a capped exponential backoff.
func Exponential(base, max time.Duration) Backoff {
	return Backoff{Kind: BackoffExponential, Base: base, Max: max}
}

// Recovery answers the four questions every SDK error must answer. *Error is
// the only implementation; the interface exists so callers can consume
// guidance without importing the concrete type's fields.
type Recovery interface {
	IsRetriable() bool
	SuggestedAction() string
	MaxRetries() (int, bool)
	BackoffStrategy() Backoff
}

var _ Recovery = (*Error)(nil)

// IsRetriable reports whether the operation that produced this error should
// be attempted again.
func (e *Error) IsRetriable() bool {
	switch e.Kind {
	case KindTransport, KindRateLimit, KindOverloaded:
		return true
	case KindIO:
		return isInterrupted(e.Err)
	default:
		return false
	}
}

// MaxRetries returns the default attempt cap, or false when the error should
// not be retried.
func (e *Error) MaxRetries() (int, bool) {
	switch e.Kind {
	case KindTransport:
		return 5, true
	case KindRateLimit, KindOverloaded:
		return 5, true
	case KindIO:
		if isInterrupted(e.Err) {
			return 3, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// BackoffStrategy returns the delay schedule to use between attempts. An
// explicit Backoff on the error overrides the kind's default.
// Rate-limit errors carrying retry-after take precedence over the computed
// schedule; RetryDelay resolves that precedence.
func (e *Error) BackoffStrategy() Backoff {
	if e.Backoff != nil {
		return *e.Backoff
	}
	switch e.Kind {
	case KindTransport:
		return Exponential(500*time.Millisecond, 60*time.Second)
	case KindRateLimit, KindOverloaded:
		return Exponential(time.Second, 60*time.Second)
	case KindIO:
		if isInterrupted(e.Err) {
			return Linear(time.Second)
		}
		return Backoff{}
	default:
		return Backoff{}
	}
}

// RetryDelay resolves the wait before the next attempt, honoring retry-after
// when the service provided one.
func (e *Error) RetryDelay(attempt int) (time.Duration, bool) {
	if e.Kind == KindRateLimit && e.RateLimit != nil && e.RateLimit.RetryAfter > 0 {
		return e.RateLimit.RetryAfter, true
	}
	return e.BackoffStrategy().Delay(attempt)
}

// SuggestedAction returns a user-facing remediation hint. Never a stack trace.
func (e *Error) SuggestedAction() string {
	switch e.Kind {
	case KindTransport:
		msg := strings.ToLower(e.Message)
		switch {
		case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
			return "Request timed out. Session will auto-reconnect. Try again with fewer tokens or a simpler query."
		case strings.Contains(msg, "closed") || strings.Contains(msg, "disconnect"):
			return "Connection lost. Session will auto-reconnect on next query. Check subprocess health if reconnection fails."
		default:
			return "Transport error detected. Session will auto-reconnect. Check process logs for details."
		}
	case KindProtocol:
		if strings.Contains(e.Message, "max_tokens") {
			return "Query exceeds the max_tokens limit. Reduce max_tokens or simplify the query."
		}
		return "Protocol violation detected. Review the request against the API documentation."
	case KindPermissionDenied:
		if strings.Contains(strings.ToLower(e.Message), "edit") {
			return "Edit permission denied. Set the permission mode to AcceptEdits or BypassPermissions."
		}
		return "Permission denied. Check session configuration and permission settings."
	case KindHook:
		if strings.Contains(strings.ToLower(e.Message), "timeout") {
			return "Hook callback timed out. Optimize the hook logic or remove it."
		}
		return "Hook callback failed. Check the hook implementation for errors."
	case KindConfig:
		return "Configuration error. Fix the configuration and create a new client."
	case KindIO:
		switch {
		case errors.Is(e.Err, fs.ErrNotExist):
			return "File not found. Check that the path exists."
		case errors.Is(e.Err, fs.ErrPermission):
			return "File permission denied. Check file permissions."
		case isInterrupted(e.Err):
			return "I/O operation interrupted. Will retry automatically."
		default:
			return "I/O error occurred. Check file system health and disk space."
		}
	case KindRateLimit:
		return "Rate limit exceeded. Wait for the indicated retry-after or reduce request volume."
	case KindTimeout:
		return "Request timed out. Retry with a longer timeout, fewer tokens, or a simpler query."
	case KindConnection:
		return "Network error. Check connectivity, proxy, and base URL."
	case KindAuthentication:
		return "Authentication failed. Check your API key or auth token."
	case KindBadRequest:
		return "The request was rejected. Fix the named field and retry."
	case KindNotFound:
		return "Resource not found. Check the identifier and endpoint."
	case KindInternalServerError:
		return "The service reported an internal error. Retry later."
	case KindOverloaded:
		return "The service is overloaded. Retry after a short delay."
	case KindResponseValidation:
		return "The response did not match the expected shape. Check the model output format."
	default:
		return "Unexpected error. Check the error message and logs for details."
	}
}

func isInterrupted(err error) bool {
	if err == nil {
		return false
	}
	// os.SyscallError wraps EINTR on unix; fall back to the message for
	// platform-independent tests.
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return strings.Contains(strings.ToLower(sysErr.Error()), "interrupted")
	}
	return strings.Contains(strings.ToLower(err.Error()), "interrupted")
}
