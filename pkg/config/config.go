// Package config holds the immutable client configuration: credentials,
// endpoint settings, timeouts, connection pool shape, and rate limiting.
// A ClientConfig is assembled once at client build time and never mutated.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the first-party endpoint.
	DefaultBaseURL = "https://api.anthropic.com"
	// DefaultAPIVersion is sent as the anthropic-version header.
	DefaultAPIVersion = "2023-06-01"
	// DefaultTimeout applies per attempt, not cumulatively across retries.
	DefaultTimeout = 600 * time.Second
	// DefaultMaxRetries caps transport-level retries.
	DefaultMaxRetries = 2
)

// PoolConfig shapes the shared HTTP connection pool.
type PoolConfig struct {
	MaxIdlePerHost int
	IdleTimeout    time.Duration
	TCPKeepalive   time.Duration
	// HTTP2 is on unless explicitly disabled.
	DisableHTTP2 bool
}

func defaultPool() PoolConfig {
	return PoolConfig{
		MaxIdlePerHost: 10,
		IdleTimeout:    90 * time.Second,
		TCPKeepalive:   60 * time.Second,
	}
}

// RateLimitConfig enables the client-side token bucket when RequestsPerSecond
// is set. Zero or negative values are coerced to 1 request per second.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ClientConfig carries everything the transport and providers need.
type ClientConfig struct {
	APIKey     Secret
	AuthToken  Secret
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	MaxRetries int
	// DefaultHeaders are applied to every request. Validated at build time.
	DefaultHeaders map[string]string
	Proxy          string
	Pool           PoolConfig
	RateLimit      *RateLimitConfig
}

// New returns a config populated with defaults.
func New() ClientConfig {
	return ClientConfig{
		BaseURL:    DefaultBaseURL,
		APIVersion: DefaultAPIVersion,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		Pool:       defaultPool(),
	}
}

// WithAPIKey returns a copy carrying the API key credential.
func (c ClientConfig) WithAPIKey(key string) ClientConfig {
	c.APIKey = NewSecret(key)
	return c
}

// WithAuthToken returns a copy carrying a bearer token credential.
func (c ClientConfig) WithAuthToken(token string) ClientConfig {
	c.AuthToken = NewSecret(token)
	return c
}

// WithHeader returns a copy with an additional default header.
func (c ClientConfig) WithHeader(name, value string) ClientConfig {
	headers := make(map[string]string, len(c.DefaultHeaders)+1)
	for k, v := range c.DefaultHeaders {
		headers[k] = v
	}
	headers[name] = value
	c.DefaultHeaders = headers
	return c
}

// FromEnv reads configuration from the ANTHROPIC_* environment variables.
// Unset variables leave defaults in place.
func FromEnv() (ClientConfig, error) {
	c := New()
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.APIKey = NewSecret(v)
	}
	if v := os.Getenv("ANTHROPIC_AUTH_TOKEN"); v != "" {
		c.AuthToken = NewSecret(v)
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_VERSION"); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv("ANTHROPIC_TIMEOUT"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return c, fmt.Errorf("config: invalid ANTHROPIC_TIMEOUT %q", v)
		}
		c.Timeout = time.Duration(secs) * time.Second
	}
	if v := os.Getenv("ANTHROPIC_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, fmt.Errorf("config: invalid ANTHROPIC_MAX_RETRIES %q", v)
		}
		c.MaxRetries = n
	}
	if v := os.Getenv("ANTHROPIC_PROXY"); v != "" {
		c.Proxy = v
	}
	return c, nil
}

// Merge overlays other onto c: non-default fields of other win.
func (c ClientConfig) Merge(other ClientConfig) ClientConfig {
	out := c
	if other.APIKey.IsSet() {
		out.APIKey = other.APIKey
	}
	if other.AuthToken.IsSet() {
		out.AuthToken = other.AuthToken
	}
	if other.BaseURL != "" && other.BaseURL != DefaultBaseURL {
		out.BaseURL = other.BaseURL
	}
	if other.APIVersion != "" && other.APIVersion != DefaultAPIVersion {
		out.APIVersion = other.APIVersion
	}
	if other.Timeout > 0 && other.Timeout != DefaultTimeout {
		out.Timeout = other.Timeout
	}
	if other.MaxRetries != DefaultMaxRetries {
		out.MaxRetries = other.MaxRetries
	}
	if other.Proxy != "" {
		out.Proxy = other.Proxy
	}
	if other.RateLimit != nil {
		out.RateLimit = other.RateLimit
	}
	if len(other.DefaultHeaders) > 0 {
		headers := make(map[string]string, len(c.DefaultHeaders)+len(other.DefaultHeaders))
		for k, v := range c.DefaultHeaders {
			headers[k] = v
		}
		for k, v := range other.DefaultHeaders {
			headers[k] = v
		}
		out.DefaultHeaders = headers
	}
	return out
}

// Validate checks the pieces that can be checked before any request is sent.
// Header names and values must parse as HTTP tokens.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("config: base URL is empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max retries must be >= 0")
	}
	for name, value := range c.DefaultHeaders {
		if !validHeaderName(name) {
			return fmt.Errorf("config: invalid header name %q", name)
		}
		if !validHeaderValue(value) {
			return fmt.Errorf("config: invalid value for header %q", name)
		}
	}
	return nil
}

// AuthHeader returns the authentication header pair: x-api-key when the API
// key is set, otherwise a bearer Authorization header. ok is false when no
// credential is configured.
func (c ClientConfig) AuthHeader() (name, value string, ok bool) {
	if c.APIKey.IsSet() {
		return "x-api-key", c.APIKey.Value(), true
	}
	if c.AuthToken.IsSet() {
		return "Authorization", "Bearer " + c.AuthToken.Value(), true
	}
	return "", "", false
}

func validHeaderName(name string) bool {
	return isToken(name)
}

func isToken(s string) bool {
	for _, r := range s {
		if r <= ' ' || r >= 0x7f {
			return false
		}
		switch r {
		case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}':
			return false
		}
	}
	return s != ""
}

func validHeaderValue(value string) bool {
	for i := 0; i < len(value); i++ {
		b := value[i]
		if b == '\r' || b == '\n' || (b < ' ' && b != '\t') {
			return false
		}
	}
	return true
}

// ApplyHeaders sets default headers plus authentication onto req.
func (c ClientConfig) ApplyHeaders(req *http.Request) {
	for k, v := range c.DefaultHeaders {
		req.Header.Set(k, v)
	}
	if c.APIVersion != "" {
		req.Header.Set("anthropic-version", c.APIVersion)
	}
	if name, value, ok := c.AuthHeader(); ok {
		req.Header.Set(name, value)
	}
}
