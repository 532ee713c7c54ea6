// Package transport implements the HTTP layer shared by all providers:
// connection pooling, authentication and default headers, a middleware
// chain, per-attempt timeouts, and transparent retries driven by the
// sdkerr recovery guidance.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cexll/claudesdk-go/pkg/config"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/telemetry"
)

// Request describes one API call. Body is retained so attempts can be
// replayed during retries.
type Request struct {
	Method string
	Path   string
	Body   []byte
	// Header holds per-request headers layered over the config defaults.
	Header http.Header
	// Stream requests a text/event-stream response; the body is handed to
	// the caller unread.
	Stream bool
}

// RawResponse is the fully-read result of a non-streaming call, with the
// metadata the with-raw-response surface exposes.
type RawResponse struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
	Elapsed   time.Duration
	Retries   int
}

// StreamResponse holds a live event-stream body. The caller owns Body and
// must close it.
type StreamResponse struct {
	Status    int
	Header    http.Header
	Body      io.ReadCloser
	RequestID string
	Retries   int
}

// HTTPTransport executes requests against one base URL.
type HTTPTransport struct {
	cfg        config.ClientConfig
	client     *http.Client
	middleware []Middleware
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithMiddleware appends middleware to the chain.
func WithMiddleware(m ...Middleware) Option {
	return func(t *HTTPTransport) { t.middleware = append(t.middleware, m...) }
}

// WithHTTPClient substitutes the underlying client, bypassing the pool
// config. Intended for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) { t.client = c }
}

// New builds a transport from cfg. A configured rate limit installs the
// token-bucket middleware ahead of any user middleware.
func New(cfg config.ClientConfig, opts ...Option) (*HTTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindConfig, err, "transport config rejected")
	}
	t := &HTTPTransport{cfg: cfg}
	if cfg.RateLimit != nil {
		t.middleware = append(t.middleware, RateLimit(*cfg.RateLimit))
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		client, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		t.client = client
	}
	return t, nil
}

// Config returns the transport's immutable configuration.
func (t *HTTPTransport) Config() config.ClientConfig { return t.cfg }

// Do executes req with retries, reading the whole body. Non-2xx statuses
// are returned as structured errors; the RawResponse is only non-nil on
// success.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (*RawResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "transport.do")
	start := time.Now()
	resp, retries, err := sdkerr.Do(ctx, t.cfg.MaxRetries, func(ctx context.Context) (*RawResponse, error) {
		return t.attempt(ctx, req)
	})
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	resp.Elapsed = time.Since(start)
	resp.Retries = retries
	return resp, nil
}

// DoStream executes req with retries until response headers arrive, then
// hands the unread body to the caller. Retries never happen once a 2xx
// body has started.
func (t *HTTPTransport) DoStream(ctx context.Context, req Request) (*StreamResponse, error) {
	req.Stream = true
	ctx, span := telemetry.StartSpan(ctx, "transport.do_stream")
	resp, retries, err := sdkerr.Do(ctx, t.cfg.MaxRetries, func(ctx context.Context) (*StreamResponse, error) {
		return t.attemptStream(ctx, req)
	})
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	resp.Retries = retries
	return resp, nil
}

func (t *HTTPTransport) attempt(ctx context.Context, req Request) (*RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	start := time.Now()
	httpResp, err := t.roundTrip(ctx, req)
	if err != nil {
		return nil, sdkerr.FromTransportError(err, time.Since(start))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, sdkerr.FromTransportError(err, time.Since(start))
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, sdkerr.FromResponse(httpResp.StatusCode, body, httpResp.Header)
	}
	return &RawResponse{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      body,
		RequestID: httpResp.Header.Get("request-id"),
	}, nil
}

func (t *HTTPTransport) attemptStream(ctx context.Context, req Request) (*StreamResponse, error) {
	// No per-attempt deadline: it would sever the body mid-stream. The
	// caller's context bounds the whole stream.
	start := time.Now()
	httpResp, err := t.roundTrip(ctx, req)
	if err != nil {
		return nil, sdkerr.FromTransportError(err, time.Since(start))
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		return nil, sdkerr.FromResponse(httpResp.StatusCode, body, httpResp.Header)
	}
	return &StreamResponse{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      httpResp.Body,
		RequestID: httpResp.Header.Get("request-id"),
	}, nil
}

func (t *HTTPTransport) roundTrip(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, m := range t.middleware {
		httpReq, err = m.ProcessRequest(ctx, httpReq)
		if err != nil {
			return nil, err
		}
	}
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	for i := len(t.middleware) - 1; i >= 0; i-- {
		httpResp, err = t.middleware[i].ProcessResponse(ctx, httpResp)
		if err != nil {
			return nil, err
		}
	}
	return httpResp, nil
}

func (t *HTTPTransport) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := strings.TrimSuffix(t.cfg.BaseURL, "/") + req.Path
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindConfig, err, "building request for %s", req.Path)
	}
	t.cfg.ApplyHeaders(httpReq)
	if len(req.Body) > 0 {
		httpReq.Header.Set("content-type", "application/json")
	}
	if req.Stream {
		httpReq.Header.Set("accept", "text/event-stream")
	} else {
		httpReq.Header.Set("accept", "application/json")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}
	return httpReq, nil
}
