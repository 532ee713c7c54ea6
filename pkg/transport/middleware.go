package transport

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/cexll/claudesdk-go/pkg/config"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/telemetry"
)

// Middleware observes or rewrites requests on the way out and responses on
// the way back. Request processing runs in registration order, response
// processing in reverse.
type Middleware interface {
	ProcessRequest(ctx context.Context, req *http.Request) (*http.Request, error)
	ProcessResponse(ctx context.Context, resp *http.Response) (*http.Response, error)
}

type rateLimitMiddleware struct {
	limiter *rate.Limiter
}

// RateLimit returns a token-bucket middleware. Zero or negative
// requests-per-second is coerced to 1; burst is at least 1.
func RateLimit(cfg config.RateLimitConfig) Middleware {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &rateLimitMiddleware{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (m *rateLimitMiddleware) ProcessRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindTransport, err, "rate limiter wait aborted")
	}
	return req, nil
}

func (m *rateLimitMiddleware) ProcessResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	return resp, nil
}

type tracingMiddleware struct {
	logger *slog.Logger
}

// Tracing returns a middleware that debug-logs each exchange and annotates
// the active span. A nil logger uses slog.Default.
func Tracing(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &tracingMiddleware{logger: logger}
}

func (m *tracingMiddleware) ProcessRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	m.logger.DebugContext(ctx, "http request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(telemetry.SanitizeAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.URL.Path),
	)...)
	return req, nil
}

func (m *tracingMiddleware) ProcessResponse(ctx context.Context, resp *http.Response) (*http.Response, error) {
	m.logger.DebugContext(ctx, "http response",
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", resp.Header.Get("request-id")),
	)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}
