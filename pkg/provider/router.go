package provider

import (
	"context"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/telemetry"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// Router tries an ordered list of providers. Providers that do not support
// the requested model are skipped; a retriable failure moves on to the next
// provider; a non-retriable failure is returned as-is.
type Router struct {
	providers []Provider
}

// NewRouter builds a router over providers in priority order.
func NewRouter(providers ...Provider) *Router {
	return &Router{providers: providers}
}

// Name implements Provider.
func (r *Router) Name() string { return "router" }

// SupportsModel reports whether any member supports the model.
func (r *Router) SupportsModel(model string) bool {
	for _, p := range r.providers {
		if p.SupportsModel(model) {
			return true
		}
	}
	return false
}

// CreateMessage implements Provider with priority fallback.
func (r *Router) CreateMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "router.create_message")
	msg, err := route(ctx, r.providers, req, func(ctx context.Context, p Provider) (*types.Message, error) {
		return p.CreateMessage(ctx, req)
	})
	telemetry.EndSpan(span, err)
	return msg, err
}

// StreamMessage implements Provider with priority fallback.
func (r *Router) StreamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	ctx, span := telemetry.StartSpan(ctx, "router.stream_message")
	stream, err := route(ctx, r.providers, req, func(ctx context.Context, p Provider) (*streaming.Stream, error) {
		return p.StreamMessage(ctx, req)
	})
	telemetry.EndSpan(span, err)
	return stream, err
}

func route[T any](ctx context.Context, providers []Provider, req *types.MessageRequest, call func(context.Context, Provider) (T, error)) (T, error) {
	var zero T
	var lastErr error
	tried := false
	for _, p := range providers {
		if !p.SupportsModel(req.Model) {
			continue
		}
		tried = true
		result, err := call(ctx, p)
		if err == nil {
			return result, nil
		}
		if sdkErr, ok := sdkerr.As(err); ok && sdkErr.IsRetriable() {
			lastErr = err
			continue
		}
		return zero, err
	}
	if !tried {
		return zero, sdkerr.NotFound("no provider supports model %q", req.Model)
	}
	return zero, lastErr
}
