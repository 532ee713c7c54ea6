// Package anthropic implements the first-party REST provider.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cexll/claudesdk-go/pkg/provider"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/telemetry"
	"github.com/cexll/claudesdk-go/pkg/transport"
	"github.com/cexll/claudesdk-go/pkg/types"
)

const messagesPath = "/v1/messages"

// Provider speaks the vendor REST API through the shared HTTP transport.
type Provider struct {
	transport *transport.HTTPTransport
}

var _ provider.Provider = (*Provider)(nil)

// New wraps an HTTP transport.
func New(t *transport.HTTPTransport) *Provider {
	return &Provider{transport: t}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "anthropic" }

// SupportsModel accepts any well-formed model id; the service itself is the
// authority on which models exist.
func (p *Provider) SupportsModel(model string) bool {
	return types.ValidateModelID(model) == nil
}

// Transport exposes the underlying HTTP transport for resource surfaces that
// share the provider's connection pool.
func (p *Provider) Transport() *transport.HTTPTransport { return p.transport }

// CreateMessage implements provider.Provider.
func (p *Provider) CreateMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "anthropic.create_message")
	msg, err := p.createMessage(ctx, req)
	telemetry.EndSpan(span, err)
	return msg, err
}

func (p *Provider) createMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "encoding message request")
	}
	resp, err := p.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   messagesPath,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	var msg types.Message
	if err := json.Unmarshal(resp.Body, &msg); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "decoding message response")
	}
	return &msg, nil
}

// StreamMessage implements provider.Provider.
func (p *Provider) StreamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	ctx, span := telemetry.StartSpan(ctx, "anthropic.stream_message")
	stream, err := p.streamMessage(ctx, req)
	telemetry.EndSpan(span, err)
	return stream, err
}

func (p *Provider) streamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	streamReq := *req
	streamReq.Stream = true
	body, err := json.Marshal(&streamReq)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "encoding message request")
	}
	resp, err := p.transport.DoStream(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   messagesPath,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return streaming.New(resp.Body), nil
}
