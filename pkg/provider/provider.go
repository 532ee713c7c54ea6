// Package provider defines the back-end contract shared by the first-party
// API, Bedrock, and Vertex clients, plus a router that federates several
// back-ends with priority fallback.
package provider

import (
	"context"

	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// Provider is one message back-end.
type Provider interface {
	// Name identifies the provider in errors and spans.
	Name() string
	// SupportsModel reports whether the provider recognizes the model id,
	// possibly after normalization.
	SupportsModel(model string) bool
	// CreateMessage executes a non-streaming request.
	CreateMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error)
	// StreamMessage executes a streaming request and returns the live
	// event stream. The caller owns the stream and must close it.
	StreamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error)
}
