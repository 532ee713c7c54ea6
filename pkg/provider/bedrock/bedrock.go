// Package bedrock implements the managed-cloud provider backed by the AWS
// Bedrock runtime. Requests are signed per region by the AWS SDK; model ids
// are normalized from short vendor names to Bedrock identifiers.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cexll/claudesdk-go/pkg/provider"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/telemetry"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// APIVersion is injected into every Bedrock request body.
const APIVersion = "bedrock-2023-05-31"

const contentTypeJSON = "application/json"

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client the
// provider needs. *bedrockruntime.Client satisfies it; tests pass a mock.
type RuntimeClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// Provider implements provider.Provider on the Bedrock runtime.
type Provider struct {
	runtime RuntimeClient
}

var _ provider.Provider = (*Provider)(nil)

// New wraps a Bedrock runtime client.
func New(runtime RuntimeClient) (*Provider, error) {
	if runtime == nil {
		return nil, sdkerr.Config("bedrock runtime client is required")
	}
	return &Provider{runtime: runtime}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "bedrock" }

// SupportsModel accepts Bedrock-format ids and short vendor names that
// NormalizeModelID can convert.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "anthropic.") || strings.Contains(model, "claude")
}

// NormalizeModelID converts short vendor names like
// "claude-3-5-sonnet-20241022" to Bedrock ids like
// "anthropic.claude-3-5-sonnet-20241022-v2:0". Ids already in Bedrock format
// pass through unchanged.
func NormalizeModelID(model string) string {
	switch {
	case strings.HasPrefix(model, "anthropic."):
		return model
	case strings.Contains(model, ":"):
		return "anthropic." + model
	case strings.Contains(model, "3-5-sonnet-20241022"):
		return fmt.Sprintf("anthropic.%s-v2:0", model)
	default:
		return fmt.Sprintf("anthropic.%s-v1:0", model)
	}
}

// CreateMessage implements provider.Provider.
func (p *Provider) CreateMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "bedrock.create_message")
	msg, err := p.createMessage(ctx, req)
	telemetry.EndSpan(span, err)
	return msg, err
}

func (p *Provider) createMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := rewriteBody(req)
	if err != nil {
		return nil, err
	}
	out, err := p.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(NormalizeModelID(req.Model)),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	var msg types.Message
	if err := json.Unmarshal(out.Body, &msg); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "decoding bedrock response")
	}
	if msg.Model == "" {
		msg.Model = req.Model
	}
	return &msg, nil
}

// StreamMessage implements provider.Provider. Bedrock's native event stream
// is re-framed as server-sent events so the shared parser consumes it.
func (p *Provider) StreamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	ctx, span := telemetry.StartSpan(ctx, "bedrock.stream_message")
	stream, err := p.streamMessage(ctx, req)
	telemetry.EndSpan(span, err)
	return stream, err
}

func (p *Provider) streamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := rewriteBody(req)
	if err != nil {
		return nil, err
	}
	out, err := p.runtime.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(NormalizeModelID(req.Model)),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return streaming.New(sseFromEventStream(out.GetStream())), nil
}

// rewriteBody serializes the request in the shape Bedrock expects: the model
// id moves to the URL, the stream flag is implied by the operation, and the
// anthropic_version field is injected.
func rewriteBody(req *types.MessageRequest) ([]byte, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "encoding bedrock request")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "encoding bedrock request")
	}
	delete(fields, "model")
	delete(fields, "stream")
	fields["anthropic_version"] = json.RawMessage(`"` + APIVersion + `"`)
	return json.Marshal(fields)
}

// eventStream is the subset of the AWS response stream the SSE adapter
// reads, satisfied by *bedrockruntime.InvokeModelWithResponseStreamEventStream.
type eventStream interface {
	Events() <-chan brtypes.ResponseStream
	Close() error
	Err() error
}

// sseFromEventStream converts Bedrock payload chunks into text/event-stream
// frames. Each chunk carries one JSON event whose "type" field becomes the
// SSE event name.
func sseFromEventStream(events eventStream) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		defer events.Close()
		for event := range events.Events() {
			chunk, ok := event.(*brtypes.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			var header struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(chunk.Value.Bytes, &header); err != nil {
				pw.CloseWithError(sdkerr.Protocol("malformed bedrock chunk: %v", err))
				return
			}
			frame := fmt.Sprintf("event: %s\ndata: %s\n\n", header.Type, chunk.Value.Bytes)
			if _, err := pw.Write([]byte(frame)); err != nil {
				return
			}
		}
		if err := events.Err(); err != nil {
			pw.CloseWithError(classifyError(err))
			return
		}
		pw.Close()
	}()
	return pr
}

// classifyError maps AWS SDK failures into the shared taxonomy.
func classifyError(err error) error {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return sdkerr.FromResponse(respErr.HTTPStatusCode(), nil, http.Header{})
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return &sdkerr.Error{Kind: sdkerr.KindRateLimit, Message: apiErr.ErrorMessage(), Err: err}
		case "AccessDeniedException":
			return &sdkerr.Error{Kind: sdkerr.KindPermissionDenied, Message: apiErr.ErrorMessage(), Err: err}
		case "ResourceNotFoundException":
			return &sdkerr.Error{Kind: sdkerr.KindNotFound, Message: apiErr.ErrorMessage(), Err: err}
		case "ValidationException":
			return &sdkerr.Error{Kind: sdkerr.KindBadRequest, Message: apiErr.ErrorMessage(), Err: err}
		case "ModelTimeoutException":
			return &sdkerr.Error{Kind: sdkerr.KindTimeout, Message: apiErr.ErrorMessage(), Err: err}
		case "ServiceUnavailableException", "ModelNotReadyException":
			return &sdkerr.Error{Kind: sdkerr.KindOverloaded, Message: apiErr.ErrorMessage(), Err: err}
		default:
			return &sdkerr.Error{Kind: sdkerr.KindAPI, Message: apiErr.ErrorMessage(), Err: err}
		}
	}
	return sdkerr.FromTransportError(err, 0)
}
