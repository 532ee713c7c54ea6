// Package vertex implements the managed-cloud provider backed by Google
// Vertex AI. Endpoints are per project and region; the model id moves from
// the request body into the URL, and calls authenticate with OAuth bearer
// tokens.
package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cexll/claudesdk-go/pkg/config"
	"github.com/cexll/claudesdk-go/pkg/provider"
	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/telemetry"
	"github.com/cexll/claudesdk-go/pkg/transport"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// APIVersion is injected into every Vertex request body.
const APIVersion = "vertex-2023-10-16"

// TokenSource supplies OAuth access tokens. Implementations may cache and
// refresh; Token is called once per attempt.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) { return token, nil })
}

// Options configures the Vertex provider.
type Options struct {
	ProjectID string
	Region    string
	// Tokens supplies bearer tokens. Required.
	Tokens TokenSource
	// BaseURL overrides the regional endpoint. Intended for tests.
	BaseURL string
	// Transport options layered onto the shared pool config.
	Config *config.ClientConfig
}

// Provider implements provider.Provider against Vertex AI rawPredict.
type Provider struct {
	projectID string
	region    string
	tokens    TokenSource
	transport *transport.HTTPTransport
}

var _ provider.Provider = (*Provider)(nil)

// New builds a Vertex provider.
func New(opts Options) (*Provider, error) {
	if opts.ProjectID == "" {
		return nil, sdkerr.Config("vertex project id is required")
	}
	if opts.Region == "" {
		return nil, sdkerr.Config("vertex region is required")
	}
	if opts.Tokens == nil {
		return nil, sdkerr.Config("vertex token source is required")
	}
	cfg := config.New()
	if opts.Config != nil {
		cfg = cfg.Merge(*opts.Config)
	}
	cfg.BaseURL = opts.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", opts.Region)
	}
	// Vertex authenticates with OAuth; the first-party credential headers
	// do not apply.
	cfg.APIVersion = ""
	cfg.APIKey = config.Secret{}
	cfg.AuthToken = config.Secret{}
	tr, err := transport.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Provider{
		projectID: opts.ProjectID,
		region:    opts.Region,
		tokens:    opts.Tokens,
		transport: tr,
	}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "vertex" }

// SupportsModel accepts vendor model ids, including Vertex forms like
// "claude-3-5-sonnet-v2@20241022".
func (p *Provider) SupportsModel(model string) bool {
	return strings.Contains(model, "claude")
}

// messagesPath builds the per-project per-region operation path.
func (p *Provider) messagesPath(model string, stream bool) string {
	action := "rawPredict"
	if stream {
		action = "streamRawPredict"
	}
	return fmt.Sprintf("/projects/%s/locations/%s/publishers/anthropic/models/%s:%s",
		p.projectID, p.region, model, action)
}

// CreateMessage implements provider.Provider.
func (p *Provider) CreateMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "vertex.create_message")
	msg, err := p.createMessage(ctx, req)
	telemetry.EndSpan(span, err)
	return msg, err
}

func (p *Provider) createMessage(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := rewriteBody(req, false)
	if err != nil {
		return nil, err
	}
	header, err := p.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := p.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   p.messagesPath(req.Model, false),
		Body:   body,
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	var msg types.Message
	if err := json.Unmarshal(resp.Body, &msg); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "decoding vertex response")
	}
	return &msg, nil
}

// StreamMessage implements provider.Provider.
func (p *Provider) StreamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	ctx, span := telemetry.StartSpan(ctx, "vertex.stream_message")
	stream, err := p.streamMessage(ctx, req)
	telemetry.EndSpan(span, err)
	return stream, err
}

func (p *Provider) streamMessage(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := rewriteBody(req, true)
	if err != nil {
		return nil, err
	}
	header, err := p.authHeader(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := p.transport.DoStream(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   p.messagesPath(req.Model, true),
		Body:   body,
		Header: header,
	})
	if err != nil {
		return nil, err
	}
	return streaming.New(resp.Body), nil
}

func (p *Provider) authHeader(ctx context.Context) (http.Header, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindAuthentication, err, "vertex token source failed")
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header, nil
}

// rewriteBody drops the model (it lives in the URL), injects
// anthropic_version, and sets the stream flag for streaming calls.
func rewriteBody(req *types.MessageRequest, stream bool) ([]byte, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "encoding vertex request")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindProtocol, err, "encoding vertex request")
	}
	delete(fields, "model")
	fields["anthropic_version"] = json.RawMessage(`"` + APIVersion + `"`)
	if stream {
		fields["stream"] = json.RawMessage("true")
	} else {
		delete(fields, "stream")
	}
	return json.Marshal(fields)
}
