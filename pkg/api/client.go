// Package api is the public façade. A Client owns the configuration and HTTP
// transport, and hands out lazily-initialized resource objects for the
// messages, completions, models, and beta endpoint families.
package api

import (
	"sync"

	"github.com/cexll/claudesdk-go/pkg/agent"
	"github.com/cexll/claudesdk-go/pkg/config"
	"github.com/cexll/claudesdk-go/pkg/provider/anthropic"
	"github.com/cexll/claudesdk-go/pkg/transport"
)

// Client is the entry point for the hosted service. Resource accessors
// return the same instance on every call.
type Client struct {
	cfg       config.ClientConfig
	transport *transport.HTTPTransport
	provider  *anthropic.Provider

	messagesOnce sync.Once
	messages     *Messages

	completionsOnce sync.Once
	completions     *Completions

	modelsOnce sync.Once
	models     *Models

	betaOnce sync.Once
	beta     *Beta
}

// New builds a client from an explicit configuration.
func New(cfg config.ClientConfig, opts ...transport.Option) (*Client, error) {
	t, err := transport.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, transport: t, provider: anthropic.New(t)}, nil
}

// NewWithAPIKey is the common one-liner constructor.
func NewWithAPIKey(key string) (*Client, error) {
	return New(config.New().WithAPIKey(key))
}

// FromEnv builds a client from ANTHROPIC_* environment variables.
func FromEnv() (*Client, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Config returns the client's configuration.
func (c *Client) Config() config.ClientConfig { return c.cfg }

// Transport exposes the underlying HTTP transport for advanced callers.
func (c *Client) Transport() *transport.HTTPTransport { return c.transport }

// Messages is the /v1/messages resource.
func (c *Client) Messages() *Messages {
	c.messagesOnce.Do(func() { c.messages = &Messages{client: c} })
	return c.messages
}

// Completions is the legacy /v1/complete resource.
func (c *Client) Completions() *Completions {
	c.completionsOnce.Do(func() { c.completions = &Completions{client: c} })
	return c.completions
}

// Models is the /v1/models resource.
func (c *Client) Models() *Models {
	c.modelsOnce.Do(func() { c.models = &Models{client: c} })
	return c.models
}

// Beta groups the pre-GA endpoint families.
func (c *Client) Beta() *Beta {
	c.betaOnce.Do(func() { c.beta = &Beta{client: c} })
	return c.beta
}

// NewAgentSession starts an agent session alongside the HTTP resources.
func (c *Client) NewAgentSession(cfg agent.SessionConfig) (*agent.Session, error) {
	return agent.NewSession(cfg)
}

// betaRequest stamps the anthropic-beta header pre-GA endpoints require.
func (c *Client) betaRequest(req transport.Request, betaFeature string) transport.Request {
	if req.Header == nil {
		req.Header = make(map[string][]string)
	}
	req.Header.Set("anthropic-beta", betaFeature)
	return req
}
