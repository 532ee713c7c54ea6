package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/transport"
)

// CompletionRequest targets the legacy /v1/complete endpoint.
type CompletionRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	StopSequences     []string `json:"stop_sequences,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
}

// Completion is the legacy text-completion response.
type Completion struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason,omitempty"`
	Model      string `json:"model"`
}

// Completions is the legacy text-completion resource. New code should use
// Messages.
type Completions struct {
	client *Client
}

// Create runs one completion.
func (c *Completions) Create(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if req.Model == "" {
		return nil, sdkerr.BadRequest("completion model is required")
	}
	if req.MaxTokensToSample <= 0 {
		return nil, sdkerr.BadRequest("max_tokens_to_sample must be positive")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindBadRequest, err, "encoding completion request")
	}
	resp, err := c.client.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/complete",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	var out Completion
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding completion: %v", err)
	}
	return &out, nil
}
