package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/transport"
)

// ModelInfo describes one available model.
type ModelInfo struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ModelList is one page of models.
type ModelList struct {
	Data    []ModelInfo `json:"data"`
	HasMore bool        `json:"has_more"`
	FirstID string      `json:"first_id,omitempty"`
	LastID  string      `json:"last_id,omitempty"`
}

// Models is the /v1/models resource.
type Models struct {
	client *Client
}

// List enumerates available models.
func (m *Models) List(ctx context.Context) (*ModelList, error) {
	resp, err := m.client.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/models",
	})
	if err != nil {
		return nil, err
	}
	var out ModelList
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding model list: %v", err)
	}
	return &out, nil
}

// Get fetches one model by id.
func (m *Models) Get(ctx context.Context, modelID string) (*ModelInfo, error) {
	resp, err := m.client.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/models/" + url.PathEscape(modelID),
	})
	if err != nil {
		return nil, err
	}
	var out ModelInfo
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding model: %v", err)
	}
	return &out, nil
}
