package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/streaming"
	"github.com/cexll/claudesdk-go/pkg/transport"
	"github.com/cexll/claudesdk-go/pkg/types"
)

// Messages is the /v1/messages resource.
type Messages struct {
	client *Client

	batchesOnce sync.Once
	batches     *Batches
}

// Create sends a non-streaming message request.
func (m *Messages) Create(ctx context.Context, req *types.MessageRequest) (*types.Message, error) {
	return m.client.provider.CreateMessage(ctx, req)
}

// Stream sends a streaming request and returns the live event stream.
func (m *Messages) Stream(ctx context.Context, req *types.MessageRequest) (*streaming.Stream, error) {
	return m.client.provider.StreamMessage(ctx, req)
}

// CountTokens estimates the token footprint of a request without sampling.
func (m *Messages) CountTokens(ctx context.Context, req *types.CountTokensRequest) (*types.CountTokensResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindBadRequest, err, "encoding count_tokens request")
	}
	resp, err := m.client.transport.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/messages/count_tokens",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	var out types.CountTokensResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding count_tokens response: %v", err)
	}
	return &out, nil
}

// Batches is the batch-processing sub-resource.
func (m *Messages) Batches() *Batches {
	m.batchesOnce.Do(func() { m.batches = &Batches{client: m.client} })
	return m.batches
}

// BatchRequest is one entry in a batch submission.
type BatchRequest struct {
	CustomID string               `json:"custom_id"`
	Params   types.MessageRequest `json:"params"`
}

// RequestCounts tallies batch entries by outcome.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Canceled   int `json:"canceled"`
	Expired    int `json:"expired"`
}

// MessageBatch is the service's view of one submitted batch.
type MessageBatch struct {
	ID               string        `json:"id"`
	Type             string        `json:"type"`
	ProcessingStatus string        `json:"processing_status"`
	RequestCounts    RequestCounts `json:"request_counts"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
	ResultsURL       string        `json:"results_url,omitempty"`
}

// BatchList is one page of batches, most recent first.
type BatchList struct {
	Data    []MessageBatch `json:"data"`
	HasMore bool           `json:"has_more"`
	FirstID string         `json:"first_id,omitempty"`
	LastID  string         `json:"last_id,omitempty"`
}

// BatchResult is one line of a completed batch's JSONL results.
type BatchResult struct {
	CustomID string `json:"custom_id"`
	Result   struct {
		Type    string         `json:"type"`
		Message *types.Message `json:"message,omitempty"`
		Error   *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"result"`
}

// Batches manages /v1/messages/batches.
type Batches struct {
	client *Client
}

// Create submits a batch of message requests.
func (b *Batches) Create(ctx context.Context, requests []BatchRequest) (*MessageBatch, error) {
	body, err := json.Marshal(map[string]any{"requests": requests})
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindBadRequest, err, "encoding batch")
	}
	return b.roundTrip(ctx, http.MethodPost, "/v1/messages/batches", body)
}

// List returns the most recently created batches first.
func (b *Batches) List(ctx context.Context) (*BatchList, error) {
	resp, err := b.client.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/messages/batches",
	})
	if err != nil {
		return nil, err
	}
	var out BatchList
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding batch list: %v", err)
	}
	return &out, nil
}

// Get fetches one batch by id.
func (b *Batches) Get(ctx context.Context, batchID string) (*MessageBatch, error) {
	return b.roundTrip(ctx, http.MethodGet, "/v1/messages/batches/"+url.PathEscape(batchID), nil)
}

// Cancel asks the service to stop processing a batch.
func (b *Batches) Cancel(ctx context.Context, batchID string) (*MessageBatch, error) {
	return b.roundTrip(ctx, http.MethodPost, "/v1/messages/batches/"+url.PathEscape(batchID)+"/cancel", nil)
}

// Results downloads and decodes a completed batch's JSONL results. The
// results URL is presigned, so the fetch carries no client credentials.
func (b *Batches) Results(ctx context.Context, batch *MessageBatch) ([]BatchResult, error) {
	if batch.ResultsURL == "" {
		return nil, sdkerr.BadRequest("batch %s has no results yet", batch.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, batch.ResultsURL, nil)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindBadRequest, err, "building results request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, sdkerr.FromTransportError(err, 0)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, sdkerr.FromResponse(resp.StatusCode, body, resp.Header)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sdkerr.IO(err)
	}

	var results []BatchResult
	for i, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var r BatchResult
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, sdkerr.ResponseValidation("batch results line %d: %v", i+1, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (b *Batches) roundTrip(ctx context.Context, method, path string, body []byte) (*MessageBatch, error) {
	resp, err := b.client.transport.Do(ctx, transport.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}
	var out MessageBatch
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding batch: %v", err)
	}
	return &out, nil
}
