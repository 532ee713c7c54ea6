// Package types defines the wire records shared by the messaging and agent
// surfaces: messages, content blocks, usage accounting, cache control, and
// request validation. Content blocks form a closed tagged union; consumers
// switch on the concrete type rather than reflecting.
package types

import (
	"encoding/json"
	"fmt"
)

// MediaType enumerates the accepted image encodings.
var supportedMediaTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// SupportedMediaType reports whether mt is an accepted image media type.
func SupportedMediaType(mt string) bool {
	_, ok := supportedMediaTypes[mt]
	return ok
}

// CacheTTL selects the ephemeral cache lifetime.
type CacheTTL string

const (
	CacheTTL5m CacheTTL = "5m"
	CacheTTL1h CacheTTL = "1h"
)

// CacheControl marks a block as a prompt-cache breakpoint.
type CacheControl struct {
	Type string   `json:"type"`
	TTL  CacheTTL `json:"ttl,omitempty"`
}

// NewCacheControl returns the ephemeral cache-control marker.
func NewCacheControl() *CacheControl { return &CacheControl{Type: "ephemeral"} }

// WithTTL sets the cache lifetime.
func (c *CacheControl) WithTTL(ttl CacheTTL) *CacheControl {
	c.TTL = ttl
	return c
}

// ContentBlock is the closed union of message content variants.
type ContentBlock interface {
	blockType() string
}

// TextBlock carries plain text.
type TextBlock struct {
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

func (TextBlock) blockType() string { return "text" }

// ImageSource describes where image bytes come from.
type ImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ImageBlock carries an inline or referenced image.
type ImageBlock struct {
	Source ImageSource `json:"source"`
}

func (ImageBlock) blockType() string { return "image" }

// ToolUseBlock is the assistant asking for a tool invocation.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (ToolUseBlock) blockType() string { return "tool_use" }

// ToolResultBlock returns a tool's output to the assistant.
type ToolResultBlock struct {
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

func (ToolResultBlock) blockType() string { return "tool_result" }

// ThinkingBlock carries extended-thinking output with its signature.
type ThinkingBlock struct {
	Signature string `json:"signature"`
	Thinking  string `json:"thinking"`
}

func (ThinkingBlock) blockType() string { return "thinking" }

// DocumentSource describes where document content comes from.
type DocumentSource struct {
	Type      string `json:"type"` // "base64", "url", or "text"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// DocumentBlock attaches a document (PDF, URL, or raw text).
type DocumentBlock struct {
	Source       DocumentSource `json:"source"`
	Title        string         `json:"title,omitempty"`
	Context      string         `json:"context,omitempty"`
	CacheControl *CacheControl  `json:"cache_control,omitempty"`
}

func (DocumentBlock) blockType() string { return "document" }

// Content is an ordered list of blocks with union-aware JSON encoding.
type Content []ContentBlock

// Text is a convenience constructor for a single text block.
func Text(text string) Content { return Content{TextBlock{Text: text}} }

// MarshalJSON emits each block with its type discriminator.
func (c Content) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(c))
	for _, block := range c {
		raw, err := marshalBlock(block)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts either a JSON array of blocks or a bare string,
// which the service treats as a single text block.
func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Content{TextBlock{Text: text}}
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	blocks := make(Content, 0, len(raws))
	for _, raw := range raws {
		block, err := DecodeContentBlock(raw)
		if err != nil {
			return err
		}
		blocks = append(blocks, block)
	}
	*c = blocks
	return nil
}

func marshalBlock(block ContentBlock) (json.RawMessage, error) {
	body, err := json.Marshal(block)
	if err != nil {
		return nil, err
	}
	// Splice the discriminator in front of the variant fields.
	tagged := make([]byte, 0, len(body)+24)
	tagged = append(tagged, '{')
	tagged = append(tagged, fmt.Sprintf("%q:%q", "type", block.blockType())...)
	if len(body) > 2 {
		tagged = append(tagged, ',')
		tagged = append(tagged, body[1:len(body)-1]...)
	}
	tagged = append(tagged, '}')
	return tagged, nil
}

// DecodeContentBlock parses one block by its type discriminator.
func DecodeContentBlock(raw json.RawMessage) (ContentBlock, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("types: decode content block: %w", err)
	}
	switch head.Type {
	case "text":
		var b TextBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "image":
		var b ImageBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "tool_use":
		var b ToolUseBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "tool_result":
		var b ToolResultBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "thinking":
		var b ThinkingBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case "document":
		var b DocumentBlock
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("types: unknown content block type %q", head.Type)
	}
}
