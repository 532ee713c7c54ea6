package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cexll/claudesdk-go/pkg/sdkerr"
	"github.com/cexll/claudesdk-go/pkg/transport"
)

// Beta feature headers understood by the pre-GA endpoints.
const (
	BetaModelsAPI = "models-2024-04-01"
	BetaFilesAPI  = "files-api-2025-04-14"
	BetaSkillsAPI = "skills-2025-10-02"
)

// Beta groups the pre-GA resources. Every request carries an anthropic-beta
// header naming the feature.
type Beta struct {
	client *Client

	modelsOnce sync.Once
	models     *BetaModels

	filesOnce sync.Once
	files     *Files

	skillsOnce sync.Once
	skills     *BetaSkills
}

// Models is the beta view of /v1/models.
func (b *Beta) Models() *BetaModels {
	b.modelsOnce.Do(func() { b.models = &BetaModels{client: b.client} })
	return b.models
}

// Files is the /v1/files resource.
func (b *Beta) Files() *Files {
	b.filesOnce.Do(func() { b.files = &Files{client: b.client} })
	return b.files
}

// Skills is the /v1/skills resource.
func (b *Beta) Skills() *BetaSkills {
	b.skillsOnce.Do(func() { b.skills = &BetaSkills{client: b.client} })
	return b.skills
}

// BetaModels lists models that are only visible with the beta flag.
type BetaModels struct {
	client *Client
}

// List enumerates models including beta-only entries.
func (m *BetaModels) List(ctx context.Context) (*ModelList, error) {
	req := m.client.betaRequest(transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/models?beta=true",
	}, BetaModelsAPI)
	resp, err := m.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out ModelList
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding model list: %v", err)
	}
	return &out, nil
}

// Get fetches one model, beta-only entries included.
func (m *BetaModels) Get(ctx context.Context, modelID string) (*ModelInfo, error) {
	req := m.client.betaRequest(transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/models/" + url.PathEscape(modelID) + "?beta=true",
	}, BetaModelsAPI)
	resp, err := m.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out ModelInfo
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding model: %v", err)
	}
	return &out, nil
}

// FileMetadata describes one uploaded file.
type FileMetadata struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	Downloadable bool      `json:"downloadable,omitempty"`
}

// FileList is one page of files.
type FileList struct {
	Data    []FileMetadata `json:"data"`
	HasMore bool           `json:"has_more"`
	FirstID string         `json:"first_id,omitempty"`
	LastID  string         `json:"last_id,omitempty"`
}

// Files manages uploads under /v1/files.
type Files struct {
	client *Client
}

// Upload sends one file as multipart form data.
func (f *Files) Upload(ctx context.Context, filename string, content []byte) (*FileMetadata, error) {
	body, contentType, err := multipartBody(func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return err
		}
		_, err = part.Write(content)
		return err
	})
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindBadRequest, err, "building upload body")
	}

	req := f.client.betaRequest(transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/files",
		Body:   body,
	}, BetaFilesAPI)
	req.Header.Set("Content-Type", contentType)
	resp, err := f.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out FileMetadata
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding file metadata: %v", err)
	}
	return &out, nil
}

// List enumerates uploaded files.
func (f *Files) List(ctx context.Context) (*FileList, error) {
	req := f.client.betaRequest(transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/files",
	}, BetaFilesAPI)
	resp, err := f.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out FileList
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding file list: %v", err)
	}
	return &out, nil
}

// Get fetches one file's metadata.
func (f *Files) Get(ctx context.Context, fileID string) (*FileMetadata, error) {
	req := f.client.betaRequest(transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/files/" + url.PathEscape(fileID),
	}, BetaFilesAPI)
	resp, err := f.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out FileMetadata
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding file metadata: %v", err)
	}
	return &out, nil
}

// Content downloads a file's raw bytes.
func (f *Files) Content(ctx context.Context, fileID string) ([]byte, error) {
	req := f.client.betaRequest(transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/files/" + url.PathEscape(fileID) + "/content",
	}, BetaFilesAPI)
	resp, err := f.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Delete removes an uploaded file.
func (f *Files) Delete(ctx context.Context, fileID string) error {
	req := f.client.betaRequest(transport.Request{
		Method: http.MethodDelete,
		Path:   "/v1/files/" + url.PathEscape(fileID),
	}, BetaFilesAPI)
	_, err := f.client.transport.Do(ctx, req)
	return err
}

// HostedSkill is the service-side representation of a packaged skill.
type HostedSkill struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	DisplayTitle  string    `json:"display_title,omitempty"`
	LatestVersion string    `json:"latest_version,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HostedSkillList is one page of hosted skills.
type HostedSkillList struct {
	Data     []HostedSkill `json:"data"`
	HasMore  bool          `json:"has_more"`
	NextPage string        `json:"next_page,omitempty"`
}

// BetaSkills manages hosted skills under /v1/skills. The local skills
// package handles on-disk skills; this resource uploads them to the service.
type BetaSkills struct {
	client *Client
}

// Create uploads skill files (SKILL.md plus assets) as multipart form data.
func (s *BetaSkills) Create(ctx context.Context, displayTitle string, files map[string][]byte) (*HostedSkill, error) {
	if len(files) == 0 {
		return nil, sdkerr.BadRequest("skill upload needs at least one file")
	}
	body, contentType, err := multipartBody(func(w *multipart.Writer) error {
		for name, content := range files {
			part, err := w.CreateFormFile("files", name)
			if err != nil {
				return err
			}
			if _, err := part.Write(content); err != nil {
				return err
			}
		}
		if displayTitle != "" {
			return w.WriteField("display_title", displayTitle)
		}
		return nil
	})
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindBadRequest, err, "building skill upload")
	}

	req := s.client.betaRequest(transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/skills",
		Body:   body,
	}, BetaSkillsAPI)
	req.Header.Set("Content-Type", contentType)
	resp, err := s.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out HostedSkill
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding skill: %v", err)
	}
	return &out, nil
}

// List enumerates hosted skills.
func (s *BetaSkills) List(ctx context.Context) (*HostedSkillList, error) {
	req := s.client.betaRequest(transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/skills",
	}, BetaSkillsAPI)
	resp, err := s.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out HostedSkillList
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding skill list: %v", err)
	}
	return &out, nil
}

// Get fetches one hosted skill.
func (s *BetaSkills) Get(ctx context.Context, skillID string) (*HostedSkill, error) {
	req := s.client.betaRequest(transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/skills/" + url.PathEscape(skillID),
	}, BetaSkillsAPI)
	resp, err := s.client.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out HostedSkill
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, sdkerr.ResponseValidation("decoding skill: %v", err)
	}
	return &out, nil
}

// Delete removes a hosted skill.
func (s *BetaSkills) Delete(ctx context.Context, skillID string) error {
	req := s.client.betaRequest(transport.Request{
		Method: http.MethodDelete,
		Path:   "/v1/skills/" + url.PathEscape(skillID),
	}, BetaSkillsAPI)
	_, err := s.client.transport.Do(ctx, req)
	return err
}

// multipartBody renders a multipart form via fill and returns the encoded
// body with its content type.
func multipartBody(fill func(*multipart.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
