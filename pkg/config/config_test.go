package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestSecretRedaction(t *testing.T) {
	s := NewSecret("sk-ant-supersecret")
	if got := fmt.Sprintf("%v %s %#v", s, s, s); strings.Contains(got, "supersecret") {
		t.Fatalf("secret leaked: %s", got)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "supersecret") {
		t.Fatalf("secret leaked in JSON: %s", raw)
	}
	if s.Value() != "sk-ant-supersecret" {
		t.Fatal("value accessor should expose raw credential")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-key")
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "tok")
	t.Setenv("ANTHROPIC_BASE_URL", "https://example.test")
	t.Setenv("ANTHROPIC_API_VERSION", "2024-01-01")
	t.Setenv("ANTHROPIC_TIMEOUT", "30")
	t.Setenv("ANTHROPIC_MAX_RETRIES", "4")
	t.Setenv("ANTHROPIC_PROXY", "http://proxy.test:8080")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if c.APIKey.Value() != "sk-key" || c.AuthToken.Value() != "tok" {
		t.Fatal("credentials not loaded")
	}
	if c.BaseURL != "https://example.test" || c.APIVersion != "2024-01-01" {
		t.Fatalf("endpoint: %s %s", c.BaseURL, c.APIVersion)
	}
	if c.Timeout != 30*time.Second || c.MaxRetries != 4 {
		t.Fatalf("timing: %s %d", c.Timeout, c.MaxRetries)
	}
	if c.Proxy != "http://proxy.test:8080" {
		t.Fatalf("proxy: %s", c.Proxy)
	}
}

func TestFromEnvRejectsBadTimeout(t *testing.T) {
	t.Setenv("ANTHROPIC_TIMEOUT", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for invalid timeout")
	}
}

func TestMergeNonDefaultWins(t *testing.T) {
	base := New().WithAPIKey("base-key").WithHeader("x-team", "a")
	over := New().WithAuthToken("token")
	over.Timeout = 42 * time.Second
	over.MaxRetries = 0
	over = over.WithHeader("x-team", "b")

	merged := base.Merge(over)
	if !merged.APIKey.IsSet() {
		t.Fatal("base api key should survive")
	}
	if !merged.AuthToken.IsSet() {
		t.Fatal("override token should apply")
	}
	if merged.Timeout != 42*time.Second {
		t.Fatalf("timeout: %s", merged.Timeout)
	}
	if merged.MaxRetries != 0 {
		t.Fatalf("max retries: %d", merged.MaxRetries)
	}
	if merged.DefaultHeaders["x-team"] != "b" {
		t.Fatalf("headers: %v", merged.DefaultHeaders)
	}
}

func TestValidateHeaders(t *testing.T) {
	ok := New().WithHeader("x-custom", "value")
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := New().WithHeader("bad header", "v")
	if err := bad.Validate(); err == nil {
		t.Fatal("header name with space should fail")
	}
	bad = New().WithHeader("x-ok", "line\r\nbreak")
	if err := bad.Validate(); err == nil {
		t.Fatal("header value with CRLF should fail")
	}
}

func TestAuthHeaderPrecedence(t *testing.T) {
	c := New().WithAPIKey("key").WithAuthToken("tok")
	name, value, ok := c.AuthHeader()
	if !ok || name != "x-api-key" || value != "key" {
		t.Fatalf("api key should win: %s %s %v", name, value, ok)
	}

	c = New().WithAuthToken("tok")
	name, value, _ = c.AuthHeader()
	if name != "Authorization" || value != "Bearer tok" {
		t.Fatalf("bearer fallback: %s %s", name, value)
	}

	req, _ := http.NewRequest(http.MethodPost, "https://api.test/v1/messages", nil)
	c.ApplyHeaders(req)
	if req.Header.Get("anthropic-version") != DefaultAPIVersion {
		t.Fatal("version header missing")
	}
	if req.Header.Get("Authorization") != "Bearer tok" {
		t.Fatal("auth header missing")
	}
}
