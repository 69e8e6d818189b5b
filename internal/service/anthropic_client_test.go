package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type fakeHTTPClient struct {
	handler func(*http.Request) (*http.Response, error)
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if f.handler == nil {
		return nil, errors.New("no handler configured")
	}
	return f.handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestAnthropicClientUsesExtendedTimeout(t *testing.T) {
	t.Parallel()

	client := NewAnthropicClient("", "", nil)
	httpClient, ok := client.http.(*http.Client)
	if !ok {
		t.Fatalf("expected *http.Client, got %T", client.http)
	}
	if httpClient.Timeout < time.Minute {
		t.Fatalf("default timeout should be at least a minute, got %v", httpClient.Timeout)
	}
	if client.Model() != DefaultAnthropicModel {
		t.Fatalf("unexpected default model %q", client.Model())
	}
}

func TestAnthropicClientRelay(t *testing.T) {
	t.Parallel()

	client := NewAnthropicClient("https://anthropic.test/", "claude-test", nil)
	client.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.String() != "https://anthropic.test/v1/messages" {
			t.Fatalf("unexpected url %s", r.URL)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-ant-test" {
			t.Fatalf("unexpected api key header %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != "2023-06-01" {
			t.Fatalf("unexpected version header %q", got)
		}

		var payload anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Model != "claude-test" || payload.MaxTokens != 4096 {
			t.Fatalf("unexpected payload %+v", payload)
		}
		if len(payload.Messages) != 1 || payload.Messages[0].Role != "user" || payload.Messages[0].Content != "hello" {
			t.Fatalf("unexpected messages %+v", payload.Messages)
		}
		return jsonResponse(http.StatusOK, `{"content":[{"type":"text","text":"hi"}]}`), nil
	}})

	status, body, err := client.Relay(context.Background(), "sk-ant-test", "hello")
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"text":"hi"`) {
		t.Fatalf("body not relayed: %s", body)
	}
}

func TestAnthropicClientRelaysUpstreamErrors(t *testing.T) {
	t.Parallel()

	client := NewAnthropicClient("", "", nil)
	client.SetHTTPClient(fakeHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`), nil
	}})

	status, body, err := client.Relay(context.Background(), "bad", "hello")
	if err != nil {
		t.Fatalf("upstream error status should be relayed, got %v", err)
	}
	if status != http.StatusUnauthorized || !strings.Contains(string(body), "invalid x-api-key") {
		t.Fatalf("unexpected relay %d %s", status, body)
	}
}

func TestAnthropicClientRejectsInvalidBody(t *testing.T) {
	t.Parallel()

	client := NewAnthropicClient("", "", nil)
	client.SetHTTPClient(fakeHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, `<html>bad gateway</html>`), nil
	}})
	if _, _, err := client.Relay(context.Background(), "k", "p"); !errors.Is(err, ErrInvalidUpstream) {
		t.Fatalf("expected ErrInvalidUpstream, got %v", err)
	}

	client.SetHTTPClient(fakeHTTPClient{handler: func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	}})
	if _, _, err := client.Relay(context.Background(), "k", "p"); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected transport error, got %v", err)
	}
}
