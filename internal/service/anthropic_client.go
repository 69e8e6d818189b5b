package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultAnthropicModel   = "claude-haiku-4-5-20251001"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// ErrInvalidUpstream 表示上游返回的内容不是合法 JSON。
var ErrInvalidUpstream = errors.New("Invalid response from Anthropic API")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

// AnthropicClient 把分析请求转发到 Anthropic Messages API，原样返回上游的状态码与 JSON。
type AnthropicClient struct {
	http    httpDoer
	baseURL string
	model   string
	logger  *slog.Logger
}

// NewAnthropicClient 构造客户端，空参数使用默认地址与模型。
func NewAnthropicClient(baseURL, model string, logger *slog.Logger) *AnthropicClient {
	c := &AnthropicClient{
		http:    &http.Client{Timeout: 180 * time.Second},
		baseURL: DefaultAnthropicBaseURL,
		model:   DefaultAnthropicModel,
		logger:  logger,
	}
	if logger == nil {
		c.logger = slog.Default()
	}
	c.SetBaseURL(baseURL)
	c.SetModel(model)
	return c
}

func (c *AnthropicClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 180 * time.Second}
		return
	}
	c.http = client
}

func (c *AnthropicClient) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return
	}
	c.baseURL = base
}

func (c *AnthropicClient) SetModel(model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return
	}
	c.model = model
}

// Model 返回实际使用的模型。
func (c *AnthropicClient) Model() string { return c.model }

// Relay 发送单轮用户消息。返回上游状态码与响应体；
// 传输失败或响应体不是 JSON 时返回错误，调用方按 500 处理。
func (c *AnthropicClient) Relay(ctx context.Context, apiKey, prompt string) (int, []byte, error) {
	payload := anthropicRequest{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := c.baseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("创建 Anthropic 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	logAIExchange(c.logger, "ANALYSIS", "prompt", prompt)

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("请求 Anthropic 接口失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("读取 Anthropic 响应失败: %w", err)
	}
	if !json.Valid(respBody) {
		return resp.StatusCode, nil, ErrInvalidUpstream
	}

	logAIExchange(c.logger, "ANALYSIS", "response", string(respBody))
	return resp.StatusCode, respBody, nil
}
