// Package groq 實作 OpenAI 相容的 chat completions 客戶端（Groq 預設，亦可指向 OpenRouter）
package groq

import (
	"context"
	"fmt"
	"strings"

	"kitchen-bot/internal/core/ai/provider"
	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// chatRequest 表示 API 請求
type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []provider.Message `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream"`
}

// chatResponse 響應結構
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message provider.Message `json:"message"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
}

// apiError 表示 API 錯誤
type apiError struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// Client chat completions 客戶端
type Client struct {
	client *resty.Client
	model  string
}

// NewClient 創建新的客戶端；逾時由呼叫端的 context 控制
func NewClient(cfg config.CompletionConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Title", "kitchen-bot")

	return &Client{
		client: client,
		model:  cfg.Model,
	}
}

// Generate 生成回應
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var result chatResponse
	var apiErr apiError

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.IsError() {
		common.LogError("Completion API returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", c.model),
			zap.String("error", apiErr.Error.Message),
		)
		return nil, fmt.Errorf("completion API error (status %d): %s", resp.StatusCode(), apiErr.Error.Message)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response: %w", provider.ErrEmptyContent)
	}

	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return nil, provider.ErrEmptyContent
	}

	common.LogDebug("Completion received",
		zap.String("model", c.model),
		zap.Int("content_length", len(content)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)

	return &provider.Response{Content: content, Usage: result.Usage}, nil
}

// GetModel 獲取模型名稱
func (c *Client) GetModel() string {
	return c.model
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
