package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/weibaohui/negotiator/config"
	"k8s.io/klog/v2"
)

// Client OpenAI 兼容的 chat/completions 客户端，不做自动重试
type Client struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Client      *http.Client
}

// NewClient 创建新的 LLM 客户端
func NewClient(cfg *config.Config) *Client {
	timeout := cfg.LLM.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:     cfg.LLM.APIURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Complete 发送一次 system+user 对话请求，返回模型文本
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	klog.V(6).Infof("Complete 请求: model=%s, promptLength=%d", c.Model, len(userPrompt))
	resp, err := c.sendRequest(ctx, ChatRequest{
		Model: c.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	return resp, nil
}

// sendRequest 发送 HTTP 请求到 LLM API
func (c *Client) sendRequest(ctx context.Context, reqBody ChatRequest) (string, error) {
	url := c.BaseURL + "/chat/completions"
	klog.V(6).Infof("发送 LLM 请求: url=%s, model=%s", url, reqBody.Model)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(err)
	}
	klog.V(6).Infof("LLM 响应: status=%d, bodyLength=%d", resp.StatusCode, len(body))

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &MalformedResponseError{Err: err}
	}

	if len(chatResp.Choices) > 0 {
		choice := chatResp.Choices[0]
		if choice.Message != nil {
			return strings.TrimSpace(choice.Message.Content), nil
		}
		if choice.Text != nil {
			return strings.TrimSpace(*choice.Text), nil
		}
	}

	return "", &UnexpectedStructureError{Body: string(body)}
}
