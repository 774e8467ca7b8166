package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/llmtaskrunner/backend/config"
	"k8s.io/klog/v2"
)

// Client Gemini 客户端
type Client struct {
	APIBase string
	APIKey  string
	Model   string
	Client  *http.Client
}

// NewClient 创建新的 Gemini 客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		APIBase: cfg.LLM.APIBase,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Client:  &http.Client{},
	}
}

// Chat 发送 system/user 提示词并返回纯文本回答
// 非 2xx 状态直接报错；2xx 但无法提取文本时返回美化后的原始 JSON，
// 调用方应将其视为降级而非失败
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration, maxTokens int) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY not configured")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.APIBase, c.Model)
	klog.V(6).Infof("发送 Gemini 请求: url=%s, maxTokens=%d", url, maxTokens)

	reqBody := GenerateRequest{
		Contents: []Content{
			{
				Role:  "user",
				Parts: []Part{{Text: systemPrompt + "\n\n" + userPrompt}},
			},
		},
		GenerationConfig: GenerationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     0.2,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini API error %d: %s", resp.StatusCode, string(body))
	}

	if text := ExtractText(body); text != "" {
		return text, nil
	}

	// 未找到文本叶子节点，返回美化 JSON 供调用方记录
	klog.V(6).Infof("Gemini 响应无可提取文本，返回原始 JSON: len=%d", len(body))
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return string(body), nil
	}
	return pretty.String(), nil
}
