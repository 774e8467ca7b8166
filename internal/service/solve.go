package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"
)

const transcribeSystemPrompt = "You are an assistant that extracts short textual captchas from base64 images. Reply only with the text or ERROR:UNREADABLE."

// TranscribeImage 抓取指定 URL 的图片并让 LLM 转写其中的短文本
// 图片不可读时模型返回字面量 ERROR:UNREADABLE
func (s *TaskService) TranscribeImage(ctx context.Context, imageURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, "GET", imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch url: %d", resp.StatusCode)
	}

	imgBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch error: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(imgBytes)
	userPrompt := fmt.Sprintf("Below is a base64-encoded image. Try to read any textual characters. If unreadable, reply EXACTLY: ERROR:UNREADABLE.\n\nIMAGE_BASE64_START\n%s\nIMAGE_BASE64_END\n\nReply ONLY with the extracted text.", b64)

	return s.llm.Chat(ctx, transcribeSystemPrompt, userPrompt, 40*time.Second, 128)
}
