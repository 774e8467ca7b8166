package llm

import (
	"encoding/json"
)

// GenerateRequest Gemini generateContent 请求体
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// Content 一条消息，role + 若干 part
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part 纯文本片段
type Part struct {
	Text string `json:"text"`
}

// GenerationConfig 生成参数
type GenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

// 响应侧的结构是松散的：candidates[0].content 可能是对象、字符串，
// parts 可能是字符串数组、{"text": ...} 对象数组或单个字符串。
// 这里只做第一层的定型解码，具体变体在 extract.go 中逐一尝试。

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content json.RawMessage `json:"content"`
}

type contentObject struct {
	Parts  json.RawMessage `json:"parts"`
	Text   string          `json:"text"`
	Output string          `json:"output"`
}

type textPart struct {
	Text string `json:"text"`
}
