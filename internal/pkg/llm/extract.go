package llm

import (
	"encoding/json"
	"sort"
	"strings"
)

// 通用树搜索时优先尝试的键名
var preferredKeys = []string{"text", "parts", "content", "output"}

// ExtractText 从 generateContent 响应中提取纯文本
// 先按 candidates[0].content.parts 的已知变体解码，
// 失败时对整棵 JSON 树做深度优先搜索，返回第一个足够长的字符串叶子。
// 全部失败时返回空串。
func ExtractText(body []byte) string {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err == nil && len(resp.Candidates) > 0 {
		if text := extractFromContent(resp.Candidates[0].Content); text != "" {
			return text
		}
	}

	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		return ""
	}
	return strings.TrimSpace(findStringLeaf(tree))
}

// extractFromContent 解码 candidates[0].content 的已知变体
func extractFromContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	// content 直接是字符串
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var content contentObject
	if err := json.Unmarshal(raw, &content); err != nil {
		return ""
	}

	if text := extractFromParts(content.Parts); text != "" {
		return text
	}
	if text := strings.TrimSpace(content.Text); text != "" {
		return text
	}
	return strings.TrimSpace(content.Output)
}

// extractFromParts 解码 parts 的三种变体：字符串数组、对象数组、单个字符串
func extractFromParts(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return ""
	}

	var texts []string
	for _, elem := range elems {
		var s string
		if err := json.Unmarshal(elem, &s); err == nil {
			texts = append(texts, s)
			continue
		}
		var part textPart
		if err := json.Unmarshal(elem, &part); err == nil && part.Text != "" {
			texts = append(texts, part.Text)
			continue
		}
		// 未知对象，退化为原样字符串
		texts = append(texts, string(elem))
	}

	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// findStringLeaf 深度优先查找第一个长度超过 10 的字符串叶子
// 对象节点优先尝试 text/parts/content/output 键，其余键按字典序遍历保证确定性
func findStringLeaf(node any) string {
	switch v := node.(type) {
	case string:
		if len(strings.TrimSpace(v)) > 10 {
			return strings.TrimSpace(v)
		}
	case []any:
		for _, elem := range v {
			if res := findStringLeaf(elem); res != "" {
				return res
			}
		}
	case map[string]any:
		for _, key := range preferredKeys {
			if child, ok := v[key]; ok {
				if res := findStringLeaf(child); res != "" {
					return res
				}
			}
		}
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if res := findStringLeaf(v[key]); res != "" {
				return res
			}
		}
	}
	return ""
}
