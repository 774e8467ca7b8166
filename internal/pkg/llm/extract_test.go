package llm

import (
	"strings"
	"testing"
)

func TestExtractTextPartsAsObjects(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":[{"text":"hello from the model"}]}}]}`
	got := ExtractText([]byte(body))
	if got != "hello from the model" {
		t.Errorf("expected extracted text, got %q", got)
	}
}

func TestExtractTextPartsAsStrings(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":["first part","second part"]}}]}`
	got := ExtractText([]byte(body))
	if got != "first part\nsecond part" {
		t.Errorf("expected joined parts, got %q", got)
	}
}

func TestExtractTextPartsAsSingleString(t *testing.T) {
	body := `{"candidates":[{"content":{"parts":"a single string part"}}]}`
	got := ExtractText([]byte(body))
	if got != "a single string part" {
		t.Errorf("expected single string part, got %q", got)
	}
}

func TestExtractTextContentAsString(t *testing.T) {
	body := `{"candidates":[{"content":"content is a bare string"}]}`
	got := ExtractText([]byte(body))
	if got != "content is a bare string" {
		t.Errorf("expected bare string content, got %q", got)
	}
}

func TestExtractTextMixedParts(t *testing.T) {
	// 字符串和对象混排的 parts
	body := `{"candidates":[{"content":{"parts":["plain",{"text":"typed"}]}}]}`
	got := ExtractText([]byte(body))
	if got != "plain\ntyped" {
		t.Errorf("expected mixed parts joined, got %q", got)
	}
}

func TestExtractTextGenericDFS(t *testing.T) {
	// 未知形状：回退到树搜索，优先 text/parts/content/output 键
	body := `{"result":{"output":"found via generic tree search"}}`
	got := ExtractText([]byte(body))
	if got != "found via generic tree search" {
		t.Errorf("expected DFS result, got %q", got)
	}
}

func TestExtractTextDFSSkipsShortLeaves(t *testing.T) {
	// 长度不超过 10 的字符串叶子不算数
	body := `{"a":"short","b":"this one is long enough"}`
	got := ExtractText([]byte(body))
	if got != "this one is long enough" {
		t.Errorf("expected long leaf, got %q", got)
	}
}

func TestExtractTextNoStringLeaf(t *testing.T) {
	body := `{"candidates":[],"count":3}`
	if got := ExtractText([]byte(body)); got != "" {
		t.Errorf("expected empty result, got %q", got)
	}
}

func TestExtractTextInvalidJSON(t *testing.T) {
	if got := ExtractText([]byte("not json at all")); got != "" {
		t.Errorf("expected empty result for invalid JSON, got %q", got)
	}
}

func TestExtractTextPrefersCandidatesPath(t *testing.T) {
	// candidates 路径命中时不应落入其他分支的长字符串
	body := `{"metadata":{"note":"a very long irrelevant metadata string"},"candidates":[{"content":{"parts":[{"text":"the real answer"}]}}]}`
	got := ExtractText([]byte(body))
	if !strings.Contains(got, "the real answer") {
		t.Errorf("expected candidates path to win, got %q", got)
	}
}
