package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/llmtaskrunner/backend/internal/utils"
	"k8s.io/klog/v2"
)

// 生成文件集的三个固定键
const (
	FileIndex  = "index.html"
	FileStyles = "styles.css"
	FileScript = "script.js"
)

// BranchMain 默认分支
const BranchMain = "main"

// BranchPages 静态站点发布分支
const BranchPages = "gh-pages"

var markerPattern = regexp.MustCompile(`---(index\.html|styles\.css|script\.js)---`)

// RepoName 由任务名和 nonce 确定性地派生仓库名
// 同一 (task, nonce) 的重复提交复用同一仓库，这是系统唯一的幂等保证
func RepoName(task, nonce string) string {
	return strings.ToLower(strings.ReplaceAll(task+"-"+nonce, " ", "-"))
}

// BranchForRound 轮次到分支的映射：round 1 → main，round N → round-N
func BranchForRound(round int) string {
	if round <= 1 {
		return BranchMain
	}
	return fmt.Sprintf("round-%d", round)
}

const generateSystemPrompt = "You are a senior front-end engineer. Given a short brief, produce a minimal but complete " +
	"front-end project. Output exactly three sections in plain text using these delimiters:\n" +
	"---index.html---\n(HTML content)\n---styles.css---\n(CSS content)\n---script.js---\n(JS content)\n\n" +
	"Do NOT output JSON, do NOT wrap in markdown fences. Keep files small and self-contained."

// GenerateProject 让 LLM 根据任务简介生成三个前端文件
// 解析是全函数：无论模型输出什么形状，最终都返回可用的文件集
func (s *TaskService) GenerateProject(ctx context.Context, brief, taskName string) (map[string][]byte, error) {
	userPrompt := fmt.Sprintf("Task: %s\nBrief: %s\nProduce the files as described.", taskName, brief)

	raw, err := s.llm.Chat(ctx, generateSystemPrompt, userPrompt, 60*time.Second, 2000)
	if err != nil {
		return nil, err
	}

	return ParseProjectFiles(raw), nil
}

// ParseProjectFiles 把模型输出解析为文件集
// 依次尝试：标记分隔格式 → 代码围栏内的 JSON 对象 → 确定性回退模板
func ParseProjectFiles(raw string) map[string][]byte {
	if files, ok := parseMarkers(raw); ok {
		klog.V(6).Infof("标记格式解析成功: files=%d", len(files))
		return files
	}
	if files, ok := parseJSONMapping(raw); ok {
		klog.V(6).Infof("JSON 回退解析成功: files=%d", len(files))
		return files
	}
	klog.V(6).Info("解析失败，使用回退模板")
	return FallbackFileSet()
}

// parseMarkers 按 ---index.html--- 等标记切分文本
// 每个键先收集片段列表，最后一次性拼接，避免逐段拼接带来的裁剪歧义。
// 仅当 index.html 内容非空时接受结果，缺失的 css/js 用回退内容补齐
func parseMarkers(raw string) (map[string][]byte, bool) {
	matches := markerPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return nil, false
	}

	fragments := make(map[string][]string)
	for i, m := range matches {
		name := raw[m[2]:m[3]]
		start := m[1]
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		fragments[name] = append(fragments[name], raw[start:end])
	}

	files := make(map[string][]byte)
	for name, parts := range fragments {
		content := strings.Trim(strings.Join(parts, "\n"), "\n")
		content = strings.TrimSpace(content)
		files[name] = []byte(content)
	}

	if len(files[FileIndex]) == 0 {
		return nil, false
	}
	if len(files[FileStyles]) == 0 {
		files[FileStyles] = []byte(FallbackCSS)
	}
	if len(files[FileScript]) == 0 {
		files[FileScript] = []byte(FallbackJS)
	}
	return files, true
}

// parseJSONMapping 解析形如 {"index.html": "...", ...} 的模型输出
// 先去掉可能的代码围栏，再取第一个括号配平的 JSON 对象
func parseJSONMapping(raw string) (map[string][]byte, bool) {
	candidate := utils.ExtractJSON(utils.StripCodeFence(raw))

	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, false
	}

	files := make(map[string][]byte)
	for _, name := range []string{FileIndex, FileStyles, FileScript} {
		if value, ok := parsed[name].(string); ok {
			files[name] = []byte(value)
		}
	}
	if len(files) == 0 {
		return nil, false
	}

	fallback := FallbackFileSet()
	for name, content := range fallback {
		if _, ok := files[name]; !ok {
			files[name] = content
		}
	}
	return files, true
}

const readmeSystemPrompt = "You are an assistant that writes concise README files for small demo repos."

// GenerateReadme 让 LLM 根据任务简介生成简短 README
func (s *TaskService) GenerateReadme(ctx context.Context, brief string) (string, error) {
	userPrompt := fmt.Sprintf("Write a short professional README describing: %s\nInclude usage instructions and files created.", brief)
	return s.llm.Chat(ctx, readmeSystemPrompt, userPrompt, 60*time.Second, 800)
}
