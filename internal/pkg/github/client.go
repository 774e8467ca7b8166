package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/llmtaskrunner/backend/config"
	"k8s.io/klog/v2"
)

// ErrNotFound 资源不存在（404）
// 分支/文件查询中 404 表示"需要创建"，不是硬错误
var ErrNotFound = errors.New("github: not found")

// Client GitHub REST API 客户端
type Client struct {
	APIBase string
	Token   string
	Owner   string // 可选：组织名或用户名
	Client  *http.Client
}

// Repo 远端仓库句柄
type Repo struct {
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
	Owner   struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// NewClient 创建新的 GitHub 客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		APIBase: cfg.GitHub.APIBase,
		Token:   cfg.GitHub.Token,
		Owner:   cfg.GitHub.Owner,
		Client:  &http.Client{},
	}
}

// do 发送认证请求并返回状态码和响应体
func (c *Client) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	if c.Token == "" {
		return 0, nil, fmt.Errorf("GITHUB_TOKEN not set")
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "token "+c.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	klog.V(6).Infof("GitHub 请求: %s %s", method, url)
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// AuthenticatedUser 返回 token 对应的用户名
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	status, body, err := c.do(ctx, "GET", c.APIBase+"/user", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("failed to get authenticated user: %d %s", status, string(body))
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return user.Login, nil
}

// GetRepo 查询仓库，404 返回 ErrNotFound
func (c *Client) GetRepo(ctx context.Context, owner, name string) (*Repo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.APIBase, owner, name)
	status, body, err := c.do(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to get repo %s/%s: %d %s", owner, name, status, string(body))
	}

	var repo Repo
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal repo: %w", err)
	}
	return &repo, nil
}

// CreateRepo 创建仓库（public，不自动初始化）
// 配置了 Owner 时先尝试组织端点，失败后回退到用户端点；
// 两者都失败时在错误信息中带上 token 对应用户，便于排查权限问题
func (c *Client) CreateRepo(ctx context.Context, name, description string) (*Repo, error) {
	payload := map[string]any{
		"name":        name,
		"description": description,
		"private":     false,
		"auto_init":   false,
	}

	if c.Owner != "" {
		url := fmt.Sprintf("%s/orgs/%s/repos", c.APIBase, c.Owner)
		status, body, err := c.do(ctx, "POST", url, payload)
		if err == nil && status == http.StatusCreated {
			var repo Repo
			if err := json.Unmarshal(body, &repo); err != nil {
				return nil, fmt.Errorf("failed to unmarshal repo: %w", err)
			}
			return &repo, nil
		}
		klog.V(6).Infof("组织端点创建仓库失败，回退到用户端点: name=%s, status=%d", name, status)
	}

	status, body, err := c.do(ctx, "POST", c.APIBase+"/user/repos", payload)
	if err != nil {
		return nil, err
	}
	if status == http.StatusCreated {
		var repo Repo
		if err := json.Unmarshal(body, &repo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal repo: %w", err)
		}
		return &repo, nil
	}

	login, userErr := c.AuthenticatedUser(ctx)
	if userErr != nil {
		login = "unknown"
	}
	return nil, fmt.Errorf("failed to create repo as %s: %d %s", login, status, string(body))
}

// EnsureRepo 复用或创建指定名称的仓库
// 先用配置的 Owner（否则用认证用户）查询是否已存在，不存在再创建
func (c *Client) EnsureRepo(ctx context.Context, name, description string) (*Repo, error) {
	owner := c.Owner
	if owner == "" {
		login, err := c.AuthenticatedUser(ctx)
		if err == nil {
			owner = login
		}
	}

	if owner != "" {
		repo, err := c.GetRepo(ctx, owner, name)
		if err == nil {
			klog.V(6).Infof("复用已有仓库: %s/%s", repo.Owner.Login, repo.Name)
			return repo, nil
		}
		if !errors.Is(err, ErrNotFound) {
			klog.V(6).Infof("仓库查询失败，转为创建: name=%s, err=%v", name, err)
		}
	}

	return c.CreateRepo(ctx, name, description)
}

// GetRef 查询分支头部 commit SHA，分支不存在返回 ErrNotFound
func (c *Client) GetRef(ctx context.Context, owner, repo, branch string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/refs/heads/%s", c.APIBase, owner, repo, branch)
	status, body, err := c.do(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", ErrNotFound
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("failed to get ref %s: %d %s", branch, status, string(body))
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.Unmarshal(body, &ref); err != nil {
		return "", fmt.Errorf("failed to unmarshal ref: %w", err)
	}
	return ref.Object.SHA, nil
}

// CreateRef 创建指向指定 commit 的分支引用，ref 形如 refs/heads/xxx
func (c *Client) CreateRef(ctx context.Context, owner, repo, ref, sha string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/git/refs", c.APIBase, owner, repo)
	payload := map[string]string{"ref": ref, "sha": sha}

	status, body, err := c.do(ctx, "POST", url, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to create ref %s: %d %s", ref, status, string(body))
	}
	return nil
}

// GetFile 读取指定分支上文件的内容和 SHA，文件不存在返回 ErrNotFound
func (c *Client) GetFile(ctx context.Context, owner, repo, path, ref string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s", c.APIBase, owner, repo, path, ref)
	status, body, err := c.do(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", err
	}
	if status == http.StatusNotFound {
		return nil, "", ErrNotFound
	}
	if status != http.StatusOK {
		return nil, "", fmt.Errorf("failed to get file %s on %s: %d %s", path, ref, status, string(body))
	}

	var file struct {
		Content string `json:"content"`
		SHA     string `json:"sha"`
	}
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal file: %w", err)
	}

	// Contents API 返回的 base64 带换行
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, file.SHA, fmt.Errorf("failed to decode file content: %w", err)
	}
	return decoded, file.SHA, nil
}

// CreateOrUpdateFile 在指定分支上创建或更新文件
// 先查询文件当前 SHA，存在时带入写请求，使第二次写入走更新路径而非冲突
func (c *Client) CreateOrUpdateFile(ctx context.Context, owner, repo, path string, content []byte, message, branch string) error {
	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}

	if _, sha, _ := c.GetFile(ctx, owner, repo, path, branch); sha != "" {
		payload["sha"] = sha
	}

	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.APIBase, owner, repo, path)
	status, body, err := c.do(ctx, "PUT", url, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to create/update file %s on branch %s: %d %s", path, branch, status, string(body))
	}
	return nil
}
