package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/llmtaskrunner/backend/config"
	"github.com/llmtaskrunner/backend/internal/pkg/github"
	"github.com/llmtaskrunner/backend/internal/pkg/llm"
	"k8s.io/klog/v2"
)

// TaskService 任务编排服务
// 单次提交的六个阶段严格顺序执行，单个阶段失败记入报告后继续，
// 仅仓库解析失败会短路整个流程
type TaskService struct {
	cfg    *config.Config
	llm    *llm.Client
	gh     *github.Client
	client *http.Client
}

// NewTaskService 创建任务编排服务
func NewTaskService(cfg *config.Config, llmClient *llm.Client, ghClient *github.Client) *TaskService {
	return &TaskService{
		cfg:    cfg,
		llm:    llmClient,
		gh:     ghClient,
		client: &http.Client{},
	}
}

var dataURIPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// Run 执行一次任务编排，总是返回累积的报告
func (s *TaskService) Run(ctx context.Context, req TaskRequest) *Report {
	runID := uuid.NewString()
	report := NewReport(runID)

	taskName := req.Task
	if taskName == "" {
		taskName = "task"
	}
	round := req.Round
	if round < 1 {
		round = 1
	}
	nonce := req.Nonce
	if nonce == "" {
		nonce = fmt.Sprintf("%d", time.Now().Unix())
	}
	repoName := RepoName(taskName, nonce)

	klog.V(6).Infof("任务编排开始: run=%s, task=%s, round=%d, repo=%s", runID, taskName, round, repoName)

	// 阶段 1：解析仓库（复用或创建），失败短路整个流程
	repo, err := s.gh.EnsureRepo(ctx, repoName, req.Brief)
	if err != nil {
		klog.Errorf("仓库解析失败: run=%s, err=%v", runID, err)
		report.AddError("repo_create_failed", err)
		if req.EvaluationURL != "" {
			payload := map[string]any{"status": "repo_create_failed", "details": report}
			if _, postErr := s.postJSON(ctx, req.EvaluationURL, payload, 10*time.Second); postErr != nil {
				klog.V(6).Infof("短路回调失败: run=%s, err=%v", runID, postErr)
			}
		}
		report.Finalize()
		return report
	}
	owner := repo.Owner.Login
	report.Repo = repo.HTMLURL

	// 阶段 2：写入 LICENSE 并上传附件
	s.bootstrapContent(ctx, owner, repoName, req.Attachments, report)

	// 阶段 3：生成本轮内容并发布到目标分支
	targetBranch := BranchForRound(round)
	generated := s.publishRoundContent(ctx, owner, repoName, taskName, req.Brief, targetBranch, report)

	// 阶段 4：确保 gh-pages 分支并发布 index.html
	s.publishPages(ctx, owner, repoName, targetBranch, generated, report)

	// 阶段 5：生成并上传 README，失败不阻塞完成
	s.refreshReadme(ctx, owner, repoName, req.Brief, report)

	// 阶段 6：回调通知，结果只记录不上抛
	if req.EvaluationURL != "" {
		s.notifyEvaluation(ctx, req, round, report)
	}

	report.Finalize()
	klog.V(6).Infof("任务编排结束: run=%s, status=%s, errors=%d", runID, report.Status, len(report.Errors))
	return report
}

// bootstrapContent 写入 LICENSE，解码并上传每个内联附件
// 附件相互独立：单个附件解码或上传失败只记录，不影响后续附件
func (s *TaskService) bootstrapContent(ctx context.Context, owner, repoName string, attachments []Attachment, report *Report) {
	year := time.Now().UTC().Year()
	licenseText := fmt.Sprintf("MIT License\n\nCopyright (c) %d %s\n\nPermission is hereby granted...", year, owner)
	if err := s.gh.CreateOrUpdateFile(ctx, owner, repoName, "LICENSE", []byte(licenseText), "Add LICENSE", BranchMain); err != nil {
		report.AddError("license_failed", err)
	}

	for _, att := range attachments {
		name := att.Name
		if name == "" {
			name = "sample.png"
		}
		dataURI := att.URL
		if dataURI == "" {
			dataURI = att.Data
		}
		if !strings.HasPrefix(dataURI, "data:") {
			continue
		}

		m := dataURIPattern.FindStringSubmatch(dataURI)
		if m == nil {
			report.AddError("attachment_malformed", errors.New(name))
			continue
		}

		content, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			report.AddError("attachment_base64_decode_failed:"+name, err)
			continue
		}

		if err := s.gh.CreateOrUpdateFile(ctx, owner, repoName, name, content, "Add "+name, BranchMain); err != nil {
			report.AddError("attachment_main_failed:"+name, err)
		} else {
			report.AttachmentsUploaded = append(report.AttachmentsUploaded, UploadedFile{Name: name, Branch: BranchMain})
		}

		if err := s.gh.CreateOrUpdateFile(ctx, owner, repoName, name, content, "Add "+name+" for pages", BranchPages); err != nil {
			report.AddError("attachment_pages_failed:"+name, err)
		} else {
			report.AttachmentsUploaded = append(report.AttachmentsUploaded, UploadedFile{Name: name, Branch: BranchPages})
		}
	}
}

// publishRoundContent 生成文件集并上传到本轮目标分支
// 返回生成的文件集供发布阶段复用，生成失败时返回 nil
func (s *TaskService) publishRoundContent(ctx context.Context, owner, repoName, taskName, brief, targetBranch string, report *Report) map[string][]byte {
	effectiveBrief := brief
	if effectiveBrief == "" {
		effectiveBrief = "Task: " + taskName
	}

	generated, err := s.GenerateProject(ctx, effectiveBrief, taskName)
	if err != nil {
		report.AddError("llm_generation_failed", err)
		return nil
	}

	// 非 main 轮次时从 main 头部创建分支，已存在则直接复用
	if targetBranch != BranchMain {
		if mainSHA, err := s.gh.GetRef(ctx, owner, repoName, BranchMain); err == nil {
			if _, err := s.gh.GetRef(ctx, owner, repoName, targetBranch); err != nil {
				if err := s.gh.CreateRef(ctx, owner, repoName, "refs/heads/"+targetBranch, mainSHA); err != nil {
					klog.V(6).Infof("创建轮次分支失败: branch=%s, err=%v", targetBranch, err)
				}
			}
		}
	}

	names := make([]string, 0, len(generated))
	for name := range generated {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.gh.CreateOrUpdateFile(ctx, owner, repoName, name, generated[name], "Add "+name+" from LLM", targetBranch); err != nil {
			report.AddError("llm_file_upload_failed:"+name, err)
		} else {
			report.LLMFiles = append(report.LLMFiles, UploadedFile{Name: name, Branch: targetBranch})
		}
	}

	return generated
}

// publishPages 确保 gh-pages 分支存在并写入 index.html
// 页面内容优先取目标分支上已发布的文件，其次取内存中的生成结果，最后用回退模板
func (s *TaskService) publishPages(ctx context.Context, owner, repoName, targetBranch string, generated map[string][]byte, report *Report) {
	mainSHA, err := s.gh.GetRef(ctx, owner, repoName, BranchMain)
	if err != nil {
		report.AddError("gh_pages_failed", errors.New("main_missing"))
		report.Checks["pages_created"] = false
		return
	}

	if _, err := s.gh.GetRef(ctx, owner, repoName, BranchPages); err != nil {
		if err := s.gh.CreateRef(ctx, owner, repoName, "refs/heads/"+BranchPages, mainSHA); err != nil {
			report.AddError("gh_pages_ref_create_failed", err)
		}
	}

	var content []byte
	if fetched, _, err := s.gh.GetFile(ctx, owner, repoName, FileIndex, targetBranch); err == nil && len(fetched) > 0 {
		content = fetched
	} else if len(generated[FileIndex]) > 0 {
		content = generated[FileIndex]
	} else {
		content = []byte(FallbackIndex)
	}

	if err := s.gh.CreateOrUpdateFile(ctx, owner, repoName, FileIndex, content, "Add index.html for gh-pages", BranchPages); err != nil {
		report.AddError("gh_pages_failed", err)
		report.Checks["pages_created"] = false
		return
	}

	report.PagesURL = fmt.Sprintf("https://%s.github.io/%s/", owner, repoName)
	report.Checks["pages_created"] = true
}

// refreshReadme 让 LLM 生成 README 并上传到 main
func (s *TaskService) refreshReadme(ctx context.Context, owner, repoName, brief string, report *Report) {
	readme, err := s.GenerateReadme(ctx, brief)
	if err != nil {
		report.AddError("readme_failed", err)
		report.Checks["readme_generated"] = false
		return
	}
	if readme == "" {
		return
	}

	if err := s.gh.CreateOrUpdateFile(ctx, owner, repoName, "README.md", []byte(readme), "Update README via LLM", BranchMain); err != nil {
		report.AddError("readme_upload_failed", err)
		report.Checks["readme_generated"] = false
		return
	}
	report.Checks["readme_generated"] = true
}

// notifyEvaluation 向 evaluation_url 回调精简报告
func (s *TaskService) notifyEvaluation(ctx context.Context, req TaskRequest, round int, report *Report) {
	condensed := CondensedReport{
		Email:               req.Email,
		Task:                req.Task,
		Round:               round,
		Repo:                report.Repo,
		PagesURL:            report.PagesURL,
		Checks:              report.Checks,
		Errors:              report.Errors,
		LLMFiles:            report.LLMFiles,
		AttachmentsUploaded: report.AttachmentsUploaded,
		Timestamp:           time.Now().Unix(),
	}

	status, err := s.postJSON(ctx, req.EvaluationURL, condensed, 10*time.Second)
	if err != nil {
		report.AddError("evaluation_post_failed", err)
		posted := false
		report.EvaluationPosted = &posted
		return
	}

	posted := status >= 200 && status < 300
	report.EvaluationPosted = &posted
	report.EvaluationStatusCode = status
}

// postJSON 发送带超时的 JSON POST，返回响应状态码
func (s *TaskService) postJSON(ctx context.Context, url string, payload any, timeout time.Duration) (int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
