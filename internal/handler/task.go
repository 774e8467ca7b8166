package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/llmtaskrunner/backend/config"
	"github.com/llmtaskrunner/backend/internal/service"
	"k8s.io/klog/v2"
)

type TaskHandler struct {
	cfg     *config.Config
	service *service.TaskService
}

func NewTaskHandler(cfg *config.Config, taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		cfg:     cfg,
		service: taskService,
	}
}

// Root 就绪检查
func (h *TaskHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"note":   "POST application/json to /upload-task with the task JSON body.",
	})
}

// UploadTask 接收任务提交并同步执行编排
// 除密钥不匹配（401）外所有结果都以 200 返回完整报告；
// 残余异常也被兜住并降级为 failed 报告
func (h *TaskHandler) UploadTask(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("UploadTask panic: %v", r)
			c.JSON(http.StatusOK, gin.H{
				"status": service.StatusFailed,
				"errors": []string{fmt.Sprint(r)},
			})
		}
	}()

	var req service.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status": service.StatusFailed,
			"errors": []string{"body must be a JSON object"},
		})
		return
	}

	// 共享密钥检查：配置了密钥时要求请求体携带匹配的 secret，去除首尾空白后比较
	if secret := h.cfg.Task.Secret; secret != "" {
		if strings.TrimSpace(req.Secret) != strings.TrimSpace(secret) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": service.StatusFailed,
				"errors": []string{"secret mismatch"},
			})
			return
		}
	}

	report := h.service.Run(c.Request.Context(), req)
	c.JSON(http.StatusOK, report)
}

// Solve 抓取 url 参数指向的图片并转写其中的文本
func (h *TaskHandler) Solve(c *gin.Context) {
	imageURL := c.Query("url")
	if imageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	solved, err := h.service.TranscribeImage(c.Request.Context(), imageURL)
	if err != nil {
		klog.Errorf("Solve failed: url=%s, err=%v", imageURL, err)
		if strings.Contains(err.Error(), "fetch") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"solved_text": strings.TrimSpace(solved)})
}
