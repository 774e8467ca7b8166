package main

import (
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/llmtaskrunner/backend/config"
	"github.com/llmtaskrunner/backend/internal/handler"
	"github.com/llmtaskrunner/backend/internal/pkg/github"
	"github.com/llmtaskrunner/backend/internal/pkg/llm"
	"github.com/llmtaskrunner/backend/internal/router"
	"github.com/llmtaskrunner/backend/internal/service"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.Load()

	if cfg.LLM.APIKey == "" {
		klog.Warning("GEMINI_API_KEY not set. LLM calls will fail until configured.")
	}

	// 初始化外部服务客户端
	llmClient := llm.NewClient(cfg)
	ghClient := github.NewClient(cfg)

	// 初始化 Service 与 Handler
	taskService := service.NewTaskService(cfg, llmClient, ghClient)
	taskHandler := handler.NewTaskHandler(cfg, taskService)

	// 设置路由
	r := router.Setup(cfg, taskHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
