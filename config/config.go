package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	GitHub GitHubConfig `yaml:"github"`
	Task   TaskConfig   `yaml:"task"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type LLMConfig struct {
	APIBase   string `yaml:"api_base"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type GitHubConfig struct {
	APIBase string `yaml:"api_base"`
	Token   string `yaml:"token"`
	Owner   string `yaml:"owner"` // 可选：组织名或用户名，为空时使用 token 对应用户
}

type TaskConfig struct {
	Secret string `yaml:"secret"` // 可选：提交接口的共享密钥
}

// Load 加载配置：默认值 < config.yaml < 环境变量
// 返回的 Config 在启动后不再修改，由 main 显式传递给各组件
func Load() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		LLM: LLMConfig{
			APIBase:   "https://generativelanguage.googleapis.com/v1beta",
			Model:     "gemini-1.5-pro",
			MaxTokens: 2000,
		},
		GitHub: GitHubConfig{
			APIBase: "https://api.github.com",
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if apiBase := os.Getenv("GEMINI_API_BASE"); apiBase != "" {
		config.LLM.APIBase = apiBase
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.LLM.Model = model
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		config.GitHub.Token = token
	}
	if owner := os.Getenv("GITHUB_OWNER"); owner != "" {
		config.GitHub.Owner = owner
	}
	if apiBase := os.Getenv("GITHUB_API_BASE"); apiBase != "" {
		config.GitHub.APIBase = apiBase
	}

	// 兼容两种密钥变量名，SUBMISSION_SECRET 优先
	if secret := os.Getenv("SUBMISSION_SECRET"); secret != "" {
		config.Task.Secret = secret
	} else if secret := os.Getenv("STUDENT_SECRET"); secret != "" {
		config.Task.Secret = secret
	}

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		config.Server.Mode = mode
	}

	return config
}
