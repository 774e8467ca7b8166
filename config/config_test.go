package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	cfg := Load()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.LLM.APIBase != "https://generativelanguage.googleapis.com/v1beta" {
		t.Errorf("unexpected default LLM api base: %s", cfg.LLM.APIBase)
	}
	if cfg.LLM.Model != "gemini-1.5-pro" {
		t.Errorf("unexpected default model: %s", cfg.LLM.Model)
	}
	if cfg.GitHub.APIBase != "https://api.github.com" {
		t.Errorf("unexpected default GitHub api base: %s", cfg.GitHub.APIBase)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("GITHUB_OWNER", "acme")
	t.Setenv("PORT", "9090")

	cfg := Load()

	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env api key, got %s", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("expected env model, got %s", cfg.LLM.Model)
	}
	if cfg.GitHub.Token != "env-token" {
		t.Errorf("expected env token, got %s", cfg.GitHub.Token)
	}
	if cfg.GitHub.Owner != "acme" {
		t.Errorf("expected env owner, got %s", cfg.GitHub.Owner)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected env port, got %s", cfg.Server.Port)
	}
}

func TestLoadSecretVariablePrecedence(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
	t.Setenv("SUBMISSION_SECRET", "primary")
	t.Setenv("STUDENT_SECRET", "fallback")

	cfg := Load()
	if cfg.Task.Secret != "primary" {
		t.Errorf("expected SUBMISSION_SECRET to win, got %s", cfg.Task.Secret)
	}
}
