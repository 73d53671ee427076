package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Port)
	}
	if cfg.Model != "gpt-3.5-turbo" {
		t.Errorf("expected default model %q, got %q", "gpt-3.5-turbo", cfg.Model)
	}
	if cfg.KnowledgeFile != "faqs.txt" {
		t.Errorf("expected default knowledge_file %q, got %q", "faqs.txt", cfg.KnowledgeFile)
	}
	if len(cfg.AllowedOrigins) == 0 {
		t.Error("expected default allowed_origins to be non-empty")
	}
	if cfg.Feishu.BaseURL == "" {
		t.Error("expected default feishu.base_url to be set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.zaya.yml")

	original := DefaultConfig()
	original.Port = 9090
	original.Model = "gpt-4o"
	original.KnowledgeFile = "kb/faqs.txt"
	original.AllowedOrigins = []string{"https://example.com"}
	original.Feishu.BaseURL = "https://feishu.example.com/open-apis"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.KnowledgeFile != original.KnowledgeFile {
		t.Errorf("knowledge_file: got %q, want %q", loaded.KnowledgeFile, original.KnowledgeFile)
	}
	if loaded.Feishu.BaseURL != original.Feishu.BaseURL {
		t.Errorf("feishu.base_url: got %q, want %q", loaded.Feishu.BaseURL, original.Feishu.BaseURL)
	}
	if len(loaded.AllowedOrigins) != 1 || loaded.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("allowed_origins: got %v", loaded.AllowedOrigins)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if cfg.Port != DefaultConfig().Port {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("ZAYA_MODEL", "gpt-4o-mini")
	defer os.Unsetenv("ZAYA_MODEL")

	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("expected env override model %q, got %q", "gpt-4o-mini", cfg.Model)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 0")
	}

	cfg = DefaultConfig()
	cfg.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty model")
	}

	cfg = DefaultConfig()
	cfg.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log_level")
	}

	cfg = DefaultConfig()
	cfg.AllowedOrigins = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty allowed_origins without allow_all")
	}
	cfg.AllowAll = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("allow_all should permit empty allowed_origins, got %v", err)
	}
}
