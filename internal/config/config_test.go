package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shipyard/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "shipyard", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.RenderSource.CatalogDir != filepath.Join(tempHome, ".local", "share", "shipyard", "catalog") {
		t.Fatalf("unexpected catalog dir: %q", cfg.RenderSource.CatalogDir)
	}
	if cfg.Storage.LocalDir != cfg.Paths.OutputDir {
		t.Fatalf("expected storage.local_dir to default to output dir, got %q", cfg.Storage.LocalDir)
	}
	if cfg.Batch.MaxConcurrent != 3 {
		t.Fatalf("expected default max concurrent 3, got %d", cfg.Batch.MaxConcurrent)
	}
	if cfg.MaxExportSize() != 10*1024*1024*1024 {
		t.Fatalf("unexpected admission cap: %d", cfg.MaxExportSize())
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SENDGRID_API_KEY", "sg-from-env")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := struct {
		Paths struct {
			WorkDir   string `toml:"work_dir"`
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Batch struct {
			MaxConcurrent int `toml:"max_concurrent"`
		} `toml:"batch"`
		Email struct {
			Provider string `toml:"provider"`
		} `toml:"email"`
		PlatformAPI struct {
			Tokens map[string]string `toml:"tokens"`
		} `toml:"platform_api"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}{}
	payload.Paths.WorkDir = "~/exports/work"
	payload.Paths.OutputDir = "~/exports/out"
	payload.Batch.MaxConcurrent = 7
	payload.Email.Provider = " SendGrid "
	payload.PlatformAPI.Tokens = map[string]string{" Instagram ": " token "}
	payload.Logging.Format = "JSON"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, "exports", "work") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.Batch.MaxConcurrent != 7 {
		t.Fatalf("expected max concurrent override, got %d", cfg.Batch.MaxConcurrent)
	}
	if cfg.Email.Provider != "sendgrid" {
		t.Fatalf("expected normalized email provider, got %q", cfg.Email.Provider)
	}
	if cfg.Email.SendGridAPIKey != "sg-from-env" {
		t.Fatalf("expected sendgrid key from env, got %q", cfg.Email.SendGridAPIKey)
	}
	if cfg.PlatformAPI.Tokens["instagram"] != "token" {
		t.Fatalf("expected normalized platform token, got %v", cfg.PlatformAPI.Tokens)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsUnknownStorageProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Storage.Provider = "dropbox"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "storage.provider") {
		t.Fatalf("expected storage provider error, got %v", err)
	}
}

func TestValidateRequiresBucketForCloudProviders(t *testing.T) {
	for _, provider := range []string{"s3", "minio", "gcs", "azure"} {
		cfg := config.Default()
		cfg.Paths.WorkDir = t.TempDir()
		cfg.Paths.OutputDir = t.TempDir()
		cfg.Paths.LogDir = t.TempDir()
		cfg.Storage.Provider = provider

		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "storage.bucket") {
			t.Fatalf("%s: expected bucket error, got %v", provider, err)
		}
	}
}

func TestValidateRequiresSenderForEmailNotifications(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.OutputDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Notifications.Email = true

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "email.from") {
		t.Fatalf("expected email.from error, got %v", err)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Export.DefaultNamingPattern != "{campaign}_{name}_{version}.{format}" {
		t.Fatalf("unexpected naming pattern: %q", cfg.Export.DefaultNamingPattern)
	}
}
