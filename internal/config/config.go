package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// RenderSource contains configuration for the rendered campaign catalog.
type RenderSource struct {
	CatalogDir         string `toml:"catalog_dir"`
	AssetDir           string `toml:"asset_dir"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
}

// Export contains admission limits and estimator heuristics.
type Export struct {
	MaxExportSizeMB         int64  `toml:"max_export_size_mb"`
	AssetOverheadMB         int64  `toml:"asset_overhead_mb"`
	DocumentationOverheadMB int64  `toml:"documentation_overhead_mb"`
	ThroughputMBPerSecond   int64  `toml:"throughput_mb_per_second"`
	MinFreeSpaceMB          int64  `toml:"min_free_space_mb"`
	DefaultNamingPattern    string `toml:"default_naming_pattern"`
}

// Batch contains per-job execution defaults applied when a job leaves them unset.
type Batch struct {
	MaxConcurrent         int `toml:"max_concurrent"`
	RetryAttempts         int `toml:"retry_attempts"`
	RetryDelaySeconds     int `toml:"retry_delay_seconds"`
	ConvertTimeoutSeconds int `toml:"convert_timeout_seconds"`
	FetchTimeoutSeconds   int `toml:"fetch_timeout_seconds"`
	UploadTimeoutSeconds  int `toml:"upload_timeout_seconds"`
}

// Scheduler contains configuration for the in-process job dispatcher.
type Scheduler struct {
	Workers                 int `toml:"workers"`
	QueueSize               int `toml:"queue_size"`
	RecoveryIntervalSeconds int `toml:"recovery_interval_seconds"`
}

// Converter contains configuration for the media format converter.
type Converter struct {
	Enabled      bool   `toml:"enabled"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Storage contains configuration for storage and cloud destinations.
type Storage struct {
	Provider             string `toml:"provider"`
	Bucket               string `toml:"bucket"`
	Prefix               string `toml:"prefix"`
	Region               string `toml:"region"`
	Endpoint             string `toml:"endpoint"`
	AccessKeyID          string `toml:"access_key_id"`
	SecretAccessKey      string `toml:"secret_access_key"`
	UseSSL               bool   `toml:"use_ssl"`
	CredentialsFile      string `toml:"credentials_file"`
	LocalDir             string `toml:"local_dir"`
	PresignExpirySeconds int    `toml:"presign_expiry_seconds"`
}

// FTP contains configuration for FTP destinations.
type FTP struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Directory      string `toml:"directory"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Email contains configuration for email delivery and email notifications.
type Email struct {
	Provider        string `toml:"provider"`
	From            string `toml:"from"`
	SMTPHost        string `toml:"smtp_host"`
	SMTPPort        int    `toml:"smtp_port"`
	SMTPUsername    string `toml:"smtp_username"`
	SMTPPassword    string `toml:"smtp_password"`
	SendGridAPIKey  string `toml:"sendgrid_api_key"`
	MailgunDomain   string `toml:"mailgun_domain"`
	MailgunAPIKey   string `toml:"mailgun_api_key"`
	MaxAttachmentMB int64  `toml:"max_attachment_mb"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for job completion notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	AMQPURL        string `toml:"amqp_url"`
	AMQPExchange   string `toml:"amqp_exchange"`
	AMQPRoutingKey string `toml:"amqp_routing_key"`
	Email          bool   `toml:"email"`
}

// PlatformAPI contains configuration for platform upload destinations.
type PlatformAPI struct {
	BaseURL          string            `toml:"base_url"`
	Tokens           map[string]string `toml:"tokens"`
	TimeoutSeconds   int               `toml:"timeout_seconds"`
	FailureThreshold int               `toml:"failure_threshold"`
	CooldownSeconds  int               `toml:"cooldown_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Shipyard.
//
// Configuration sections by subsystem:
//   - Paths: work, output, and log directories
//   - RenderSource: rendered campaign catalog and asset library
//   - Export: admission cap and estimator heuristics
//   - Batch: default per-job concurrency, retries, and I/O timeouts
//   - Scheduler: dispatcher worker count and backlog size
//   - Converter: ffmpeg-backed format conversion
//   - Storage: storage/cloud destination provider
//   - FTP: FTP destination server
//   - Email: email delivery provider
//   - Notifications: ntfy, AMQP, and email notifications
//   - PlatformAPI: platform upload endpoint and tokens
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	RenderSource  RenderSource  `toml:"render_source"`
	Export        Export        `toml:"export"`
	Batch         Batch         `toml:"batch"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Converter     Converter     `toml:"converter"`
	Storage       Storage       `toml:"storage"`
	FTP           FTP           `toml:"ftp"`
	Email         Email         `toml:"email"`
	Notifications Notifications `toml:"notifications"`
	PlatformAPI   PlatformAPI   `toml:"platform_api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shipyard/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shipyard.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for processing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxExportSize returns the admission cap in bytes. Zero disables the cap.
func (c *Config) MaxExportSize() int64 {
	return c.Export.MaxExportSizeMB * mib
}

// RetryDelay returns the default delay between per-campaign retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Batch.RetryDelaySeconds) * time.Second
}

// ConvertTimeout bounds a single format conversion.
func (c *Config) ConvertTimeout() time.Duration {
	return seconds(c.Batch.ConvertTimeoutSeconds, 10*time.Minute)
}

// FetchTimeout bounds a single render output or asset fetch.
func (c *Config) FetchTimeout() time.Duration {
	return seconds(c.Batch.FetchTimeoutSeconds, 2*time.Minute)
}

// UploadTimeout bounds a single delivery upload.
func (c *Config) UploadTimeout() time.Duration {
	return seconds(c.Batch.UploadTimeoutSeconds, 10*time.Minute)
}

// QueueDBPath returns the location of the job database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.LogDir, "jobs.db")
}

// JobWorkDir returns the staging directory for one export job.
func (c *Config) JobWorkDir(jobID string) string {
	return filepath.Join(c.Paths.WorkDir, "jobs", jobID)
}

// LogPath returns the JSON log file written by the daemon.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "shipyard.log")
}

// PIDPath returns the file holding the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "shipyardd.pid")
}

// LockPath returns the location of the worker daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "shipyardd.lock")
}

const mib = 1024 * 1024

func seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
