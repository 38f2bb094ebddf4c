package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRenderSource(); err != nil {
		return err
	}
	c.normalizeExport()
	c.normalizeBatch()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeEmail()
	c.normalizeNotifications()
	c.normalizePlatformAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRenderSource() error {
	var err error
	if strings.TrimSpace(c.RenderSource.CatalogDir) == "" {
		c.RenderSource.CatalogDir = defaultCatalogDir
	}
	if c.RenderSource.CatalogDir, err = expandPath(c.RenderSource.CatalogDir); err != nil {
		return fmt.Errorf("render_source.catalog_dir: %w", err)
	}
	if c.RenderSource.AssetDir, err = expandPath(strings.TrimSpace(c.RenderSource.AssetDir)); err != nil {
		return fmt.Errorf("render_source.asset_dir: %w", err)
	}
	if c.RenderSource.HTTPTimeoutSeconds <= 0 {
		c.RenderSource.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeExport() {
	if c.Export.MaxExportSizeMB < 0 {
		c.Export.MaxExportSizeMB = 0
	}
	if c.Export.ThroughputMBPerSecond <= 0 {
		c.Export.ThroughputMBPerSecond = defaultThroughputMBPerSecond
	}
	c.Export.DefaultNamingPattern = strings.TrimSpace(c.Export.DefaultNamingPattern)
	if c.Export.DefaultNamingPattern == "" {
		c.Export.DefaultNamingPattern = defaultNamingPattern
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.MaxConcurrent <= 0 {
		c.Batch.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Batch.RetryAttempts < 0 {
		c.Batch.RetryAttempts = 0
	}
	if c.Batch.RetryDelaySeconds < 0 {
		c.Batch.RetryDelaySeconds = 0
	}
}

func (c *Config) normalizeStorage() error {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	if c.Storage.Provider == "" {
		c.Storage.Provider = defaultStorageProvider
	}
	if c.Storage.AccessKeyID == "" {
		if value, ok := os.LookupEnv("SHIPYARD_STORAGE_ACCESS_KEY"); ok {
			c.Storage.AccessKeyID = value
		}
	}
	if c.Storage.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("SHIPYARD_STORAGE_SECRET_KEY"); ok {
			c.Storage.SecretAccessKey = value
		}
	}
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	if strings.TrimSpace(c.Storage.LocalDir) == "" {
		c.Storage.LocalDir = c.Paths.OutputDir
	}
	var err error
	if c.Storage.LocalDir, err = expandPath(c.Storage.LocalDir); err != nil {
		return fmt.Errorf("storage.local_dir: %w", err)
	}
	if c.Storage.CredentialsFile != "" {
		if c.Storage.CredentialsFile, err = expandPath(c.Storage.CredentialsFile); err != nil {
			return fmt.Errorf("storage.credentials_file: %w", err)
		}
	}
	if c.Storage.PresignExpirySeconds <= 0 {
		c.Storage.PresignExpirySeconds = defaultPresignExpirySeconds
	}
	return nil
}

func (c *Config) normalizeEmail() {
	c.Email.Provider = strings.ToLower(strings.TrimSpace(c.Email.Provider))
	if c.Email.Provider == "" {
		c.Email.Provider = defaultEmailProvider
	}
	if c.Email.SendGridAPIKey == "" {
		if value, ok := os.LookupEnv("SENDGRID_API_KEY"); ok {
			c.Email.SendGridAPIKey = value
		}
	}
	if c.Email.MailgunAPIKey == "" {
		if value, ok := os.LookupEnv("MAILGUN_API_KEY"); ok {
			c.Email.MailgunAPIKey = value
		}
	}
	if c.Email.SMTPPort <= 0 {
		c.Email.SMTPPort = defaultSMTPPort
	}
	if c.Email.MaxAttachmentMB <= 0 {
		c.Email.MaxAttachmentMB = defaultMaxAttachmentMB
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.AMQPURL = strings.TrimSpace(c.Notifications.AMQPURL)
	if c.Notifications.AMQPURL == "" {
		if value, ok := os.LookupEnv("SHIPYARD_AMQP_URL"); ok {
			c.Notifications.AMQPURL = value
		}
	}
	if strings.TrimSpace(c.Notifications.AMQPExchange) == "" {
		c.Notifications.AMQPExchange = defaultAMQPExchange
	}
	if strings.TrimSpace(c.Notifications.AMQPRoutingKey) == "" {
		c.Notifications.AMQPRoutingKey = defaultAMQPRoutingKey
	}
}

func (c *Config) normalizePlatformAPI() {
	c.PlatformAPI.BaseURL = strings.TrimRight(strings.TrimSpace(c.PlatformAPI.BaseURL), "/")
	normalized := make(map[string]string, len(c.PlatformAPI.Tokens))
	for platform, token := range c.PlatformAPI.Tokens {
		key := strings.ToLower(strings.TrimSpace(platform))
		if key == "" {
			continue
		}
		normalized[key] = strings.TrimSpace(token)
	}
	c.PlatformAPI.Tokens = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
