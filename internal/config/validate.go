package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateConverter(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout":       c.Notifications.RequestTimeout,
		"scheduler.workers":                   c.Scheduler.Workers,
		"scheduler.queue_size":                c.Scheduler.QueueSize,
		"scheduler.recovery_interval_seconds": c.Scheduler.RecoveryIntervalSeconds,
		"platform_api.timeout_seconds":        c.PlatformAPI.TimeoutSeconds,
		"platform_api.failure_threshold":      c.PlatformAPI.FailureThreshold,
		"platform_api.cooldown_seconds":       c.PlatformAPI.CooldownSeconds,
		"ftp.timeout_seconds":                 c.FTP.TimeoutSeconds,
		"email.timeout_seconds":               c.Email.TimeoutSeconds,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case "filesystem":
		return nil
	case "s3", "minio", "gcs", "azure":
	default:
		return fmt.Errorf("storage.provider %q is not supported (use filesystem, s3, minio, gcs, or azure)", c.Storage.Provider)
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("storage.bucket must be set when storage.provider is %s", c.Storage.Provider)
	}
	switch c.Storage.Provider {
	case "minio":
		if strings.TrimSpace(c.Storage.Endpoint) == "" {
			return errors.New("storage.endpoint must be set when storage.provider is minio")
		}
	case "azure":
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return errors.New("storage.access_key_id (account name) and storage.secret_access_key (account key) must be set for azure")
		}
	}
	return nil
}

func (c *Config) validateEmail() error {
	switch c.Email.Provider {
	case "smtp", "sendgrid", "mailgun":
	default:
		return fmt.Errorf("email.provider %q is not supported (use smtp, sendgrid, or mailgun)", c.Email.Provider)
	}
	if c.Notifications.Email && strings.TrimSpace(c.Email.From) == "" {
		return errors.New("email.from must be set when notifications.email is true")
	}
	return nil
}

func (c *Config) validateConverter() error {
	if c.Converter.Enabled && strings.TrimSpace(c.Converter.FFmpegBinary) == "" {
		return errors.New("converter.ffmpeg_binary must be set when converter.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
