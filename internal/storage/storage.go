// Package storage uploads export artifacts to object stores.
//
// Providers: filesystem (a local mirror directory), s3, minio, gcs, and
// azure. Each upload returns a URL the recipient can use: a presigned or SAS
// link when the provider supports it, a provider URI otherwise.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/services"
)

// Uploader stores local files under object keys.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) (string, error)
	Close() error
}

// Settings returns the storage settings for a destination. Destination config
// keys provider, bucket, prefix, region, and endpoint override the defaults.
func Settings(cfg config.Storage, dest export.Destination) config.Storage {
	if v := dest.Value("provider"); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if v := dest.Value("bucket"); v != "" {
		cfg.Bucket = v
	}
	if v := dest.Value("prefix"); v != "" {
		cfg.Prefix = strings.Trim(v, "/")
	}
	if v := dest.Value("region"); v != "" {
		cfg.Region = v
	}
	if v := dest.Value("endpoint"); v != "" {
		cfg.Endpoint = v
	}
	return cfg
}

// Validate checks that the settings name a known provider and carry the fields
// it needs. It makes no network calls.
func Validate(cfg config.Storage) error {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	missing := func(field string) error {
		return services.Wrap(services.ErrConfiguration, "storage", "validate",
			fmt.Sprintf("%s provider requires %s", provider, field), nil)
	}
	switch provider {
	case "", "filesystem":
		if strings.TrimSpace(cfg.LocalDir) == "" {
			provider = "filesystem"
			return missing("local_dir")
		}
		return nil
	case "s3", "gcs":
	case "minio":
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return missing("endpoint")
		}
	case "azure":
		if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
			return missing("account name and key")
		}
	default:
		return services.Wrap(services.ErrConfiguration, "storage", "validate", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return missing("bucket")
	}
	return nil
}

// New builds the uploader for the configured provider.
func New(ctx context.Context, cfg config.Storage) (Uploader, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "filesystem":
		return NewFilesystem(cfg.LocalDir, cfg.Prefix), nil
	case "s3":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinio(cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	case "azure":
		return NewAzure(cfg)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}

// ObjectKey joins a prefix and key parts with forward slashes.
func ObjectKey(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		all = append(all, prefix)
	}
	for _, part := range parts {
		if part = strings.Trim(filepath.ToSlash(part), "/"); part != "" {
			all = append(all, part)
		}
	}
	return path.Join(all...)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func presignExpiry(cfg config.Storage) time.Duration {
	if cfg.PresignExpirySeconds <= 0 {
		return time.Hour
	}
	return time.Duration(cfg.PresignExpirySeconds) * time.Second
}

func uploadError(provider, key string, err error) error {
	return services.Wrap(services.ErrTransient, "storage", provider, "upload "+key, err)
}
