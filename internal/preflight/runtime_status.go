package preflight

import (
	"fmt"
	"strings"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/mailer"
	"shipyard/internal/services/ftp"
	"shipyard/internal/storage"
)

// CheckStorageFromConfig validates the default storage provider settings.
func CheckStorageFromConfig(cfg *config.Config) Result {
	const name = "Storage"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if err := storage.Validate(cfg.Storage); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Storage.Provider))
	if provider == "" || provider == "filesystem" {
		return CheckDirectoryAccess(name, cfg.Storage.LocalDir)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s bucket %s", provider, cfg.Storage.Bucket)}
}

// CheckFTPFromConfig validates the default FTP server settings.
func CheckFTPFromConfig(cfg *config.Config) Result {
	const name = "FTP"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	target, err := ftp.ResolveTarget(cfg.FTP, export.Destination{Type: export.DestinationFTP})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	user := target.Username
	if user == "" {
		user = "anonymous"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s@%s", user, target.Addr)}
}

// CheckEmailFromConfig validates the email provider settings.
func CheckEmailFromConfig(cfg *config.Config) Result {
	const name = "Email"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Email.From) == "" {
		return Result{Name: name, Detail: "Missing sender address"}
	}
	if _, err := mailer.New(cfg.Email); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	provider := strings.TrimSpace(cfg.Email.Provider)
	if provider == "" {
		provider = "smtp"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s as %s", provider, cfg.Email.From)}
}
