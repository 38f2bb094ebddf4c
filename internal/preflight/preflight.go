package preflight

import (
	"context"
	"strings"

	"shipyard/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results,
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	)
	if cfg.RenderSource.CatalogDir != "" {
		results = append(results, CheckDirectoryReadable("Campaign catalog", cfg.RenderSource.CatalogDir))
	}
	if cfg.Export.MinFreeSpaceMB > 0 {
		results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, cfg.Export.MinFreeSpaceMB))
	}

	if cfg.Converter.Enabled {
		results = append(results, CheckConverter(cfg))
	}
	if strings.TrimSpace(cfg.Storage.Provider) != "" {
		results = append(results, CheckStorageFromConfig(cfg))
	}
	if strings.TrimSpace(cfg.FTP.Host) != "" {
		results = append(results, CheckFTPFromConfig(cfg))
	}
	if strings.TrimSpace(cfg.Email.From) != "" || cfg.Notifications.Email {
		results = append(results, CheckEmailFromConfig(cfg))
	}
	if strings.TrimSpace(cfg.PlatformAPI.BaseURL) != "" {
		results = append(results, CheckPlatformAPI(ctx, cfg.PlatformAPI.BaseURL))
	}
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
