package testsupport

import (
	"path/filepath"
	"testing"

	"shipyard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.RenderSource.CatalogDir = filepath.Join(base, "catalog")
	cfgVal.Storage.LocalDir = filepath.Join(base, "storage")
	cfgVal.Converter.Enabled = false
	cfgVal.Batch.RetryDelaySeconds = 0
	cfgVal.Export.MinFreeSpaceMB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithMaxExportSizeMB overrides the admission cap.
func WithMaxExportSizeMB(limit int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.MaxExportSizeMB = limit
	}
}

// WithMaxConcurrent overrides the default per-job parallelism.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.MaxConcurrent = n
	}
}

// WithRetryAttempts overrides the default per-campaign retry count.
func WithRetryAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.RetryAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
