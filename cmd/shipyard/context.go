package main

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"shipyard/internal/config"
	"shipyard/internal/jobstore"
	"shipyard/internal/logging"
	"shipyard/internal/rendersource"
	"shipyard/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the job database for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *jobstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := jobstore.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withManager builds a workflow manager over the job database and the
// configured campaign catalog. CLI commands log warnings and errors only.
func (c *commandContext) withManager(fn func(*workflow.Manager) error) error {
	return c.withStore(func(cfg *config.Config, store *jobstore.Store) error {
		logger, err := logging.New(logging.Options{
			Level:       "warn",
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stderr"},
		})
		if err != nil {
			return err
		}
		timeout := time.Duration(cfg.RenderSource.HTTPTimeoutSeconds) * time.Second
		source := rendersource.NewCatalog(cfg.RenderSource.CatalogDir, nil, timeout)
		return fn(workflow.NewManager(cfg, store, source, logger))
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
