package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/jobstore"
	"shipyard/internal/rendersource"
	"shipyard/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	t.Setenv("USER", "tester")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "shipyard.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func (e *cliTestEnv) addCampaign(t *testing.T, id string, status rendersource.CampaignStatus) {
	t.Helper()
	testsupport.WriteCampaign(t, e.cfg.RenderSource.CatalogDir, rendersource.Campaign{
		ID:      id,
		Name:    "Campaign " + id,
		Status:  status,
		Outputs: []rendersource.Output{{ID: id + "-hero", Name: "hero.png", Format: "png", Size: 4096, Width: 1080, Height: 1080}},
	}, nil)
}

func (e *cliTestEnv) jobs(t *testing.T) []*export.Job {
	t.Helper()
	store, err := jobstore.Open(e.cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	defer store.Close()
	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return jobs
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, e.configPath)
	return stdout, err
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output string, fragments ...string) {
	t.Helper()
	for _, fragment := range fragments {
		if !strings.Contains(output, fragment) {
			t.Fatalf("expected output to contain %q\n%s", fragment, output)
		}
	}
}
