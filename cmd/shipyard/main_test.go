package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shipyard/internal/config"
	"shipyard/internal/export"
	"shipyard/internal/rendersource"
)

func TestPlatformsCommandsNeedNoConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, _, err := runCLI(t, []string{"platforms", "list"}, "")
	if err != nil {
		t.Fatalf("platforms list: %v", err)
	}
	requireContains(t, out, "instagram", "youtube", "tiktok")

	out, _, err = runCLI(t, []string{"platforms", "show", "instagram"}, "")
	if err != nil {
		t.Fatalf("platforms show: %v", err)
	}
	requireContains(t, out, "Instagram", "1080x1080")

	if _, _, err := runCLI(t, []string{"platforms", "show", "myspace"}, ""); err == nil {
		t.Fatal("expected unknown platform error")
	}
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "shipyard.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.FTP.Password = "hunter2"
	writeTestConfig(t, env.configPath, env.cfg)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, env.configPath, "Configuration valid")

	out, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "work_dir", "********")
	if strings.Contains(out, "hunter2") {
		t.Fatalf("secret leaked into config show:\n%s", out)
	}
}

func TestJobLifecycleCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addCampaign(t, "c1", rendersource.CampaignCompleted)
	env.addCampaign(t, "c2", rendersource.CampaignCompleted)

	out, err := env.run(t, "job", "create", "c1", "c2", "--name", "Spring launch", "--packaging", "zip")
	if err != nil {
		t.Fatalf("job create: %v", err)
	}
	requireContains(t, out, "Created job", "(queued)", "2 campaigns")

	jobs := env.jobs(t)
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.CreatedBy != "tester" || job.Format.Packaging != export.PackagingZip {
		t.Fatalf("unexpected job %+v", job)
	}

	out, err = env.run(t, "job", "list")
	if err != nil {
		t.Fatalf("job list: %v", err)
	}
	requireContains(t, out, shortID(job.ID), "Spring launch", "Queued", "0/2")

	out, err = env.run(t, "job", "status", shortID(job.ID))
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	requireContains(t, out, job.ID, "Queued", "0/2")

	out, err = env.run(t, "job", "cancel", job.ID)
	if err != nil {
		t.Fatalf("job cancel: %v", err)
	}
	requireContains(t, out, "Cancelled job "+job.ID)

	out, err = env.run(t, "job", "list", "--status", "cancelled")
	if err != nil {
		t.Fatalf("job list --status: %v", err)
	}
	requireContains(t, out, "Spring launch", "Cancelled")

	out, err = env.run(t, "job", "list", "--status", "queued")
	if err != nil {
		t.Fatalf("job list queued: %v", err)
	}
	requireContains(t, out, "No export jobs")

	if _, err := env.run(t, "job", "list", "--status", "paused"); err == nil {
		t.Fatal("expected unknown status error")
	}
}

func TestJobCreateRefusesUnfinishedCampaign(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addCampaign(t, "c1", rendersource.CampaignRendering)

	_, err := env.run(t, "job", "create", "c1")
	if err == nil || !strings.Contains(err.Error(), "not completed") {
		t.Fatalf("expected admission error, got %v", err)
	}
	if jobs := env.jobs(t); len(jobs) != 0 {
		t.Fatalf("expected nothing persisted, got %d jobs", len(jobs))
	}
}

func TestJobCreateAndProcessInForeground(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addCampaign(t, "c1", rendersource.CampaignCompleted)

	out, err := env.run(t, "job", "create", "c1", "--packaging", "individual", "--process", "--json")
	if err != nil {
		t.Fatalf("job create --process: %v", err)
	}
	var job export.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode job json: %v\n%s", err, out)
	}
	if job.Status != export.StatusCompleted || job.Progress != 100 {
		t.Fatalf("expected completed job, got %s at %d%%: %v", job.Status, job.Progress, job.Errors)
	}

	out, err = env.run(t, "job", "show", job.ID)
	if err != nil {
		t.Fatalf("job show: %v", err)
	}
	requireContains(t, out, "Completed", "c1", "Campaign c1")
}

func TestTemplateCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addCampaign(t, "c1", rendersource.CampaignCompleted)

	out, err := env.run(t, "template", "create", "weekly", "--packaging", "tar", "--category", "ops", "--manifest")
	if err != nil {
		t.Fatalf("template create: %v", err)
	}
	requireContains(t, out, "Created template weekly")

	if _, err := env.run(t, "template", "create", "weekly"); err == nil {
		t.Fatal("expected duplicate template error")
	}

	if _, err := env.run(t, "job", "create", "c1", "--template", "weekly"); err != nil {
		t.Fatalf("job create --template: %v", err)
	}
	jobs := env.jobs(t)
	if len(jobs) != 1 || jobs[0].Format.Packaging != export.PackagingTar || !jobs[0].Options.CreateManifest {
		t.Fatalf("job did not inherit template settings: %+v", jobs)
	}

	out, err = env.run(t, "template", "list")
	if err != nil {
		t.Fatalf("template list: %v", err)
	}
	requireContains(t, out, "weekly", "ops", "1")

	out, err = env.run(t, "template", "delete", "weekly")
	if err != nil {
		t.Fatalf("template delete: %v", err)
	}
	requireContains(t, out, "Deleted template weekly")

	out, err = env.run(t, "template", "list")
	if err != nil {
		t.Fatalf("template list after delete: %v", err)
	}
	requireContains(t, out, "No templates")
}

func TestEstimateCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addCampaign(t, "c1", rendersource.CampaignCompleted)
	env.addCampaign(t, "c2", rendersource.CampaignCompleted)

	out, err := env.run(t, "estimate", "c1", "c2")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	requireContains(t, out, "c1", "c2", "Total:")

	if jobs := env.jobs(t); len(jobs) != 0 {
		t.Fatalf("estimate must not create jobs, got %d", len(jobs))
	}
}

func TestStatusCommandReportsStoppedDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addCampaign(t, "c1", rendersource.CampaignCompleted)
	if _, err := env.run(t, "job", "create", "c1"); err != nil {
		t.Fatalf("job create: %v", err)
	}

	out, err := env.run(t, "status", "--skip-checks")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon", "not running", "Queued", "Dependencies", "FFmpeg")
	if strings.Contains(out, "Checks") {
		t.Fatalf("--skip-checks still ran checks:\n%s", out)
	}
}

func TestRedactedMasksOnlySetSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Email.SendGridAPIKey = "SG.secret"
	cfg.PlatformAPI.Tokens = map[string]string{"youtube": "yt-token"}

	masked := redacted(cfg)
	if masked.Email.SendGridAPIKey != "********" || masked.PlatformAPI.Tokens["youtube"] != "********" {
		t.Fatalf("secrets not masked: %+v", masked.Email)
	}
	if masked.Email.MailgunAPIKey != "" {
		t.Fatalf("empty secret should stay empty, got %q", masked.Email.MailgunAPIKey)
	}
	if cfg.PlatformAPI.Tokens["youtube"] != "yt-token" {
		t.Fatal("redacted mutated the caller's token map")
	}
}

func TestLogsCommandFiltersByJob(t *testing.T) {
	env := setupCLITestEnv(t)
	records := strings.Join([]string{
		`{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"export job created","component":"workflow","job_id":"aaaa1111"}`,
		`{"time":"2026-03-01T10:00:01Z","level":"WARN","msg":"campaign export failed","component":"workflow","job_id":"bbbb2222","campaign_id":"c9"}`,
		`{"time":"2026-03-01T10:00:02Z","level":"INFO","msg":"export job completed","component":"workflow","job_id":"aaaa1111"}`,
	}, "\n") + "\n"
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(env.cfg.LogPath(), []byte(records), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, err := env.run(t, "logs", "--job", "aaaa")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "export job created", "export job completed")
	if strings.Contains(out, "campaign export failed") {
		t.Fatalf("filter let another job through:\n%s", out)
	}

	out, err = env.run(t, "logs", "--level", "warn", "--raw")
	if err != nil {
		t.Fatalf("logs --level: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), "\n") != 0 || !strings.Contains(out, `"campaign_id":"c9"`) {
		t.Fatalf("expected the single raw warn record, got:\n%s", out)
	}
}
