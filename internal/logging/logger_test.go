package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shipyard/internal/config"
	"shipyard/internal/logging"
	"shipyard/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("job queued", logging.String(logging.FieldJobID, "job-1"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "shipyard.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", content, err)
	}
	if record["msg"] != "job queued" || record["job_id"] != "job-1" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if ts, ok := record["time"].(string); !ok || !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC time key, got %v", record["time"])
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleSubjectUsesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "subject.log")
	base, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "0123456789abcdef")
	ctx = services.WithCampaignID(ctx, "spring-sale")
	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "exporter"))
	logger.Info("campaign exported", logging.Int("file_count", 3))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"[exporter]", "Job 01234567", "campaign spring-sale", "campaign exported", "- file_count: 3"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
}

func TestConsoleHidesFieldsBeyondLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "limit.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	attrs := make([]logging.Attr, 0, 10)
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		attrs = append(attrs, logging.String(key, key))
	}
	logger.Info("many fields", logging.Args(attrs...)...)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "+ 2 more fields hidden") {
		t.Fatalf("expected hidden field summary, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "delivery degraded", "delivery_retry")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldEventType] != "delivery_retry" {
		t.Fatalf("expected event_type, got %v", record)
	}
	if record[logging.FieldErrorHint] == nil || record[logging.FieldImpact] == nil {
		t.Fatalf("expected injected hint and impact, got %v", record)
	}
}
