package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"shipyard/internal/logging"
)

func TestTeeHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, errorBuf bytes.Buffer
	info := slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	errs := slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError})

	logger := slog.New(logging.TeeHandler(info, errs))
	logger.Info("progress")
	logger.Error("failed")

	if !strings.Contains(infoBuf.String(), "progress") || !strings.Contains(infoBuf.String(), "failed") {
		t.Fatalf("info handler missing records: %q", infoBuf.String())
	}
	if strings.Contains(errorBuf.String(), "progress") {
		t.Fatalf("error handler should skip info records: %q", errorBuf.String())
	}
	if !strings.Contains(errorBuf.String(), "failed") {
		t.Fatalf("error handler missing error record: %q", errorBuf.String())
	}
}

func TestTeeHandlerPreservesAttrs(t *testing.T) {
	var baseBuf, extraBuf bytes.Buffer
	handler := logging.TeeHandler(slog.NewTextHandler(&baseBuf, nil), nil, slog.NewTextHandler(&extraBuf, nil))
	logger := slog.New(handler).With(logging.String("job_id", "j1"))
	logger.Info("hello")

	for _, out := range []string{baseBuf.String(), extraBuf.String()} {
		if !strings.Contains(out, "job_id=j1") {
			t.Fatalf("expected attr in output, got %q", out)
		}
	}
}

func TestTeeHandlerWithNoHandlersIsNoop(t *testing.T) {
	logger := slog.New(logging.TeeHandler())
	logger.Info("dropped")
}
