package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[0].Path != present {
		t.Fatalf("expected resolved path %q, got %q", present, results[0].Path)
	}
	if !results[1].Blocking() {
		t.Fatal("a missing required binary should block")
	}
	optional := CheckBinaries([]Requirement{{Name: "Extra", Command: "clearly-not-present-binary", Optional: true}})
	if optional[0].Blocking() {
		t.Fatal("a missing optional binary should not block")
	}
}

func TestCheckFFmpegConfiguredBinary(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	if err := os.WriteFile(ffmpegPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	status := CheckFFmpeg(ffmpegPath, true)
	if !status.Available {
		t.Fatalf("expected configured ffmpeg to be available, got detail %q", status.Detail)
	}
	if status.Command != ffmpegPath {
		t.Fatalf("expected command %q, got %q", ffmpegPath, status.Command)
	}
	if status.Optional {
		t.Fatal("enabled converter should make ffmpeg required")
	}
}

func TestCheckFFmpegPathFallback(t *testing.T) {
	binDir := t.TempDir()
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	if err := os.WriteFile(ffmpegPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	if got := ResolveFFmpegPath(""); got != ffmpegPath {
		t.Fatalf("expected PATH lookup to find %q, got %q", ffmpegPath, got)
	}
	status := CheckFFmpeg("", false)
	if !status.Available || !status.Optional {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFmpeg("", true)
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func TestCheckFFmpegNotExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if status := CheckFFmpeg(path, true); status.Available {
		t.Fatal("expected non-executable file to be unavailable")
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
