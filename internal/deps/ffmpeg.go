package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

const defaultFFmpeg = "ffmpeg"

// ResolveFFmpegPath returns the ffmpeg binary the converter should execute.
// A configured value wins; otherwise "ffmpeg" is resolved from PATH. When
// nothing resolves the bare command name is returned so exec reports the error.
func ResolveFFmpegPath(configured string) string {
	candidate := strings.TrimSpace(configured)
	if candidate == "" {
		candidate = defaultFFmpeg
	}
	if resolved, err := exec.LookPath(candidate); err == nil {
		return resolved
	}
	return candidate
}

// CheckFFmpeg reports whether the converter binary is usable. The converter is
// optional: when disabled, a missing binary is reported but not required.
func CheckFFmpeg(configured string, enabled bool) Status {
	result := Status{
		Name:        "FFmpeg",
		Description: "Converts render outputs to platform formats and applies watermarks",
		Optional:    !enabled,
	}
	command := ResolveFFmpegPath(configured)
	result.Command = command

	info, err := os.Stat(command)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", command)
		return result
	}
	if !isExecutable(info) {
		result.Detail = fmt.Sprintf("%s is not executable", command)
		return result
	}
	result.Path = command
	result.Available = true
	return result
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
