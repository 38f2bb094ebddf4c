package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"shipyard/internal/config"
	"shipyard/internal/deps"
)

// CheckPlatformAPI verifies that the platform upload endpoint answers. Any
// response below 500 counts as reachable; authentication is checked per upload.
func CheckPlatformAPI(ctx context.Context, baseURL string) Result {
	const name = "Platform API"
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minMB mebibytes available to unprivileged users.
func CheckFreeSpace(name, path string, minMB int64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	available := int64(stat.Bavail) * int64(stat.Bsize)
	required := minMB << 20
	detail := fmt.Sprintf("%s free, %s required", humanize.IBytes(uint64(available)), humanize.IBytes(uint64(required)))
	if available < required {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckConverter reports whether the configured ffmpeg binary is usable.
func CheckConverter(cfg *config.Config) Result {
	status := deps.CheckFFmpeg(cfg.Converter.FFmpegBinary, cfg.Converter.Enabled)
	if !status.Available {
		return Result{Name: "Converter", Detail: status.Detail}
	}
	return Result{Name: "Converter", Passed: true, Detail: status.Command}
}

// CheckSystemDeps evaluates external binaries for the given config. Both the
// daemon and the CLI status command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	statuses := []deps.Status{deps.CheckFFmpeg(cfg.Converter.FFmpegBinary, cfg.Converter.Enabled)}
	statuses = append(statuses, deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     "ffprobe",
			Description: "Inspects converted media",
			Optional:    true,
		},
	})...)
	return statuses
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "reachability check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "reachability check timed out"
	}
	return err.Error()
}
