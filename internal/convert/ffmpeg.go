package convert

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"shipyard/internal/services"
)

var videoFormats = map[string]bool{
	"mp4": true, "mov": true, "webm": true, "mkv": true, "avi": true, "gif": true,
}

// FFmpeg converts payloads by running the ffmpeg CLI against temp files.
type FFmpeg struct {
	Binary  string
	WorkDir string
	Timeout time.Duration
}

// NewFFmpeg constructs an ffmpeg-backed converter.
func NewFFmpeg(binary, workDir string, timeout time.Duration) *FFmpeg {
	return &FFmpeg{Binary: binary, WorkDir: workDir, Timeout: timeout}
}

func (f *FFmpeg) Convert(ctx context.Context, data []byte, req Request) ([]byte, error) {
	binary := strings.TrimSpace(f.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	if f.WorkDir != "" {
		if err := os.MkdirAll(f.WorkDir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "convert", "ffmpeg", "create work dir", err)
		}
	}
	tempDir, err := os.MkdirTemp(f.WorkDir, "convert-")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "convert", "ffmpeg", "create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	from := normalizeFormat(req.From)
	if from == "" {
		from = "bin"
	}
	input := filepath.Join(tempDir, "input."+from)
	output := filepath.Join(tempDir, "output."+req.TargetFormat())
	if err := os.WriteFile(input, data, 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransient, "convert", "ffmpeg", "stage input", err)
	}

	args := BuildArgs(input, output, req)
	cmd := exec.CommandContext(ctx, binary, args...)
	combined, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, services.Wrap(services.ErrTimeout, "convert", "ffmpeg", "conversion timed out", err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "convert", "ffmpeg", strings.TrimSpace(lastLine(string(combined))), err)
	}

	converted, err := os.ReadFile(output)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "ffmpeg", "read output", err)
	}
	return converted, nil
}

// BuildArgs assembles the ffmpeg argument list for a conversion.
func BuildArgs(input, output string, req Request) []string {
	p := profileFor(req.Profile)
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input}

	var filters []string
	if p.maxWidth > 0 {
		filters = append(filters, fmt.Sprintf("scale='min(%d,iw)':-2", p.maxWidth))
	}
	if text := strings.TrimSpace(req.Watermark); text != "" {
		filters = append(filters, "drawtext=text='"+escapeDrawtext(text)+"':x=w-tw-24:y=h-th-24:fontsize=24:fontcolor=white@0.6")
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	target := req.TargetFormat()
	switch {
	case target == "gif":
	case videoFormats[target]:
		crf := p.videoCRF
		if strings.EqualFold(req.Compression, "lossless") {
			crf = 0
		}
		args = append(args, "-crf", strconv.Itoa(crf), "-b:a", strconv.Itoa(p.audioKbits)+"k")
	case target == "jpg" || target == "webp":
		args = append(args, "-q:v", strconv.Itoa(p.imageQ))
	}
	return append(args, output)
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	return replacer.Replace(text)
}

func lastLine(output string) string {
	output = strings.TrimSpace(output)
	if idx := strings.LastIndex(output, "\n"); idx >= 0 {
		return output[idx+1:]
	}
	if output == "" {
		return "ffmpeg failed"
	}
	return output
}
