// Package convert transforms render output bytes between media formats and
// quality profiles.
//
// The Converter contract is bytes in, bytes out. Passthrough serves jobs that
// never change format; FFmpeg shells out to the ffmpeg CLI for real
// transcoding, scaling, and watermark overlays.
package convert

import (
	"context"
	"fmt"
	"strings"

	"shipyard/internal/services"
)

// Request describes a single conversion.
type Request struct {
	From        string
	To          string
	Profile     string
	Compression string
	Watermark   string
}

// TargetFormat returns the format the output will have.
func (r Request) TargetFormat() string {
	if to := normalizeFormat(r.To); to != "" {
		return to
	}
	return normalizeFormat(r.From)
}

// ChangesFormat reports whether the request changes the container/codec format.
func (r Request) ChangesFormat() bool {
	to := normalizeFormat(r.To)
	return to != "" && to != normalizeFormat(r.From)
}

// Required reports whether the request needs a converter at all: the format
// changes or the quality profile re-encodes.
func Required(r Request) bool {
	if r.ChangesFormat() {
		return true
	}
	_, reencode := profiles[strings.ToLower(strings.TrimSpace(r.Profile))]
	return reencode
}

// Converter converts media payloads.
type Converter interface {
	Convert(ctx context.Context, data []byte, req Request) ([]byte, error)
}

// Func adapts a function to the Converter interface.
type Func func(ctx context.Context, data []byte, req Request) ([]byte, error)

func (f Func) Convert(ctx context.Context, data []byte, req Request) ([]byte, error) {
	return f(ctx, data, req)
}

// Passthrough returns payloads unchanged. It refuses format changes so a job
// never silently ships mislabeled bytes.
type Passthrough struct{}

func (Passthrough) Convert(ctx context.Context, data []byte, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ChangesFormat() {
		return nil, services.Wrap(
			services.ErrConfiguration,
			"convert",
			"passthrough",
			fmt.Sprintf("converting %s to %s requires converter.enabled", normalizeFormat(req.From), normalizeFormat(req.To)),
			nil,
		)
	}
	return data, nil
}

// profile holds the encoder knobs applied for a named quality profile.
type profile struct {
	videoCRF   int
	imageQ     int
	maxWidth   int
	audioKbits int
}

// profiles lists the quality profiles that force a re-encode. "high" and an
// empty profile keep the source quality.
var profiles = map[string]profile{
	"web":   {videoCRF: 28, imageQ: 5, maxWidth: 1920, audioKbits: 128},
	"draft": {videoCRF: 35, imageQ: 10, maxWidth: 640, audioKbits: 96},
}

var sourceQuality = profile{videoCRF: 18, imageQ: 2, audioKbits: 192}

func profileFor(name string) profile {
	if p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return sourceQuality
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.TrimPrefix(format, ".")
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
