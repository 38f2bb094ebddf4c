// Package platforms holds the static catalogue of social platform delivery
// constraints and validates campaigns against them.
//
// The registry is built once and never mutated, so lookups are safe from any
// number of goroutines without locking.
package platforms

import (
	"sort"
	"strings"

	"shipyard/internal/naming"
)

// Dimension is one size a platform expects for a given placement.
type Dimension struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	AspectRatio string `json:"aspect_ratio"`
	Purpose     string `json:"purpose"`
}

// Quality carries the platform's recommended encoding settings.
type Quality struct {
	Target      int    `json:"target"`
	Compression string `json:"compression"`
	ColorSpace  string `json:"color_space"`
}

// Spec describes what a platform accepts.
type Spec struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ImageFormats []string     `json:"image_formats"`
	VideoFormats []string     `json:"video_formats"`
	MaxFileSize  int64        `json:"max_file_size"`
	Dimensions   []Dimension  `json:"dimensions"`
	Naming       naming.Rules `json:"naming"`
	Quality      Quality      `json:"quality"`
}

// AllowedFormats returns image formats followed by video formats.
func (s Spec) AllowedFormats() []string {
	out := make([]string, 0, len(s.ImageFormats)+len(s.VideoFormats))
	out = append(out, s.ImageFormats...)
	return append(out, s.VideoFormats...)
}

// Accepts reports whether format is an allowed image or video format.
func (s Spec) Accepts(format string) bool {
	format = normalizeFormat(format)
	for _, allowed := range s.AllowedFormats() {
		if allowed == format {
			return true
		}
	}
	return false
}

// Registry is a read-only platform catalogue.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry returns a registry seeded with the built-in platforms.
func NewRegistry() *Registry {
	return NewRegistryFrom(builtinSpecs())
}

// NewRegistryFrom builds a registry from explicit specs, keyed by lowercase id.
func NewRegistryFrom(specs []Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, spec := range specs {
		r.specs[strings.ToLower(spec.ID)] = spec
	}
	return r
}

// Lookup returns the spec for a platform id.
func (r *Registry) Lookup(id string) (Spec, bool) {
	spec, ok := r.specs[strings.ToLower(strings.TrimSpace(id))]
	return spec, ok
}

// List returns every spec ordered by id.
func (r *Registry) List() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
