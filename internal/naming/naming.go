// Package naming generates export file names from patterns and resolves the
// per-campaign version tag shared by every file of one export.
//
// Patterns use {key} placeholders. Keys without a value are left verbatim so
// a typo in a pattern is visible in the produced name rather than silently
// dropped; Validate reports such leftovers as violations.
package naming

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"shipyard/internal/export"
	"shipyard/internal/textutil"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// ApplyPattern substitutes {key} placeholders with vars[key].
func ApplyPattern(pattern string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(pattern, func(token string) string {
		key := token[1 : len(token)-1]
		if value, ok := vars[key]; ok {
			return value
		}
		return token
	})
}

// Placeholders lists the placeholder keys a pattern references, in order.
func Placeholders(pattern string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(pattern, -1)
	keys := make([]string, 0, len(matches))
	for _, match := range matches {
		keys = append(keys, match[1])
	}
	return keys
}

const timestampLayout = "20060102-150405"

// GenerateVersion produces a version tag for one campaign export.
//
//   - timestamp: prefix + UTC YYYYMMDD-HHMMSS
//   - hash: prefix + 8 random hex characters
//   - increment and anything else: prefix (default "v") + "1.0.0"
//
// The increment strategy is pinned to 1.0.0; no counter is tracked between runs.
func GenerateVersion(strategy export.VersioningStrategy, prefix string, now time.Time) string {
	switch strategy {
	case export.VersionTimestamp:
		return prefix + now.UTC().Format(timestampLayout)
	case export.VersionHash:
		return prefix + randomToken()
	default:
		if prefix == "" {
			prefix = "v"
		}
		return prefix + "1.0.0"
	}
}

// ResolveVersion applies the job's versioning options. Disabled versioning
// falls back to the increment strategy.
func ResolveVersion(v export.Versioning, now time.Time) string {
	if !v.Enabled {
		return GenerateVersion(export.VersionIncrement, v.Prefix, now)
	}
	return GenerateVersion(v.Strategy, v.Prefix, now)
}

func randomToken() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(buf)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Sanitize makes a name filesystem safe: accents are folded to ASCII, unsafe
// characters are replaced, and whitespace runs become underscores.
func Sanitize(name string) string {
	name = textutil.SanitizeFileName(name)
	return whitespaceRun.ReplaceAllString(name, "_")
}
