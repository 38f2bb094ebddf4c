package naming_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"shipyard/internal/export"
	"shipyard/internal/naming"
)

func TestApplyPatternSubstitutesKnownKeys(t *testing.T) {
	got := naming.ApplyPattern("{campaign}_{format}", map[string]string{"campaign": "X", "format": "mp4"})
	if got != "X_mp4" {
		t.Fatalf("ApplyPattern = %q, want X_mp4", got)
	}
}

func TestApplyPatternLeavesUnknownPlaceholders(t *testing.T) {
	got := naming.ApplyPattern("{campaign}_{purpose}.{format}", map[string]string{"campaign": "spring", "format": "jpg"})
	if got != "spring_{purpose}.jpg" {
		t.Fatalf("ApplyPattern = %q", got)
	}
	if keys := naming.Placeholders(got); len(keys) != 1 || keys[0] != "purpose" {
		t.Fatalf("Placeholders = %v", keys)
	}
}

func TestGenerateVersionStrategies(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("EST", -5*3600))

	if got := naming.GenerateVersion(export.VersionTimestamp, "r", now); got != "r20260314-142653" {
		t.Fatalf("timestamp version = %q", got)
	}
	hash := naming.GenerateVersion(export.VersionHash, "h-", now)
	if !regexp.MustCompile(`^h-[0-9a-f]{8}$`).MatchString(hash) {
		t.Fatalf("hash version = %q", hash)
	}
	if got := naming.GenerateVersion(export.VersionIncrement, "", now); got != "v1.0.0" {
		t.Fatalf("increment version = %q", got)
	}
	if got := naming.GenerateVersion("bogus", "rel-", now); got != "rel-1.0.0" {
		t.Fatalf("unknown strategy version = %q", got)
	}
	if got := naming.ResolveVersion(export.Versioning{Enabled: false, Strategy: export.VersionTimestamp}, now); got != "v1.0.0" {
		t.Fatalf("disabled versioning = %q", got)
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	rules := naming.Rules{MaxLength: 10, AllowedChars: `a-zA-Z0-9_\-.`}
	issues := naming.Validate("spring launch {slot}.mp4", rules)
	if len(issues) != 3 {
		t.Fatalf("expected length, charset and placeholder issues, got %v", issues)
	}
	joined := strings.Join(issues, "\n")
	for _, fragment := range []string{"limit is 10", "disallowed characters", "{slot}"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %v", fragment, issues)
		}
	}
	if issues := naming.Validate("ok_1.jpg", rules); len(issues) != 0 {
		t.Fatalf("expected clean name, got %v", issues)
	}
}

func TestSanitize(t *testing.T) {
	if got := naming.Sanitize("  Été Launch: Hero  Cut "); got != "Ete_Launch-_Hero_Cut" {
		t.Fatalf("Sanitize = %q", got)
	}
}
