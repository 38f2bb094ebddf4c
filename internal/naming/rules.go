package naming

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// Rules constrain produced names for a destination platform.
type Rules struct {
	// Pattern is the recommended naming pattern for the platform.
	Pattern string `json:"pattern,omitempty"`
	// MaxLength is measured in characters. Zero means unlimited.
	MaxLength int `json:"max_length,omitempty"`
	// AllowedChars is a regexp character class body, e.g. `a-zA-Z0-9_\-.`.
	AllowedChars string `json:"allowed_chars,omitempty"`
}

var (
	charsetMu    sync.Mutex
	charsetCache = map[string]*regexp.Regexp{}
)

// Validate reports every rule violation of name. Names are never truncated or
// rewritten here.
func Validate(name string, rules Rules) []string {
	var issues []string
	if strings.TrimSpace(name) == "" {
		return []string{"name is empty"}
	}
	if rules.MaxLength > 0 {
		if length := utf8.RuneCountInString(name); length > rules.MaxLength {
			issues = append(issues, fmt.Sprintf("name %q is %d characters, limit is %d", name, length, rules.MaxLength))
		}
	}
	if rules.AllowedChars != "" {
		if invalid := disallowedChars(name, rules.AllowedChars); invalid != "" {
			issues = append(issues, fmt.Sprintf("name %q contains disallowed characters %q", name, invalid))
		}
	}
	for _, key := range Placeholders(name) {
		issues = append(issues, fmt.Sprintf("name %q has unresolved placeholder {%s}", name, key))
	}
	return issues
}

func disallowedChars(name, class string) string {
	re, err := charsetRegexp(class)
	if err != nil {
		return ""
	}
	var bad strings.Builder
	seen := map[rune]bool{}
	for _, r := range name {
		if re.MatchString(string(r)) || seen[r] {
			continue
		}
		seen[r] = true
		bad.WriteRune(r)
	}
	return bad.String()
}

func charsetRegexp(class string) (*regexp.Regexp, error) {
	charsetMu.Lock()
	defer charsetMu.Unlock()
	if re, ok := charsetCache[class]; ok {
		return re, nil
	}
	re, err := regexp.Compile("^[" + class + "]$")
	if err != nil {
		return nil, fmt.Errorf("compile charset %q: %w", class, err)
	}
	charsetCache[class] = re
	return re, nil
}
