package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"shipyard/internal/logging"
)

// Entry is one parsed JSON log record.
type Entry struct {
	Time       time.Time
	Level      string
	Message    string
	Component  string
	JobID      string
	CampaignID string
	EventType  string
	Attrs      map[string]any
	Raw        string
}

// Filter narrows entries. Empty fields match everything.
type Filter struct {
	JobID      string
	CampaignID string
	MinLevel   string
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// ParseEntry decodes a JSON record. Lines that are not JSON come back as
// plain entries holding only Raw so nothing is silently dropped.
func ParseEntry(line string) Entry {
	entry := Entry{Raw: line}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		entry.Message = line
		return entry
	}

	take := func(key string) string {
		value, ok := record[key]
		if !ok {
			return ""
		}
		delete(record, key)
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprint(value)
	}
	if ts := take("time"); ts != "" {
		entry.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	entry.Level = strings.ToUpper(take("level"))
	entry.Message = take("msg")
	entry.Component = take(logging.FieldComponent)
	entry.JobID = take(logging.FieldJobID)
	entry.CampaignID = take(logging.FieldCampaignID)
	entry.EventType = take(logging.FieldEventType)
	entry.Attrs = record
	return entry
}

// Matches reports whether the entry passes f.
func (f Filter) Matches(e Entry) bool {
	if f.JobID != "" && !strings.HasPrefix(e.JobID, f.JobID) {
		return false
	}
	if f.CampaignID != "" && e.CampaignID != f.CampaignID {
		return false
	}
	if threshold, ok := levelRank[strings.ToUpper(f.MinLevel)]; ok {
		if rank, known := levelRank[e.Level]; known && rank < threshold {
			return false
		}
	}
	return true
}

// Format renders an entry on one line: time, level, component, message, then
// the remaining attributes sorted by key.
func (e Entry) Format() string {
	if e.Level == "" && e.Time.IsZero() {
		return e.Raw
	}
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", e.Level)
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)

	if e.JobID != "" {
		fmt.Fprintf(&b, " job=%s", e.JobID)
	}
	if e.CampaignID != "" {
		fmt.Fprintf(&b, " campaign=%s", e.CampaignID)
	}
	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Attrs[key])
	}
	return b.String()
}
