package export

import "time"

// Template is a reusable job preset. UsageCount grows each time a job is
// created from it.
type Template struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	Format      Format      `json:"format"`
	Destination Destination `json:"destination"`
	Options     Options     `json:"options"`
	UsageCount  int         `json:"usage_count"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
