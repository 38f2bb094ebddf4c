package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary and whether exports need it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of probing one Requirement. Path is the resolved
// executable when Available.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Blocking reports a required binary that could not be found.
func (s Status) Blocking() bool {
	return !s.Available && !s.Optional
}

// CheckBinaries probes each requirement on PATH, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = lookup(req)
	}
	return results
}

func lookup(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}
