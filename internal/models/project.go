package models

import "strings"

// Status is the lifecycle state of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
	StatusUnknown   Status = "unknown"
)

// Statuses lists the values a project header may carry.
var Statuses = []Status{StatusActive, StatusPaused, StatusCompleted, StatusArchived}

// ParseStatus maps s onto a known status. ok is false for anything else,
// in which case StatusUnknown is returned.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, true
		}
	}
	return StatusUnknown, false
}

// Icon is the list marker shown next to a project.
func (s Status) Icon() string {
	switch s {
	case StatusActive:
		return "🟢"
	case StatusPaused:
		return "⏸️"
	case StatusCompleted:
		return "✅"
	case StatusArchived:
		return "📦"
	default:
		return "❓"
	}
}

// DefaultPriority sorts projects without a priority last.
const DefaultPriority = 999

// Project is the header view of a project record.
type Project struct {
	Name     string `json:"name"`
	Dir      string `json:"dir"`  // directory name under projects/
	Path     string `json:"path"` // primary document, relative to the data root
	Type     string `json:"type"`
	Status   Status `json:"status"`
	Priority int    `json:"priority"`
	Repo     string `json:"repo,omitempty"`
	// Progress is the explicit header override, nil when derived.
	Progress *int   `json:"progress,omitempty"`
	Updated  string `json:"updated,omitempty"`
}

// Summary pairs a project with its task stats.
type Summary struct {
	Project
	Stats Stats `json:"stats"`
}

// DisplayProgress prefers the header override over the derived percent.
func (s Summary) DisplayProgress() int {
	if s.Progress != nil {
		return *s.Progress
	}
	return s.Stats.Percent()
}
