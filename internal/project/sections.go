package project

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/komorebi/internal/document"
)

// Body section headings of a project document.
const (
	SectionGoal      = "目標"
	SectionTechStack = "技術棧"
	SectionProgress  = "目前進度"
	SectionBlockers  = "阻礙"
	SectionLog       = "進度日誌"
)

// SectionUpdate replaces one body section.
type SectionUpdate struct {
	Heading string
	Content string
}

// UpdateSections applies updates with non-empty content, appends a dated
// entry naming mode and the touched headings to the progress log, bumps the
// updated date and saves once. It returns the headings that were replaced.
func (r *Repository) UpdateSections(ref Ref, mode string, updates []SectionUpdate) ([]string, error) {
	_, doc, err := r.Load(ref)
	if err != nil {
		return nil, err
	}

	var touched []string
	body := doc.Body
	for _, u := range updates {
		if strings.TrimSpace(u.Content) == "" {
			continue
		}
		body, _ = document.ReplaceSection(body, u.Heading, u.Content)
		touched = append(touched, u.Heading)
	}

	now := r.now()
	body = document.AppendToSection(body, SectionLog, LogEntry(now, mode, touched))
	doc.Body = body
	doc.Header.SetDate("updated", now)

	if err := document.Save(r.store, ref.Path, doc); err != nil {
		return nil, fmt.Errorf("project: save %s: %w", ref.Dir, err)
	}
	return touched, nil
}

// LogEntry formats a progress log line.
func LogEntry(day time.Time, mode string, headings []string) string {
	what := "無變更"
	if len(headings) > 0 {
		what = "更新 " + strings.Join(headings, ", ")
	}
	return fmt.Sprintf("- %s: [%s] %s", day.Format(time.DateOnly), mode, what)
}
