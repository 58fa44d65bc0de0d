// Package planning creates and updates daily notes under daily/<date>.md.
package planning

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/document"
	"github.com/starford/komorebi/internal/models"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/storage"
)

const DailyDir = "daily"

// Daily note section headings.
const (
	SectionHighlight = "Highlight"
	SectionPlan      = "今日計畫"
	SectionProjects  = "專案進度"
	SectionTime      = "時間建議"
	SectionReview    = "日終回顧"
	SectionEvents    = "重要事件"
)

// TimestampLayout formats created_at and updated_at header values.
const TimestampLayout = "2006-01-02T15:04:05"

var weekdays = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// Weekday returns the Chinese weekday character, 一 for Monday to 日 for Sunday.
func Weekday(t time.Time) string {
	return weekdays[t.Weekday()]
}

// DailyPath is the note path for label (YYYY-MM-DD).
func DailyPath(label string) string {
	return path.Join(DailyDir, label+".md")
}

// Planner owns the daily notes.
type Planner struct {
	store    storage.Provider
	projects *project.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// New creates a Planner.
func New(store storage.Provider, projects *project.Repository, opts ...Option) *Planner {
	p := &Planner{store: store, projects: projects, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Plan is the outcome of PlanToday.
type Plan struct {
	Date           string
	Weekday        string
	Highlight      string
	Path           string
	ActiveProjects int
}

// PlanToday creates today's note. It fails with apperr.ErrAlreadyExists when
// the note exists and apperr.ErrInvalidArgument without a highlight.
func (p *Planner) PlanToday(highlight string, tasks []string) (Plan, error) {
	highlight = strings.TrimSpace(highlight)
	if highlight == "" {
		return Plan{}, fmt.Errorf("highlight is required: %w", apperr.ErrInvalidArgument)
	}
	now := p.now()
	label := now.Format(time.DateOnly)
	notePath := DailyPath(label)
	if p.store.Exists(notePath) {
		return Plan{}, fmt.Errorf("daily note %s: %w", notePath, apperr.ErrAlreadyExists)
	}

	active := p.activeProjects()

	doc := document.New(renderPlan(now, highlight, tasks, active))
	_ = doc.Header.Set("date", label)
	_ = doc.Header.Set("highlight", highlight)
	_ = doc.Header.Set("created_at", now.Format(TimestampLayout))
	_ = doc.Header.Set("updated_at", now.Format(TimestampLayout))

	if err := document.Save(p.store, notePath, doc); err != nil {
		return Plan{}, fmt.Errorf("planning: save %s: %w", notePath, err)
	}
	return Plan{
		Date:           label,
		Weekday:        Weekday(now),
		Highlight:      highlight,
		Path:           notePath,
		ActiveProjects: len(active),
	}, nil
}

func (p *Planner) activeProjects() []models.Summary {
	if p.projects == nil {
		return nil
	}
	all, err := p.projects.Summaries()
	if err != nil {
		p.logger.Warn("planning: list projects", slog.String("error", err.Error()))
		return nil
	}
	var active []models.Summary
	for _, s := range all {
		if s.Status == models.StatusActive {
			active = append(active, s)
		}
	}
	return active
}

func renderPlan(now time.Time, highlight string, tasks []string, active []models.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", now.Format(time.DateOnly), Weekday(now))

	fmt.Fprintf(&b, "## %s\n%s\n\n", SectionHighlight, highlight)

	fmt.Fprintf(&b, "## %s\n", SectionPlan)
	n := 0
	for _, t := range tasks {
		if t = strings.TrimSpace(t); t != "" {
			fmt.Fprintf(&b, "- [ ] %s\n", t)
			n++
		}
	}
	if n == 0 {
		b.WriteString("- [ ] (待填寫)\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n", SectionProjects)
	if len(active) == 0 {
		b.WriteString("(無 active 專案)\n\n")
	}
	for _, s := range active {
		fmt.Fprintf(&b, "### %s\n- 狀態: %s\n- 進度: %d%% (%d/%d)\n- 預計: (待填寫)\n\n",
			s.Name, s.Status, s.DisplayProgress(), s.Stats.Completed, s.Stats.Total)
	}

	fmt.Fprintf(&b, "## %s\n", SectionTime)
	b.WriteString("- 深度工作: 約 5-6 小時\n- 緩衝時間: 約 2 小時 (30%)\n- 專注於 Highlight，其他任務為次要\n\n")

	fmt.Fprintf(&b, "## %s\n(待今日結束時填寫)\n", SectionReview)
	return b.String()
}

// Today returns today's note text. ok is false when it does not exist yet.
func (p *Planner) Today() (content, label string, ok bool, err error) {
	label = p.now().Format(time.DateOnly)
	data, err := p.store.Read(DailyPath(label))
	if errors.Is(err, os.ErrNotExist) {
		return "", label, false, nil
	}
	if err != nil {
		return "", label, false, err
	}
	return string(data), label, true, nil
}

// EventType classifies a logged event.
type EventType string

const (
	EventDecision  EventType = "decision"
	EventMilestone EventType = "milestone"
	EventBlocker   EventType = "blocker"
	EventInsight   EventType = "insight"
	EventNote      EventType = "note"
)

// EventTypes lists the accepted event types.
var EventTypes = []string{
	string(EventDecision), string(EventMilestone), string(EventBlocker),
	string(EventInsight), string(EventNote),
}

// Title is the display name used in the note.
func (e EventType) Title() string {
	switch e {
	case EventDecision:
		return "Decision"
	case EventMilestone:
		return "Milestone"
	case EventBlocker:
		return "Blocker"
	case EventInsight:
		return "Insight"
	default:
		return "Note"
	}
}

// ParseEventType defaults unknown or empty values to note.
func ParseEventType(s string) EventType {
	switch t := EventType(strings.ToLower(strings.TrimSpace(s))); t {
	case EventDecision, EventMilestone, EventBlocker, EventInsight:
		return t
	default:
		return EventNote
	}
}

// LogEvent appends an entry under "## 重要事件" of today's note, creating a
// minimal note when none exists. It returns the note path.
func (p *Planner) LogEvent(eventType, summary, details string) (string, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("event summary (摘要) is required: %w", apperr.ErrInvalidArgument)
	}
	now := p.now()
	label := now.Format(time.DateOnly)
	notePath := DailyPath(label)

	doc, err := document.Load(p.store, notePath)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		doc = document.New(fmt.Sprintf("# %s (%s)\n", label, Weekday(now)))
		_ = doc.Header.Set("date", label)
		_ = doc.Header.Set("created_at", now.Format(TimestampLayout))
	case err != nil:
		return "", err
	}

	entry := fmt.Sprintf("### %s %s: %s", now.Format("15:04"), ParseEventType(eventType).Title(), summary)
	if d := strings.TrimSpace(details); d != "" {
		entry += "\n" + d
	}

	doc.Body = document.AppendToSection(doc.Body, SectionEvents, entry)
	_ = doc.Header.Set("updated_at", now.Format(TimestampLayout))

	if err := document.Save(p.store, notePath, doc); err != nil {
		return "", fmt.Errorf("planning: save %s: %w", notePath, err)
	}
	return notePath, nil
}
