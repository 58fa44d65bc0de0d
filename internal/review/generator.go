package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/document"
	"github.com/starford/komorebi/internal/llm"
	"github.com/starford/komorebi/internal/models"
	"github.com/starford/komorebi/internal/planning"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/storage"
)

const (
	WeeklyDir  = "reviews/weekly"
	MonthlyDir = "reviews/monthly"

	// commitDisplayLimit caps commits listed per project in a weekly report.
	commitDisplayLimit = 10
)

// FallbackQuestions are used when question generation fails.
var FallbackQuestions = []string{
	"這週最有成就感的一件事是什麼？為什麼？",
	"下週最想改善或調整的一件事是什麼？",
}

// Generator builds review reports.
type Generator struct {
	store     storage.Provider
	projects  *project.Repository
	git       CommitSource
	questions llm.Generator
	logger    *slog.Logger
	now       func() time.Time
	dirExists func(string) bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithQuestioner sets the text generator used for weekly reflection questions.
func WithQuestioner(q llm.Generator) Option {
	return func(g *Generator) { g.questions = q }
}

// New creates a Generator.
func New(store storage.Provider, projects *project.Repository, git CommitSource, opts ...Option) *Generator {
	g := &Generator{
		store:     store,
		projects:  projects,
		git:       git,
		questions: llm.Disabled{},
		logger:    slog.Default(),
		now:       time.Now,
		dirExists: func(p string) bool {
			info, err := os.Stat(p)
			return err == nil && info.IsDir()
		},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// MissingNoteError is returned by the day review when the daily note for
// Label has not been created. It matches apperr.ErrNotFound.
type MissingNoteError struct {
	Label string
	Path  string
	// Today is set when Label is the current date.
	Today bool
}

func (e *MissingNoteError) Error() string {
	return fmt.Sprintf("daily note %s does not exist, create it first with plan_today: %s", e.Label, apperr.ErrNotFound)
}

// Is reports whether target is ErrNotFound.
func (e *MissingNoteError) Is(target error) bool {
	return target == apperr.ErrNotFound
}

// Request selects what to generate.
type Request struct {
	Period Period
	Date   string
	Notes  string
}

// Result describes a generated review.
type Result struct {
	Period         Period `json:"period"`
	Label          string `json:"label"`
	Path           string `json:"path"`
	Projects       int    `json:"projects"`
	Commits        int    `json:"commits"`
	CompletedTasks int    `json:"completed_tasks"`
	// Summary is the human-readable outcome returned to callers.
	Summary string `json:"summary"`
}

// Generate resolves the period and produces the review. Week and month
// reports are regenerated in full; day updates the daily note in place.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	period := req.Period
	if period == "" {
		period = Day
	}
	rng, err := Resolve(period, req.Date, g.now())
	if err != nil {
		return nil, err
	}
	switch rng.Period {
	case Day:
		return g.day(ctx, rng, req.Notes)
	case Week:
		return g.week(ctx, rng, req.Notes)
	default:
		return g.month(ctx, rng, req.Notes)
	}
}

// day always reports today's commits, whatever date was requested.
func (g *Generator) day(ctx context.Context, rng Range, notes string) (*Result, error) {
	notePath := planning.DailyPath(rng.Label)
	doc, err := document.Load(g.store, notePath)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, &MissingNoteError{
			Label: rng.Label,
			Path:  notePath,
			Today: rng.Label == g.now().Format(time.DateOnly),
		}
	}
	if err != nil {
		return nil, err
	}

	data, err := g.gather(ctx, func(ctx context.Context, _ project.Ref, d *projectData) {
		if repo := g.repoDir(d.project); repo != "" {
			d.commits = g.git.CommitsToday(ctx, repo)
		}
	})
	if err != nil {
		return nil, err
	}
	commits := make(map[string][]string)
	total := 0
	for _, d := range data {
		if len(d.commits) > 0 {
			commits[d.label] = d.commits
			total += len(d.commits)
		}
	}

	now := g.now()
	section := renderDaySection(commits, notes, now)
	doc.Body, _ = document.ReplaceSection(doc.Body, planning.SectionReview, section)
	_ = doc.Header.Set("updated_at", now.Format(planning.TimestampLayout))
	if err := document.Save(g.store, notePath, doc); err != nil {
		return nil, fmt.Errorf("review: save %s: %w", notePath, err)
	}

	res := &Result{
		Period:   Day,
		Label:    rng.Label,
		Path:     notePath,
		Projects: len(commits),
		Commits:  total,
	}
	res.Summary = renderDaySummary(res, commits)
	return res, nil
}

func (g *Generator) week(ctx context.Context, rng Range, notes string) (*Result, error) {
	data, err := g.gather(ctx, func(ctx context.Context, ref project.Ref, d *projectData) {
		g.fillTasks(ref, d, rng.Start, rng.End)
		if repo := g.repoDir(d.project); repo != "" {
			d.commits = g.git.CommitsInRange(ctx, repo, rng.Start, rng.End)
		}
	})
	if err != nil {
		return nil, err
	}

	completed, commits := split(data)
	res := &Result{
		Period:         Week,
		Label:          rng.Label,
		Path:           path.Join(WeeklyDir, rng.Label+".md"),
		Projects:       len(data),
		Commits:        countAll(commits),
		CompletedTasks: countAll(completed),
	}

	questions := g.reflectionQuestions(ctx, rng, completed, commits)
	doc := document.New(renderWeek(rng, completed, commits, questions, notes))
	g.reportHeader(doc, rng)
	if err := document.Save(g.store, res.Path, doc); err != nil {
		return nil, fmt.Errorf("review: save %s: %w", res.Path, err)
	}
	res.Summary = renderReportSummary(res, rng)
	return res, nil
}

func (g *Generator) month(ctx context.Context, rng Range, notes string) (*Result, error) {
	data, err := g.gather(ctx, func(ctx context.Context, ref project.Ref, d *projectData) {
		g.fillTasks(ref, d, rng.Start, rng.End)
		if repo := g.repoDir(d.project); repo != "" {
			d.commits = g.git.CommitsInRange(ctx, repo, rng.Start, rng.End)
		}
	})
	if err != nil {
		return nil, err
	}
	sortByPriority(data)

	completed, commits := split(data)
	res := &Result{
		Period:         Month,
		Label:          rng.Label,
		Path:           path.Join(MonthlyDir, rng.Label+".md"),
		Projects:       len(data),
		Commits:        countAll(commits),
		CompletedTasks: countAll(completed),
	}

	doc := document.New(renderMonth(rng, data, completed, notes))
	g.reportHeader(doc, rng)
	if err := document.Save(g.store, res.Path, doc); err != nil {
		return nil, fmt.Errorf("review: save %s: %w", res.Path, err)
	}
	res.Summary = renderReportSummary(res, rng)
	return res, nil
}

func (g *Generator) reportHeader(doc *document.Document, rng Range) {
	_ = doc.Header.Set("type", string(rng.Period)+"-review")
	_ = doc.Header.Set("period", rng.Label)
	doc.Header.SetDate("start", rng.Start)
	doc.Header.SetDate("end", rng.End)
	_ = doc.Header.Set("generated_at", g.now().Format(planning.TimestampLayout))
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)、])\s*`)

// reflectionQuestions asks the text generator for up to three questions.
// Any failure falls back to FallbackQuestions.
func (g *Generator) reflectionQuestions(ctx context.Context, rng Range, completed map[string][]models.Task, commits map[string][]string) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下是 %s (%s ~ %s) 的週回顧摘要。請提出 3 個簡短、具體的反思問題，每行一個，不要其他說明。\n\n",
		rng.Label, rng.Start.Format(time.DateOnly), rng.End.Format(time.DateOnly))
	for _, name := range sortedKeys(completed) {
		texts := make([]string, len(completed[name]))
		for i, t := range completed[name] {
			texts[i] = t.Text
		}
		fmt.Fprintf(&b, "- %s 完成: %s\n", name, strings.Join(texts, "; "))
	}
	for _, name := range sortedKeys(commits) {
		fmt.Fprintf(&b, "- %s commits: %d\n", name, len(commits[name]))
	}

	text, err := g.questions.Generate(ctx, b.String())
	if err != nil {
		g.logger.Warn("review: reflection questions unavailable", slog.String("error", err.Error()))
		return FallbackQuestions
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			break
		}
	}
	if len(out) == 0 {
		return FallbackQuestions
	}
	return out
}
