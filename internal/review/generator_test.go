package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/document"
	"github.com/starford/komorebi/internal/llm"
	"github.com/starford/komorebi/internal/planning"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/storage"
	"github.com/starford/komorebi/internal/testutil"
)

type fakeGit struct {
	mu     sync.Mutex
	ranged map[string][]string
	today  map[string][]string
	calls  []string
}

func (f *fakeGit) CommitsInRange(_ context.Context, repo string, start, end time.Time) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("range %s %s..%s", repo, start.Format(time.DateOnly), end.Format(time.DateOnly)))
	return f.ranged[repo]
}

func (f *fakeGit) CommitsToday(_ context.Context, repo string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "today "+repo)
	return f.today[repo]
}

const demoTasks = `## 進行中
- [ ] wire the index

## 待處理
- [ ] write docs

## 已完成
- [x] parser (2026-10-13)
- [x] review engine (2026-10-15)
- [x] last month thing (2026-09-30)
- [x] undated task
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T, opts ...Option) (*Generator, *storage.FS, *fakeGit, string) {
	t.Helper()
	_, store := testutil.DataRoot(t)
	repoDir := t.TempDir()

	testutil.WriteProject(t, store, "demo",
		fmt.Sprintf("---\nname: demo\nstatus: active\npriority: 1\nrepo: %s\n---\n\n# demo\n", repoDir),
		demoTasks)
	testutil.WriteProject(t, store, "side",
		"---\nstatus: paused\npriority: 2\nrepo: /definitely/not/here\n---\n",
		"- [ ] something\n")

	git := &fakeGit{
		ranged: map[string][]string{repoDir: {"abc1234 add parser", "def5678 add review"}},
		today:  map[string][]string{repoDir: {"add review (def5678)"}},
	}
	projects := project.NewRepository(store)
	base := []Option{WithClock(func() time.Time { return now }), WithLogger(quietLogger())}
	g := New(store, projects, git, append(base, opts...)...)
	return g, store, git, repoDir
}

func TestGenerateWeek(t *testing.T) {
	g, store, git, repoDir := setup(t)

	res, err := g.Generate(context.Background(), Request{Period: Week, Notes: "good week"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Path != "reviews/weekly/2026-W42.md" || res.CompletedTasks != 2 || res.Commits != 2 {
		t.Errorf("result = %+v", res)
	}

	data, err := store.Read(res.Path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if doc.Header.String("period") != "2026-W42" || doc.Header.String("start") != "2026-10-12" {
		t.Errorf("header = %v", doc.Header.Map())
	}

	summary, _ := document.GetSection(doc.Body, "摘要")
	if !strings.Contains(summary, "完成任務: 2") {
		t.Errorf("summary = %q", summary)
	}
	done, _ := document.GetSection(doc.Body, "完成的任務")
	want := "### demo\n- [x] parser (2026-10-13)\n- [x] review engine (2026-10-15)"
	if done != want {
		t.Errorf("completed section = %q, want %q", done, want)
	}
	questions, _ := document.GetSection(doc.Body, "反思問題")
	if questions != "1. "+FallbackQuestions[0]+"\n2. "+FallbackQuestions[1] {
		t.Errorf("questions = %q", questions)
	}
	if notes, _ := document.GetSection(doc.Body, "筆記"); notes != "good week" {
		t.Errorf("notes = %q", notes)
	}

	want = fmt.Sprintf("range %s 2026-10-12..2026-10-18", repoDir)
	if len(git.calls) != 1 || git.calls[0] != want {
		t.Errorf("git calls = %v, want only %q", git.calls, want)
	}
}

func TestGenerateWeek_Regenerates(t *testing.T) {
	g, store, _, _ := setup(t)
	testutil.WriteFile(t, store, "reviews/weekly/2026-W42.md", "stale content that must vanish")

	if _, err := g.Generate(context.Background(), Request{Period: Week, Date: "2026-W42"}); err != nil {
		t.Fatal(err)
	}
	first, _ := store.Read("reviews/weekly/2026-W42.md")
	if strings.Contains(string(first), "stale") {
		t.Error("report was merged instead of regenerated")
	}
	if _, err := g.Generate(context.Background(), Request{Period: Week, Date: "2026-W42"}); err != nil {
		t.Fatal(err)
	}
	second, _ := store.Read("reviews/weekly/2026-W42.md")
	if string(first) != string(second) {
		t.Error("regeneration with identical inputs should be identical")
	}
}

func TestGenerateWeek_CapsCommitList(t *testing.T) {
	g, store, git, repoDir := setup(t)
	var many []string
	for i := range 13 {
		many = append(many, fmt.Sprintf("%07d commit %d", i, i))
	}
	git.ranged[repoDir] = many

	res, err := g.Generate(context.Background(), Request{Period: Week})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := store.Read(res.Path)
	doc, _ := document.Parse(data)
	activity, _ := document.GetSection(doc.Body, "Git 活動")
	if strings.Count(activity, "commit ") != 10 || !strings.Contains(activity, "- …還有 3 筆") {
		t.Errorf("activity = %q", activity)
	}
	if !strings.Contains(activity, "### demo (13 commits)") {
		t.Errorf("activity header missing: %q", activity)
	}
}

func TestGenerateWeek_QuestionsFromGenerator(t *testing.T) {
	q := llm.Func(func(_ context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "parser") {
			return "", errors.New("prompt lacks completed tasks")
		}
		return "1. What slowed you down?\n\n- Which task mattered most?\n", nil
	})
	g, store, _, _ := setup(t, WithQuestioner(q))
	res, err := g.Generate(context.Background(), Request{Period: Week})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := store.Read(res.Path)
	doc, _ := document.Parse(data)
	got, _ := document.GetSection(doc.Body, "反思問題")
	if got != "1. What slowed you down?\n2. Which task mattered most?" {
		t.Errorf("questions = %q", got)
	}
}

func TestGenerateMonth(t *testing.T) {
	g, store, _, _ := setup(t)

	res, err := g.Generate(context.Background(), Request{Period: Month, Date: "2026-10"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Path != "reviews/monthly/2026-10.md" || res.CompletedTasks != 2 {
		t.Errorf("result = %+v", res)
	}
	data, _ := store.Read(res.Path)
	doc, _ := document.Parse(data)

	table, _ := document.GetSection(doc.Body, "專案進度")
	lines := strings.Split(table, "\n")
	if len(lines) != 4 {
		t.Fatalf("table = %q", table)
	}
	if lines[2] != "| demo | 🟢 active | 4/6 (66%) | 2 |" {
		t.Errorf("demo row = %q", lines[2])
	}
	if lines[3] != "| side | ⏸️ paused | 0/1 (0%) | 0 |" {
		t.Errorf("side row = %q", lines[3])
	}
	for _, h := range []string{"學習筆記", "下月目標"} {
		if got, ok := document.GetSection(doc.Body, h); !ok || got != "-" {
			t.Errorf("%s = %q, %v", h, got, ok)
		}
	}
	achievements, _ := document.GetSection(doc.Body, "本月成就")
	if strings.Contains(achievements, "last month thing") || strings.Contains(achievements, "undated") {
		t.Errorf("achievements leaked out-of-range tasks: %q", achievements)
	}
}

func TestGenerateDay_RequiresDailyNote(t *testing.T) {
	g, _, _, _ := setup(t)
	_, err := g.Generate(context.Background(), Request{Period: Day})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "create it first") {
		t.Errorf("message = %q", err)
	}
}

func TestGenerateDay_MissingNoteNamesLabel(t *testing.T) {
	g, _, _, _ := setup(t)
	tests := []struct {
		date      string
		wantLabel string
		wantToday bool
	}{
		{"", now.Format(time.DateOnly), true},
		{"2026-10-01", "2026-10-01", false},
	}
	for _, tt := range tests {
		_, err := g.Generate(context.Background(), Request{Period: Day, Date: tt.date})
		var missing *MissingNoteError
		if !errors.As(err, &missing) {
			t.Fatalf("date %q: err = %v, want *MissingNoteError", tt.date, err)
		}
		if missing.Label != tt.wantLabel || missing.Today != tt.wantToday {
			t.Errorf("date %q: got label %q today %v", tt.date, missing.Label, missing.Today)
		}
		if want := planning.DailyPath(tt.wantLabel); missing.Path != want {
			t.Errorf("date %q: path = %q, want %q", tt.date, missing.Path, want)
		}
	}
}

func TestGenerateDay_ReplacesReviewSection(t *testing.T) {
	g, store, git, repoDir := setup(t)
	planner := planning.New(store, project.NewRepository(store), planning.WithClock(func() time.Time { return now }))
	if _, err := planner.PlanToday("finish review", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := planner.LogEvent("milestone", "engine done", ""); err != nil {
		t.Fatal(err)
	}

	var first string
	for i := range 2 {
		res, err := g.Generate(context.Background(), Request{Notes: "tired but happy"})
		if err != nil {
			t.Fatalf("Generate #%d: %v", i, err)
		}
		if res.Projects != 1 || res.Commits != 1 || res.Path != "daily/2026-10-15.md" {
			t.Errorf("result = %+v", res)
		}
		data, _ := store.Read(res.Path)
		if i == 0 {
			first = string(data)
		} else if string(data) != first {
			t.Error("re-running the day review changed the note")
		}
	}

	doc, _ := document.Parse([]byte(first))
	if strings.Count(doc.Body, "## 日終回顧") != 1 {
		t.Errorf("review heading duplicated:\n%s", doc.Body)
	}
	review, _ := document.GetSection(doc.Body, planning.SectionReview)
	if !strings.Contains(review, "- demo: add review (def5678)") || !strings.Contains(review, "tired but happy") {
		t.Errorf("review = %q", review)
	}
	if events, _ := document.GetSection(doc.Body, planning.SectionEvents); !strings.Contains(events, "engine done") {
		t.Errorf("events section lost: %q", events)
	}
	for _, c := range git.calls {
		if !strings.HasPrefix(c, "today "+repoDir) {
			t.Errorf("day review made a non-today query: %s", c)
		}
	}
}

func TestGenerateDay_NotesWithSectionHeading(t *testing.T) {
	g, store, _, _ := setup(t)
	planner := planning.New(store, project.NewRepository(store), planning.WithClock(func() time.Time { return now }))
	if _, err := planner.PlanToday("finish review", nil); err != nil {
		t.Fatal(err)
	}

	notes := "good day\n## 明天\n- plan"
	var first string
	for i := range 2 {
		res, err := g.Generate(context.Background(), Request{Notes: notes})
		if err != nil {
			t.Fatalf("Generate #%d: %v", i, err)
		}
		data, _ := store.Read(res.Path)
		if i == 0 {
			first = string(data)
		} else if string(data) != first {
			t.Errorf("re-running the day review changed the note:\n%s\nfirst:\n%s", data, first)
		}
	}
	if n := strings.Count(first, "- plan"); n != 1 {
		t.Errorf("notes appear %d times:\n%s", n, first)
	}
	if !strings.Contains(first, "### 明天") {
		t.Errorf("heading in notes was not nested:\n%s", first)
	}
}

func TestCollectors_DuplicateNames(t *testing.T) {
	g, store, _, _ := setup(t)
	testutil.WriteProject(t, store, "demo-fork",
		"---\nname: demo\nstatus: active\npriority: 3\n---\n",
		"## 已完成\n- [x] forked (2026-10-14)\n")
	start := time.Date(2026, 10, 12, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, 10, 18, 23, 59, 59, 0, time.Local)

	done, err := g.CollectCompletedTasks(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 2 || len(done["demo (demo)"]) != 2 || len(done["demo (demo-fork)"]) != 1 {
		t.Errorf("completed = %v", done)
	}

	res, err := g.Generate(context.Background(), Request{Period: Week, Date: "2026-W42"})
	if err != nil {
		t.Fatal(err)
	}
	if res.CompletedTasks != 3 {
		t.Errorf("completed tasks = %d, want 3", res.CompletedTasks)
	}
}

func TestGenerate_InvalidLabel(t *testing.T) {
	g, _, _, _ := setup(t)
	for _, req := range []Request{
		{Period: Day, Date: "15/10/2026"},
		{Period: Week, Date: "2026-W99"},
		{Period: Month, Date: "2026-1"},
	} {
		if _, err := g.Generate(context.Background(), req); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("%+v: err = %v", req, err)
		}
	}
}

func TestCollectors(t *testing.T) {
	g, _, _, _ := setup(t)
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2026, 10, 31, 23, 59, 59, 0, time.Local)

	done, err := g.CollectCompletedTasks(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 1 || len(done["demo"]) != 2 {
		t.Errorf("completed = %v", done)
	}

	commits, err := g.CollectCommits(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(commits) != 1 || len(commits["demo"]) != 2 {
		t.Errorf("commits = %v (side has no usable repo)", commits)
	}
}
