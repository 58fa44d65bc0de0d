package reposync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/document"
	"github.com/starford/komorebi/internal/llm"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/storage"
	"github.com/starford/komorebi/internal/testutil"
)

type fakeLog struct {
	recent, since int
}

func (f *fakeLog) RecentLog(_ context.Context, _ string, n int) string {
	f.recent = n
	return "abc1234 initial"
}

func (f *fakeLog) LogSince(_ context.Context, _ string, days int) string {
	f.since = days
	return "def5678 tweak"
}

const analysisYAML = "```yaml\ngoal: Build a personal assistant\ntech_stack:\n  - Go\n  - SQLite\nprogress: Review engine done\nblockers: \"\"\n```"

// recorder captures the prompt and answers with a fixed reply.
type recorder struct {
	prompt string
	reply  string
	err    error
}

func (r *recorder) Generate(_ context.Context, prompt string) (string, error) {
	r.prompt = prompt
	return r.reply, r.err
}

func setup(t *testing.T, body string, gen llm.Generator) (*Syncer, *storage.FS, *fakeLog, string) {
	t.Helper()
	_, store := testutil.DataRoot(t)
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("# Demo\nA demo repository."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo, "go.mod"), []byte("module example.com/demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.WriteProject(t, store, "demo",
		fmt.Sprintf("---\nname: demo\nstatus: active\nrepo: %s\n---\n\n%s", repo, body), "")

	git := &fakeLog{}
	s := New(project.NewRepository(store), git, gen, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return s, store, git, repo
}

func TestSelectMode(t *testing.T) {
	cases := []struct {
		force bool
		body  string
		want  Mode
	}{
		{false, "## 目標\nTODO: fill in", ModeInit},
		{false, "## 目標\n(待填寫)", ModeInit},
		{false, "## 阻礙\n(待補充)", ModeInit},
		{false, "## 目標\nShip it", ModeSync},
		{true, "## 目標\nShip it", ModeInit},
	}
	for _, c := range cases {
		if got := SelectMode(c.force, c.body); got != c.want {
			t.Errorf("SelectMode(%v, %q) = %s, want %s", c.force, c.body, got, c.want)
		}
	}
}

func TestSync_PlaceholderSelectsInit(t *testing.T) {
	gen := &recorder{reply: analysisYAML}
	s, store, git, _ := setup(t, "## 目標\nTODO: describe the goal\n\n## 進度日誌\n", gen)

	res, err := s.Sync(context.Background(), "demo", false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Mode != ModeInit {
		t.Errorf("mode = %s, want init", res.Mode)
	}
	if strings.Join(res.Updated, ",") != "目標,技術棧,目前進度" {
		t.Errorf("updated = %v", res.Updated)
	}
	if git.recent != 30 || git.since != 0 {
		t.Errorf("init mode should read 30 recent commits, got recent=%d since=%d", git.recent, git.since)
	}
	for _, want := range []string{"A demo repository.", "module example.com/demo", "README.md\n", "abc1234 initial"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	doc, err := document.Load(store, "projects/demo/project.md")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := document.GetSection(doc.Body, project.SectionGoal); got != "Build a personal assistant" {
		t.Errorf("goal = %q", got)
	}
	if got, _ := document.GetSection(doc.Body, project.SectionTechStack); got != "- Go\n- SQLite" {
		t.Errorf("tech stack = %q", got)
	}
	if log, _ := document.GetSection(doc.Body, project.SectionLog); !strings.Contains(log, "[init] 更新 目標, 技術棧, 目前進度") {
		t.Errorf("log = %q", log)
	}
}

func TestSync_IncrementalMode(t *testing.T) {
	gen := &recorder{reply: "progress: Added sync\n"}
	s, _, git, _ := setup(t, "## 目標\nShip it\n", gen)

	res, err := s.Sync(context.Background(), "DEMO", false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Mode != ModeSync || git.since != 7 || git.recent != 0 {
		t.Errorf("mode=%s since=%d recent=%d", res.Mode, git.since, git.recent)
	}
	if strings.Contains(gen.prompt, "module example.com/demo") {
		t.Error("sync mode should skip supplementary files")
	}
}

func TestSync_Errors(t *testing.T) {
	t.Run("unknown project", func(t *testing.T) {
		s, _, _, _ := setup(t, "", &recorder{})
		if _, err := s.Sync(context.Background(), "ghost", false); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("no repo field", func(t *testing.T) {
		s, store, _, _ := setup(t, "", &recorder{})
		testutil.WriteProject(t, store, "norepo", "---\nstatus: active\n---\n", "")
		if _, err := s.Sync(context.Background(), "norepo", false); !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("repo missing on disk", func(t *testing.T) {
		s, store, _, _ := setup(t, "", &recorder{})
		testutil.WriteProject(t, store, "gone", "---\nrepo: /no/such/komorebi/repo\n---\n", "")
		if _, err := s.Sync(context.Background(), "gone", false); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("readme missing", func(t *testing.T) {
		s, _, _, repo := setup(t, "", &recorder{reply: analysisYAML})
		if err := os.Remove(filepath.Join(repo, "README.md")); err != nil {
			t.Fatal(err)
		}
		_, err := s.Sync(context.Background(), "demo", false)
		if !errors.Is(err, apperr.ErrNotFound) || !strings.Contains(err.Error(), "README") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("analysis call fails", func(t *testing.T) {
		s, _, _, _ := setup(t, "", &recorder{err: errors.New("quota exceeded")})
		_, err := s.Sync(context.Background(), "demo", true)
		if !errors.Is(err, apperr.ErrAnalysisFailed) || !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("unparseable output keeps raw text", func(t *testing.T) {
		reply := "Sorry, I cannot help with that."
		s, store, _, _ := setup(t, "## 目標\nkeep me\n", &recorder{reply: reply})
		_, err := s.Sync(context.Background(), "demo", true)
		var fe *apperr.FormatError
		if !errors.As(err, &fe) || fe.Raw != reply {
			t.Fatalf("err = %v", err)
		}
		doc, _ := document.Load(store, "projects/demo/project.md")
		if got, _ := document.GetSection(doc.Body, project.SectionGoal); got != "keep me" {
			t.Errorf("project changed after a failed analysis: %q", got)
		}
	})
}

func TestParseAnalysis(t *testing.T) {
	a, err := ParseAnalysis("goal: g\nblockers:\n  - a\n  - b\n")
	if err != nil {
		t.Fatal(err)
	}
	if a.Goal != "g" || a.Blockers != "- a\n- b" || a.TechStack != "" {
		t.Errorf("analysis = %+v", a)
	}

	for _, raw := range []string{"", "just prose", "other: field", "goal: [unclosed"} {
		_, err := ParseAnalysis(raw)
		if !errors.Is(err, apperr.ErrFormat) {
			t.Errorf("ParseAnalysis(%q) err = %v", raw, err)
		}
	}
}
