package review

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/komorebi/internal/models"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/tasks"
)

// CommitSource is the version-control query surface the generator needs.
type CommitSource interface {
	CommitsInRange(ctx context.Context, repo string, start, end time.Time) []string
	CommitsToday(ctx context.Context, repo string) []string
}

// projectData is one project's contribution to a report.
type projectData struct {
	project   models.Project
	stats     models.Stats
	completed []models.Task
	commits   []string
	ok        bool
	// label keys the project in report maps: the header name, plus the
	// directory when another project shares that name.
	label string
}

// gather loads every project concurrently. Each worker writes only its own
// slot; results are read after Wait.
func (g *Generator) gather(ctx context.Context, fill func(ctx context.Context, ref project.Ref, d *projectData)) ([]projectData, error) {
	refs, err := g.projects.ListAll()
	if err != nil {
		return nil, err
	}
	out := make([]projectData, len(refs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, ref := range refs {
		eg.Go(func() error {
			p, _, err := g.projects.Load(ref)
			if err != nil {
				g.logger.Warn("review: skip project",
					slog.String("project", ref.Dir),
					slog.String("error", err.Error()),
				)
				return nil
			}
			out[i].project = p
			out[i].ok = true
			fill(ctx, ref, &out[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	loaded := out[:0]
	for _, d := range out {
		if d.ok {
			loaded = append(loaded, d)
		}
	}
	labelProjects(loaded)
	return loaded, nil
}

func labelProjects(data []projectData) {
	names := make(map[string]int, len(data))
	for _, d := range data {
		names[d.project.Name]++
	}
	for i := range data {
		p := data[i].project
		data[i].label = p.Name
		if names[p.Name] > 1 {
			data[i].label = fmt.Sprintf("%s (%s)", p.Name, p.Dir)
		}
	}
}

// CollectCompletedTasks maps project label to its completed tasks dated in
// [start, end]. Projects with no such task are absent.
func (g *Generator) CollectCompletedTasks(ctx context.Context, start, end time.Time) (map[string][]models.Task, error) {
	data, err := g.gather(ctx, func(_ context.Context, ref project.Ref, d *projectData) {
		g.fillTasks(ref, d, start, end)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Task)
	for _, d := range data {
		if len(d.completed) > 0 {
			out[d.label] = d.completed
		}
	}
	return out, nil
}

// CollectCommits maps project label to its commits in [start, end]. Projects
// without a usable repo are absent.
func (g *Generator) CollectCommits(ctx context.Context, start, end time.Time) (map[string][]string, error) {
	data, err := g.gather(ctx, func(ctx context.Context, _ project.Ref, d *projectData) {
		if repo := g.repoDir(d.project); repo != "" {
			d.commits = g.git.CommitsInRange(ctx, repo, start, end)
		}
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, d := range data {
		if len(d.commits) > 0 {
			out[d.label] = d.commits
		}
	}
	return out, nil
}

func (g *Generator) fillTasks(ref project.Ref, d *projectData, start, end time.Time) {
	list, err := g.projects.Tasks(ref)
	if err != nil {
		g.logger.Warn("review: read tasks", slog.String("project", ref.Dir), slog.String("error", err.Error()))
		return
	}
	d.stats = list.Stats()
	d.completed = tasks.CompletedWithin(list, start, end)
}

// repoDir returns the expanded repo path when it exists on disk.
func (g *Generator) repoDir(p models.Project) string {
	repo := project.RepoPath(p)
	if repo == "" {
		return ""
	}
	if !g.dirExists(repo) {
		g.logger.Debug("review: repo missing", slog.String("project", p.Name), slog.String("repo", repo))
		return ""
	}
	return repo
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
