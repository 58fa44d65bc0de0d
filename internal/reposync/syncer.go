// Package reposync refreshes a project document from its source repository
// by gathering context files and delegating interpretation to a text
// generator.
package reposync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/llm"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/storage"
)

// Mode is the depth of a sync.
type Mode string

const (
	// ModeInit rewrites every section from a full repository read.
	ModeInit Mode = "init"
	// ModeSync updates from the README and the last week of commits.
	ModeSync Mode = "sync"
)

// Placeholders mark a project body that was never filled in.
var Placeholders = []string{"TODO:", "待填寫", "(待補充)"}

// SelectMode picks init when forced or when body still has placeholders.
func SelectMode(force bool, body string) Mode {
	if force {
		return ModeInit
	}
	for _, p := range Placeholders {
		if strings.Contains(body, p) {
			return ModeInit
		}
	}
	return ModeSync
}

// GitLog is the version-control surface used to describe recent work.
type GitLog interface {
	RecentLog(ctx context.Context, repo string, n int) string
	LogSince(ctx context.Context, repo string, days int) string
}

// Syncer runs project syncs.
type Syncer struct {
	projects *project.Repository
	git      GitLog
	gen      llm.Generator
	logger   *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// New creates a Syncer. A nil gen behaves as llm.Disabled.
func New(projects *project.Repository, git GitLog, gen llm.Generator, opts ...Option) *Syncer {
	if gen == nil {
		gen = llm.Disabled{}
	}
	s := &Syncer{projects: projects, git: git, gen: gen, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Result reports what a sync changed.
type Result struct {
	Project string   `json:"project"`
	Mode    Mode     `json:"mode"`
	Repo    string   `json:"repo"`
	Updated []string `json:"updated"`
}

// Sync analyses the project's repository and rewrites its sections.
func (s *Syncer) Sync(ctx context.Context, name string, force bool) (*Result, error) {
	ref, err := s.projects.MustResolve(name)
	if err != nil {
		return nil, err
	}
	p, doc, err := s.projects.Load(ref)
	if err != nil {
		return nil, err
	}

	repo := project.RepoPath(p)
	if repo == "" {
		return nil, fmt.Errorf("project %s has no repo field: %w", p.Name, apperr.ErrInvalidArgument)
	}
	repoFS, err := storage.NewFS(repo)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("repo %s: %w", repo, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("repo %s: %w", repo, err)
	}

	mode := SelectMode(force, doc.Body)
	log := s.logger.With(slog.String("project", p.Name), slog.String("mode", string(mode)))

	rc, err := s.gather(ctx, repoFS, repo, mode)
	if err != nil {
		return nil, err
	}

	log.Info("sync: analysing repository", slog.String("repo", repo))
	raw, err := s.gen.Generate(ctx, buildPrompt(p.Name, mode, rc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrAnalysisFailed, err)
	}

	a, err := ParseAnalysis(raw)
	if err != nil {
		return nil, err
	}

	updated, err := s.projects.UpdateSections(ref, string(mode), a.Updates())
	if err != nil {
		return nil, err
	}
	log.Info("sync: project updated", slog.Any("sections", updated))
	return &Result{Project: p.Name, Mode: mode, Repo: repo, Updated: updated}, nil
}
