package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/komorebi/internal/index"
	"github.com/starford/komorebi/internal/llm"
	"github.com/starford/komorebi/internal/memory"
	"github.com/starford/komorebi/internal/planning"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/reposync"
	"github.com/starford/komorebi/internal/review"
	"github.com/starford/komorebi/internal/skills"
	"github.com/starford/komorebi/internal/storage"
	"github.com/starford/komorebi/internal/tools"
	"github.com/starford/komorebi/internal/vcs"
)

// services is the wired component graph shared by every run mode.
type services struct {
	projects *project.Repository
	db       *index.DB
	tools    *tools.Server
}

func (s *services) Close() error {
	return s.db.Close()
}

func newApplication(opts ...Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	// stdout belongs to the MCP stdio transport.
	out := app.logOutput
	if out == nil {
		out = os.Stderr
	}
	app.logger = newLogger(out, app.config.App.LogLevel)
	slog.SetDefault(app.logger)
	return app, nil
}

// build opens storage and the index and wires the tool façade. The index is
// synced once before returning.
func (a *application) build(ctx context.Context) (*services, error) {
	cfg, logger := a.config, a.logger

	logger.Info("Configuration loaded",
		slog.String("data_path", cfg.Data.Path),
		slog.String("skills_path", cfg.Skills.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("llm_enabled", cfg.LLM.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Data.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	projects := project.NewRepository(store, project.WithLogger(logger))

	git := vcs.NewGit(logger,
		vcs.WithTimeout(cfg.Git.Timeout),
		vcs.WithTodayTimeout(cfg.Git.TodayTimeout),
	)

	var gen llm.Generator = llm.Disabled{}
	if cfg.LLM.Enabled() {
		g, err := llm.NewGemini(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
		if err != nil {
			return nil, fmt.Errorf("init llm: %w", err)
		}
		gen = g
	}

	sk, err := skills.Discover(cfg.Skills.Path, skills.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init skills: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, projects, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := tools.New(tools.Deps{
		Projects: projects,
		Planner:  planning.New(store, projects, planning.WithLogger(logger)),
		Reviews: review.New(store, projects, git,
			review.WithLogger(logger),
			review.WithQuestioner(gen),
		),
		Syncer: reposync.New(projects, git, gen, reposync.WithLogger(logger)),
		Memory: memory.New(store),
		Skills: sk,
		Index:  db,
		Logger: logger,
	})

	return &services{projects: projects, db: db, tools: srv}, nil
}
