// Package project resolves, reads and updates project records stored as
// projects/<dir>/project.md with a sibling tasks.md.
package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/document"
	"github.com/starford/komorebi/internal/models"
	"github.com/starford/komorebi/internal/storage"
	"github.com/starford/komorebi/internal/tasks"
)

const (
	Dir         = "projects"
	ProjectFile = "project.md"
	TasksFile   = "tasks.md"
	DefaultType = "software"
)

// Ref identifies one project directory.
type Ref struct {
	Dir  string // directory name, the identity key
	Path string // primary document relative to the data root
}

// TasksPath is the sibling task document.
func (r Ref) TasksPath() string {
	return path.Join(Dir, r.Dir, TasksFile)
}

// Folder is the project directory relative to the data root.
func (r Ref) Folder() string {
	return path.Join(Dir, r.Dir)
}

// Repository reads and writes project records.
type Repository struct {
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// NewRepository creates a repository over store.
func NewRepository(store storage.Provider, opts ...Option) *Repository {
	r := &Repository{store: store, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Store returns the underlying provider.
func (r *Repository) Store() storage.Provider { return r.store }

// ListAll returns every subdirectory of projects/ that holds a project.md,
// in directory enumeration order. A missing projects/ directory is empty.
func (r *Repository) ListAll() ([]Ref, error) {
	entries, err := r.store.List(Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("project: list: %w", err)
	}
	var refs []Ref
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		p := path.Join(Dir, e.Name, ProjectFile)
		if !r.store.Exists(p) {
			continue
		}
		refs = append(refs, Ref{Dir: e.Name, Path: p})
	}
	return refs, nil
}

// Names returns all project directory names, for error hints.
func (r *Repository) Names() []string {
	refs, _ := r.ListAll()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Dir)
	}
	return names
}

// Resolve matches name case-insensitively against project directories.
func (r *Repository) Resolve(name string) (Ref, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Ref{}, false
	}
	refs, err := r.ListAll()
	if err != nil {
		r.logger.Warn("project: resolve", slog.String("error", err.Error()))
		return Ref{}, false
	}
	for _, ref := range refs {
		if strings.ToLower(ref.Dir) == key {
			return ref, true
		}
	}
	return Ref{}, false
}

// MustResolve is Resolve returning apperr.ErrNotFound for unknown names.
func (r *Repository) MustResolve(name string) (Ref, error) {
	ref, ok := r.Resolve(name)
	if !ok {
		return Ref{}, fmt.Errorf("project %q: %w", name, apperr.ErrNotFound)
	}
	return ref, nil
}

// Load reads the project document and its header view.
func (r *Repository) Load(ref Ref) (models.Project, *document.Document, error) {
	doc, err := document.Load(r.store, ref.Path)
	if err != nil {
		return models.Project{}, nil, err
	}
	return FromHeader(ref, doc.Header), doc, nil
}

// FromHeader builds the project view, applying field defaults.
func FromHeader(ref Ref, h *document.Header) models.Project {
	p := models.Project{
		Name:     ref.Dir,
		Dir:      ref.Dir,
		Path:     ref.Path,
		Type:     DefaultType,
		Priority: models.DefaultPriority,
		Repo:     h.String("repo"),
		Updated:  h.String("updated"),
	}
	if n := h.String("name"); n != "" {
		p.Name = n
	}
	if t := h.String("type"); t != "" {
		p.Type = t
	}
	p.Status, _ = models.ParseStatus(h.String("status"))
	if pr, ok := h.Int("priority"); ok {
		p.Priority = pr
	}
	if pg, ok := h.Int("progress"); ok {
		pg = min(max(pg, 0), 100)
		p.Progress = &pg
	}
	return p
}

// Tasks parses the sibling task document. A missing document yields an
// empty list.
func (r *Repository) Tasks(ref Ref) (models.TaskList, error) {
	data, err := r.store.Read(ref.TasksPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.TaskList{}, nil
		}
		return models.TaskList{}, err
	}
	return tasks.Parse(string(data)), nil
}

// CountTasks returns task stats, all zero when there is no task document.
func (r *Repository) CountTasks(ref Ref) models.Stats {
	list, err := r.Tasks(ref)
	if err != nil {
		r.logger.Warn("project: read tasks", slog.String("project", ref.Dir), slog.String("error", err.Error()))
		return models.Stats{}
	}
	return list.Stats()
}

// Progress is the derived completion percent.
func (r *Repository) Progress(ref Ref) int {
	return r.CountTasks(ref).Percent()
}

// Summaries loads every project with stats, sorted by priority ascending.
// Ties keep enumeration order. Unreadable projects are skipped.
func (r *Repository) Summaries() ([]models.Summary, error) {
	refs, err := r.ListAll()
	if err != nil {
		return nil, err
	}
	out := make([]models.Summary, 0, len(refs))
	for _, ref := range refs {
		p, _, err := r.Load(ref)
		if err != nil {
			r.logger.Warn("project: load", slog.String("project", ref.Dir), slog.String("error", err.Error()))
			continue
		}
		out = append(out, models.Summary{Project: p, Stats: r.CountTasks(ref)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// Files lists the project folder.
func (r *Repository) Files(ref Ref) ([]storage.Entry, error) {
	return r.store.List(ref.Folder())
}

// StatusChange is the result of UpdateStatus.
type StatusChange struct {
	Project string        `json:"project"`
	Old     models.Status `json:"old_status"`
	New     models.Status `json:"new_status"`
}

// UpdateStatus rewrites the header status and updated date.
func (r *Repository) UpdateStatus(name, status string) (StatusChange, error) {
	ref, err := r.MustResolve(name)
	if err != nil {
		return StatusChange{}, err
	}
	next, ok := models.ParseStatus(status)
	if !ok {
		return StatusChange{}, fmt.Errorf("status %q (want one of %s): %w",
			status, joinStatuses(), apperr.ErrInvalidArgument)
	}
	p, doc, err := r.Load(ref)
	if err != nil {
		return StatusChange{}, err
	}
	if err := doc.Header.Set("status", string(next)); err != nil {
		return StatusChange{}, err
	}
	doc.Header.SetDate("updated", r.now())
	if err := document.Save(r.store, ref.Path, doc); err != nil {
		return StatusChange{}, err
	}
	return StatusChange{Project: p.Name, Old: p.Status, New: next}, nil
}

func joinStatuses() string {
	s := make([]string, len(models.Statuses))
	for i, st := range models.Statuses {
		s[i] = string(st)
	}
	return strings.Join(s, ", ")
}

// RepoPath returns the expanded repo path from the header, "" when unset.
func RepoPath(p models.Project) string {
	if p.Repo == "" {
		return ""
	}
	return ExpandHome(p.Repo)
}

// ExpandHome expands a leading "~" to the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
