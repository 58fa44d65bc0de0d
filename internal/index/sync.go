package index

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/starford/komorebi/internal/document"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/tasks"
)

// Sync walks the projects tree and brings the index up to date:
//   - new/changed projects are parsed and upserted
//   - projects removed from disk are deleted from the index
func Sync(db *DB, projects *project.Repository, logger *slog.Logger) error {
	refs, err := projects.ListAll()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		disk[ref.Dir] = struct{}{}

		changed, err := indexProject(db, projects, ref, checksums[ref.Dir])
		switch {
		case err != nil:
			logger.Warn("sync: index failed", slog.String("project", ref.Dir), slog.String("error", err.Error()))
		case changed:
			logger.Debug("sync: indexed", slog.String("project", ref.Dir))
		}
	}

	// Remove stale entries.
	for dir := range checksums {
		if _, ok := disk[dir]; ok {
			continue
		}
		if _, err := db.DeleteProject(dir); err != nil {
			logger.Warn("sync: delete failed", slog.String("project", dir), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("project", dir))
		}
	}

	return nil
}

// indexProject reads both project files and upserts them unless their
// combined checksum equals known. It reports whether the index changed.
func indexProject(db *DB, projects *project.Repository, ref project.Ref, known string) (bool, error) {
	store := projects.Store()
	head, err := store.Read(ref.Path)
	if err != nil {
		return false, err
	}
	body, err := store.Read(ref.TasksPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	cs := checksum(head, body)
	if cs == known {
		return false, nil
	}

	doc, err := document.Parse(head)
	if err != nil {
		return false, err
	}
	p := project.FromHeader(ref, doc.Header)
	row := ProjectRow{
		Dir:       ref.Dir,
		Name:      p.Name,
		Status:    string(p.Status),
		Priority:  p.Priority,
		Checksum:  cs,
		IndexedAt: time.Now(),
	}
	return true, db.UpsertProject(row, tasks.Parse(string(body)))
}

// refreshProject reindexes one project directory, or drops it from the
// index when its project.md is gone. kind is "indexed", "removed" or "".
func refreshProject(db *DB, projects *project.Repository, dir string) (kind string, err error) {
	ref := project.Ref{Dir: dir, Path: path.Join(project.Dir, dir, project.ProjectFile)}
	if !projects.Store().Exists(ref.Path) {
		removed, err := db.DeleteProject(dir)
		if err != nil || !removed {
			return "", err
		}
		return "removed", nil
	}
	changed, err := indexProject(db, projects, ref, db.Checksum(dir))
	if err != nil || !changed {
		return "", err
	}
	return "indexed", nil
}

// checksum is the hex SHA-256 over the given parts, each length-prefixed
// so boundaries cannot collide.
func checksum(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		_ = binary.Write(h, binary.LittleEndian, uint64(len(p)))
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
