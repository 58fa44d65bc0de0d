package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/komorebi/internal/models"
)

// ProjectRow represents a row in the projects table.
type ProjectRow struct {
	Dir       string
	Name      string
	Status    string
	Priority  int
	Checksum  string
	IndexedAt time.Time
}

// Hit is one task matched by Search.
type Hit struct {
	Project       string        `json:"project"`
	Bucket        models.Bucket `json:"bucket"`
	Text          string        `json:"text"`
	Tags          []string      `json:"tags,omitempty"`
	IsToday       bool          `json:"is_today"`
	CompletedDate string        `json:"completed_date,omitempty"`
}

// UpsertProject replaces a project row and all of its tasks within a
// transaction.
func (db *DB) UpsertProject(p ProjectRow, list models.TaskList) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO projects (dir, name, status, priority, checksum, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(dir) DO UPDATE SET
			name       = excluded.name,
			status     = excluded.status,
			priority   = excluded.priority,
			checksum   = excluded.checksum,
			indexed_at = excluded.indexed_at
	`, p.Dir, p.Name, p.Status, p.Priority, p.Checksum, p.IndexedAt)
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}

	if err := ftsDelete(tx, p.Dir); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tasks WHERE project = ?`, p.Dir); err != nil {
		return fmt.Errorf("index: clear tasks: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tasks (project, bucket, position, text, tags, is_today, completed_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare task insert: %w", err)
	}
	defer stmt.Close()

	buckets := []struct {
		bucket models.Bucket
		tasks  []models.Task
	}{
		{models.BucketInProgress, list.InProgress},
		{models.BucketPending, list.Pending},
		{models.BucketCompleted, list.Completed},
	}
	for _, b := range buckets {
		for i, t := range b.tasks {
			tags := t.Tags
			if tags == nil {
				tags = []string{}
			}
			tagsJSON, _ := json.Marshal(tags)
			var done string
			if t.CompletedDate != nil {
				done = t.CompletedDate.Format(time.DateOnly)
			}
			res, err := stmt.Exec(p.Dir, string(b.bucket), i, t.Text, string(tagsJSON), t.IsToday, done)
			if err != nil {
				return fmt.Errorf("index: insert task: %w", err)
			}
			id, _ := res.LastInsertId()
			if err := ftsUpsert(tx, id, p.Dir, t.Text, t.Tags); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteProject removes a project and its tasks. It reports whether a row
// existed.
func (db *DB) DeleteProject(dir string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, dir); err != nil {
		return false, err
	}
	_, _ = tx.Exec(`DELETE FROM tasks WHERE project = ?`, dir)
	res, err := tx.Exec(`DELETE FROM projects WHERE dir = ?`, dir)
	if err != nil {
		return false, fmt.Errorf("index: delete project: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

// Checksum returns the stored checksum for a project, or "" if not indexed.
func (db *DB) Checksum(dir string) string {
	var cs string
	if err := db.conn.QueryRow(`SELECT checksum FROM projects WHERE dir = ?`, dir).Scan(&cs); err != nil {
		return ""
	}
	return cs
}

// AllChecksums returns dir → checksum for every indexed project.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT dir, checksum FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var dir, cs string
		if err := rows.Scan(&dir, &cs); err != nil {
			return nil, err
		}
		out[dir] = cs
	}
	return out, rows.Err()
}

// Projects lists indexed projects by priority, then directory.
func (db *DB) Projects() ([]ProjectRow, error) {
	rows, err := db.conn.Query(`
		SELECT dir, name, status, priority, checksum, indexed_at
		FROM projects
		ORDER BY priority, dir
	`)
	if err != nil {
		return nil, fmt.Errorf("index: projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRow
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(&p.Dir, &p.Name, &p.Status, &p.Priority, &p.Checksum, &p.IndexedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TaskCount returns the number of indexed tasks of a project.
func (db *DB) TaskCount(dir string) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT count(*) FROM tasks WHERE project = ?`, dir).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: task count: %w", err)
	}
	return n, nil
}

func scanHits(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Hit, error) {
	var out []Hit
	for rows.Next() {
		var (
			h    Hit
			tags string
		)
		if err := rows.Scan(&h.Project, &h.Bucket, &h.Text, &tags, &h.IsToday, &h.CompletedDate); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &h.Tags)
		out = append(out, h)
	}
	return out, rows.Err()
}
