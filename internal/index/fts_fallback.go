//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the tasks table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ int64, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches query as a substring of task text or tags. A leading "#"
// restricts the match to tags.
func (db *DB) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.TrimSpace(query)
	where := `t.text LIKE ? ESCAPE '\' OR t.tags LIKE ? ESCAPE '\'`
	like := "%" + likeEscaper.Replace(q) + "%"
	args := []any{like, like}
	if tag, ok := strings.CutPrefix(q, "#"); ok {
		// Tags are stored as a JSON array; anchor on the opening quote.
		where = `t.tags LIKE ? ESCAPE '\'`
		args = []any{`%"` + likeEscaper.Replace(tag) + "%"}
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT t.project, t.bucket, t.text, t.tags, t.is_today, t.completed_date
		FROM tasks t
		JOIN projects p ON p.dir = t.project
		WHERE `+where+`
		ORDER BY p.priority, t.project,
			CASE t.bucket WHEN 'in_progress' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END,
			t.position
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}
