//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			project UNINDEXED,
			text,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id int64, project, text string, tags []string) error {
	_, err := tx.Exec(`INSERT INTO tasks_fts (rowid, project, text, tags) VALUES (?, ?, ?, ?)`,
		id, project, text, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, project string) error {
	if _, err := tx.Exec(`DELETE FROM tasks_fts WHERE project = ?`, project); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search runs an FTS5 match over task text and tags. A leading "#"
// restricts the match to tags.
func (db *DB) Search(query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.TrimSpace(query)
	match := `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
	if strings.HasPrefix(q, "#") {
		match = `tags : "` + strings.ReplaceAll(strings.TrimPrefix(q, "#"), `"`, `""`) + `"`
	}
	rows, err := db.conn.Query(`
		SELECT t.project, t.bucket, t.text, t.tags, t.is_today, t.completed_date
		FROM tasks_fts f
		JOIN tasks t ON t.id = f.rowid
		JOIN projects p ON p.dir = t.project
		WHERE tasks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}
