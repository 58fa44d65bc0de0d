package index

import "context"

// TaskIndex is the query side of the task index. Consumers depend on this
// interface rather than *DB so tests can stub it.
type TaskIndex interface {
	Search(query string, limit int) ([]Hit, error)
	Projects() ([]ProjectRow, error)
	Ping(ctx context.Context) error
}

var _ TaskIndex = (*DB)(nil)
