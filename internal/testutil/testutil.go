// Package testutil provides shared test helpers for seeding data roots and databases.
package testutil

import (
	"os"
	"path"
	"testing"

	"github.com/starford/komorebi/internal/storage"
)

// DataRoot creates a temporary data root with a storage provider.
func DataRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TempDBPath returns a temporary SQLite file path removed after the test.
func TempDBPath(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "komorebi-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

// WriteFile writes content under the data root, failing the test on error.
func WriteFile(t *testing.T, store storage.Provider, p, content string) {
	t.Helper()
	if err := store.Write(p, []byte(content)); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// WriteProject seeds projects/<name>/project.md and, when tasks is not
// empty, tasks.md.
func WriteProject(t *testing.T, store storage.Provider, name, projectMD, tasks string) {
	t.Helper()
	WriteFile(t, store, path.Join("projects", name, "project.md"), projectMD)
	if tasks != "" {
		WriteFile(t, store, path.Join("projects", name, "tasks.md"), tasks)
	}
}

// DemoProject is a minimal active project header and body.
const DemoProject = `---
name: demo
type: software
status: active
priority: 1
---

# demo

## 目標
Ship the demo.

## 進度日誌
- 2026-10-01: created
`
