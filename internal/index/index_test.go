package index

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/komorebi/internal/models"
	"github.com/starford/komorebi/internal/tasks"
	"github.com/starford/komorebi/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(testutil.TempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

const sampleTasks = `## 進行中
- [ ] Write the index @today #go

## 待處理
- [ ] Review 100% coverage #qa
- [ ] Plan release

## 已完成
- [x] Set up CI #go (2026-10-10)
`

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM projects`).Scan(&count); err != nil {
		t.Fatalf("projects table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks`).Scan(&count); err != nil {
		t.Fatalf("tasks table missing: %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestUpsertAndSearch(t *testing.T) {
	db := testDB(t)
	row := ProjectRow{Dir: "demo", Name: "demo", Status: "active", Priority: 1, Checksum: "abc", IndexedAt: time.Now()}
	if err := db.UpsertProject(row, tasks.Parse(sampleTasks)); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	if cs := db.Checksum("demo"); cs != "abc" {
		t.Errorf("checksum = %q", cs)
	}
	if n, _ := db.TaskCount("demo"); n != 4 {
		t.Errorf("task count = %d, want 4", n)
	}

	hits, err := db.Search("index", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []Hit{{Project: "demo", Bucket: models.BucketInProgress, Text: "Write the index", Tags: []string{"go"}, IsToday: true}}
	if diff := cmp.Diff(want, hits); diff != "" {
		t.Errorf("hits (-want +got):\n%s", diff)
	}

	hits, _ = db.Search("#go", 10)
	if len(hits) != 2 || hits[1].CompletedDate != "2026-10-10" {
		t.Errorf("tag search = %+v", hits)
	}
}

func TestSearch_EscapesWildcards(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertProject(ProjectRow{Dir: "demo", Checksum: "1", IndexedAt: time.Now()}, tasks.Parse(sampleTasks))

	hits, _ := db.Search("100%", 10)
	if len(hits) != 1 || hits[0].Text != "Review 100% coverage" {
		t.Errorf("hits = %+v", hits)
	}
	if hits, _ := db.Search("_", 10); len(hits) != 0 {
		t.Errorf("underscore should be literal, got %+v", hits)
	}
}

func TestSearch_OrdersByPriority(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertProject(ProjectRow{Dir: "later", Priority: 5, Checksum: "1", IndexedAt: now}, tasks.Parse("- [ ] ship it"))
	_ = db.UpsertProject(ProjectRow{Dir: "first", Priority: 1, Checksum: "2", IndexedAt: now}, tasks.Parse("- [ ] ship that"))

	hits, _ := db.Search("ship", 1)
	if len(hits) != 1 || hits[0].Project != "first" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestUpsertReplacesTasks(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertProject(ProjectRow{Dir: "demo", Checksum: "1", IndexedAt: now}, tasks.Parse("- [ ] original wording"))
	_ = db.UpsertProject(ProjectRow{Dir: "demo", Checksum: "2", IndexedAt: now}, tasks.Parse("- [ ] replacement wording"))

	if hits, _ := db.Search("original", 10); len(hits) != 0 {
		t.Error("old task should be gone")
	}
	if hits, _ := db.Search("replacement", 10); len(hits) != 1 {
		t.Error("new task should be indexed")
	}
}

func TestDeleteProject(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertProject(ProjectRow{Dir: "gone", Checksum: "x", IndexedAt: time.Now()}, tasks.Parse(sampleTasks))

	removed, err := db.DeleteProject("gone")
	if err != nil || !removed {
		t.Fatalf("DeleteProject = %v, %v", removed, err)
	}
	if cs := db.Checksum("gone"); cs != "" {
		t.Errorf("deleted project still has checksum %q", cs)
	}
	if n, _ := db.TaskCount("gone"); n != 0 {
		t.Errorf("expected 0 tasks after delete, got %d", n)
	}
	if removed, _ := db.DeleteProject("gone"); removed {
		t.Error("second delete should report nothing removed")
	}
}

func TestChecksum(t *testing.T) {
	if checksum([]byte("ab"), []byte("c")) == checksum([]byte("a"), []byte("bc")) {
		t.Error("part boundaries should change the checksum")
	}
	if checksum([]byte("x")) != checksum([]byte("x")) {
		t.Error("checksum should be deterministic")
	}
}
