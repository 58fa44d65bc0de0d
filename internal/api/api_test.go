package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/starford/komorebi/internal/index"
	"github.com/starford/komorebi/internal/memory"
	"github.com/starford/komorebi/internal/planning"
	"github.com/starford/komorebi/internal/project"
	"github.com/starford/komorebi/internal/reposync"
	"github.com/starford/komorebi/internal/review"
	"github.com/starford/komorebi/internal/testutil"
	"github.com/starford/komorebi/internal/tools"
)

const demoTasks = `## 進行中
- [ ] Wire the router @today #http

## 待處理
- [ ] Document the endpoints #http

## 已完成
- [x] Pick chi (2026-10-12)
`

type noGit struct{}

func (noGit) CommitsInRange(context.Context, string, time.Time, time.Time) []string { return nil }
func (noGit) CommitsToday(context.Context, string) []string                         { return nil }
func (noGit) RecentLog(context.Context, string, int) string                         { return "" }
func (noGit) LogSince(context.Context, string, int) string                          { return "" }

// testEnv seeds a data root with one project, indexes it and returns the router.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	_, store := testutil.DataRoot(t)
	testutil.WriteProject(t, store, "demo", testutil.DemoProject, demoTasks)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projects := project.NewRepository(store, project.WithLogger(logger))

	db, err := index.Open(testutil.TempDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := index.Sync(db, projects, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	srv := tools.New(tools.Deps{
		Projects: projects,
		Planner:  planning.New(store, projects),
		Reviews:  review.New(store, projects, noGit{}, review.WithLogger(logger)),
		Syncer:   reposync.New(projects, noGit{}, nil, reposync.WithLogger(logger)),
		Memory:   memory.New(store),
		Index:    db,
		Logger:   logger,
	})
	return NewRouter(srv, authToken != "", authToken, nil)
}

func do(t *testing.T, h http.Handler, method, target string, body any) (*httptest.ResponseRecorder, ToolResponse) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp ToolResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func text(r ToolResponse) string {
	var parts []string
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

func TestListProjects(t *testing.T) {
	h := testEnv(t, "")
	w, resp := do(t, h, http.MethodGet, "/projects", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp.IsError || !strings.Contains(text(resp), "**demo**") {
		t.Errorf("response = %+v", resp)
	}
}

func TestShowProject(t *testing.T) {
	h := testEnv(t, "")

	w, resp := do(t, h, http.MethodGet, "/projects/DEMO", nil)
	if w.Code != http.StatusOK || !strings.Contains(text(resp), "Ship the demo.") {
		t.Errorf("status = %d, text = %q", w.Code, text(resp))
	}

	w, resp = do(t, h, http.MethodGet, "/projects/ghost", nil)
	if w.Code != http.StatusUnprocessableEntity || !resp.IsError {
		t.Errorf("unknown project: status = %d, is_error = %v", w.Code, resp.IsError)
	}
	if !strings.Contains(text(resp), "找不到專案：ghost") {
		t.Errorf("text = %q", text(resp))
	}
}

func TestTodayTasks(t *testing.T) {
	h := testEnv(t, "")
	w, resp := do(t, h, http.MethodGet, "/tasks/today", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(text(resp), "Wire the router") {
		t.Errorf("text = %q", text(resp))
	}
}

func TestSearchTasks(t *testing.T) {
	h := testEnv(t, "")

	w, resp := do(t, h, http.MethodGet, "/tasks/search?q=%23http&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(text(resp), "（2 筆）") {
		t.Errorf("text = %q", text(resp))
	}

	w, _ = do(t, h, http.MethodGet, "/tasks/search?q=x&limit=many", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}

	w, resp = do(t, h, http.MethodGet, "/tasks/search", nil)
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(text(resp), "請提供搜尋字串") {
		t.Errorf("missing query: status = %d, text = %q", w.Code, text(resp))
	}
}

func TestCreateReview(t *testing.T) {
	h := testEnv(t, "")

	w, resp := do(t, h, http.MethodPost, "/reviews", ReviewRequest{Period: "week", Date: "2026-W42"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(text(resp), "2026-W42") {
		t.Errorf("text = %q", text(resp))
	}

	w, resp = do(t, h, http.MethodPost, "/reviews", ReviewRequest{Period: "year"})
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(text(resp), "無效的期間") {
		t.Errorf("bad period: status = %d, text = %q", w.Code, text(resp))
	}

	req := httptest.NewRequest(http.MethodPost, "/reviews", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
}

func TestTools(t *testing.T) {
	h := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var list []ToolInfo
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) == 0 || list[0].Name != "list_projects" || list[0].Description == "" {
		t.Errorf("tools = %+v", list)
	}

	w, resp := do(t, h, http.MethodPost, "/tools/remember",
		map[string]any{"category": "user", "key": "editor", "value": "helix"})
	if w.Code != http.StatusOK {
		t.Fatalf("remember status = %d, body = %s", w.Code, w.Body.String())
	}
	want := ToolResponse{Content: []ContentBlock{{Type: "text", Text: "已記住：[user] editor = helix"}}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("remember mismatch (-want +got):\n%s", diff)
	}

	// Empty body means no arguments.
	w, _ = do(t, h, http.MethodPost, "/tools/list_projects", nil)
	if w.Code != http.StatusOK {
		t.Errorf("empty body status = %d", w.Code)
	}

	w, _ = do(t, h, http.MethodPost, "/tools/drop_tables", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown tool status = %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	h := testEnv(t, "s3cret")

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"s3cret", http.StatusUnauthorized},
		{"Bearer s3cret", http.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != c.want {
			t.Errorf("Authorization %q: status = %d, want %d", c.header, w.Code, c.want)
		}
	}
}

func TestEventsMounted(t *testing.T) {
	called := false
	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})
	r := NewRouter(tools.New(tools.Deps{}), false, "", events)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	if !called || w.Code != http.StatusNoContent {
		t.Errorf("events handler called = %v, status = %d", called, w.Code)
	}
}

func TestHealth(t *testing.T) {
	var readyErr error
	r := chi.NewRouter()
	MountHealth(r, func(context.Context) error { return readyErr })

	for _, c := range []struct {
		path string
		err  error
		want int
	}{
		{"/health/live", nil, http.StatusOK},
		{"/health/ready", nil, http.StatusOK},
		{"/health/ready", errors.New("database is locked"), http.StatusServiceUnavailable},
	} {
		readyErr = c.err
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, c.path, nil))
		if w.Code != c.want {
			t.Errorf("%s (err=%v): status = %d, want %d", c.path, c.err, w.Code, c.want)
		}
	}
}
