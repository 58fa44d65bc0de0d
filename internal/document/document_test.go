package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/storage"
)

func TestParse_HeaderAndBody(t *testing.T) {
	input := []byte("---\nname: demo\nstatus: active\npriority: 2\nupdated: 2026-10-01\n---\n\n# Demo\n\n## 目標\nShip it.\n")
	d, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.Header.Keys(); strings.Join(got, ",") != "name,status,priority,updated" {
		t.Errorf("keys = %v", got)
	}
	if d.Header.String("status") != "active" {
		t.Errorf("status = %q", d.Header.String("status"))
	}
	if p, ok := d.Header.Int("priority"); !ok || p != 2 {
		t.Errorf("priority = %d, %v", p, ok)
	}
	if v, _ := d.Header.Get("updated"); v != "2026-10-01" {
		t.Errorf("updated = %#v, want literal date string", v)
	}
	if d.Body != "# Demo\n\n## 目標\nShip it.\n" {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParse_NoHeader(t *testing.T) {
	d, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Header.Len() != 0 {
		t.Errorf("expected empty header, got %v", d.Header.Keys())
	}
	if d.Body != "# Just a heading\nSome text.\n" {
		t.Errorf("body = %q", d.Body)
	}
}

func TestParse_MalformedHeader(t *testing.T) {
	cases := map[string]string{
		"unterminated": "---\nname: demo\n# body without closing\n",
		"invalid yaml": "---\n: invalid: yaml: {{{\n---\nBody\n",
		"not a map":    "---\n- a\n- b\n---\nBody\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			if !errors.Is(err, apperr.ErrParse) {
				t.Errorf("err = %v, want ErrParse", err)
			}
		})
	}
}

func TestRoundTrip_PreservesHeaderValues(t *testing.T) {
	input := "---\nname: demo\ntype: software\nstatus: active\npriority: 1\nrepo: ~/code/demo\nupdated: 2026-10-01\ntags:\n  - go\n  - cli\n---\n\nBody.\n"
	d, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(out), "---\nname: demo\ntype: software\nstatus: active\npriority: 1\nrepo: ~/code/demo\nupdated: 2026-10-01\n") {
		t.Errorf("round trip changed scalar fields:\n%s", out)
	}
	if !strings.HasSuffix(string(out), "---\n\nBody.\n") {
		t.Errorf("round trip changed body:\n%s", out)
	}

	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	for _, k := range d.Header.Keys() {
		a, _ := d.Header.Get(k)
		b, _ := again.Header.Get(k)
		if !equalValue(a, b) {
			t.Errorf("key %s: %#v != %#v", k, a, b)
		}
	}
}

func equalValue(a, b any) bool {
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

func TestHeaderSet_DateStaysBare(t *testing.T) {
	d := New("body\n")
	_ = d.Header.Set("status", "paused")
	_ = d.Header.Set("updated", "2026-10-15")
	out, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := "---\nstatus: paused\nupdated: 2026-10-15\n---\n\nbody\n"
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestHeaderSet_OverwriteKeepsOrder(t *testing.T) {
	d, _ := Parse([]byte("---\nstatus: active\nname: demo\n---\nx"))
	_ = d.Header.Set("status", "completed")
	if got := strings.Join(d.Header.Keys(), ","); got != "status,name" {
		t.Errorf("keys = %s", got)
	}
	if d.Header.String("status") != "completed" {
		t.Errorf("status = %q", d.Header.String("status"))
	}
}

func TestLoadSave(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if _, err := Load(fs, "projects/demo/project.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Load missing: err = %v, want ErrNotFound", err)
	}

	d := New("## 目標\n\n")
	_ = d.Header.Set("name", "demo")
	if err := Save(fs, "projects/demo/project.md", d); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(fs, "projects/demo/project.md")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Header.String("name") != "demo" || got.Body != "## 目標\n\n" {
		t.Errorf("loaded = %v %q", got.Header.Map(), got.Body)
	}
}
