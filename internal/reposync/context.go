package reposync

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/storage"
)

var (
	readmeNames   = []string{"README.md", "README", "readme.md", "README.rst"}
	manifestNames = []string{"go.mod", "package.json", "pyproject.toml", "Cargo.toml"}
)

// repoContext is the material handed to the analysis prompt.
type repoContext struct {
	Readme       string
	Architecture string
	Agents       string
	Manifest     string
	ManifestName string
	Listing      string
	Commits      string
}

func (s *Syncer) gather(ctx context.Context, repoFS storage.Provider, repo string, mode Mode) (repoContext, error) {
	var rc repoContext

	limit := 2000
	if mode == ModeInit {
		limit = 4000
	}
	for _, n := range readmeNames {
		if rc.Readme = repoFS.ReadBounded(n, limit); rc.Readme != "" {
			break
		}
	}
	if rc.Readme == "" {
		return rc, fmt.Errorf("README in %s: %w", repo, apperr.ErrNotFound)
	}

	if mode == ModeSync {
		rc.Commits = s.git.LogSince(ctx, repo, 7)
		return rc, nil
	}

	rc.Architecture = repoFS.ReadBounded("docs/ARCHITECTURE.md", 3000)
	rc.Agents = repoFS.ReadBounded("CLAUDE.md", 3000)
	for _, n := range manifestNames {
		if m := repoFS.ReadBounded(n, 2000); m != "" {
			rc.Manifest, rc.ManifestName = m, n
			break
		}
	}
	rc.Listing = listing(repoFS)
	rc.Commits = s.git.RecentLog(ctx, repo, 30)
	return rc, nil
}

func listing(repoFS storage.Provider) string {
	entries, err := repoFS.List("")
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(&b, "%s/\n", e.Name)
		} else {
			fmt.Fprintf(&b, "%s\n", e.Name)
		}
	}
	return b.String()
}

func buildPrompt(name string, mode Mode, rc repoContext) string {
	var b strings.Builder
	if mode == ModeInit {
		fmt.Fprintf(&b, "分析專案 %s 的程式庫，完整撰寫專案摘要。\n", name)
	} else {
		fmt.Fprintf(&b, "根據最近一週的變更，更新專案 %s 的進度摘要。\n", name)
	}
	b.WriteString("只回覆 YAML，包含以下欄位（字串，可多行）：goal, tech_stack, progress, blockers。\n")
	b.WriteString("沒有資訊的欄位留空字串。使用繁體中文。\n")

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		fmt.Fprintf(&b, "\n### %s\n%s\n", title, strings.TrimRight(body, "\n"))
	}
	section("README", rc.Readme)
	section("docs/ARCHITECTURE.md", rc.Architecture)
	section("CLAUDE.md", rc.Agents)
	section(rc.ManifestName, rc.Manifest)
	section("目錄結構", rc.Listing)
	section("Git log", rc.Commits)
	return b.String()
}
