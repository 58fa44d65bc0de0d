// Package skills discovers on-demand instruction files. Only the name and
// description of each SKILL.md are read up front; the full text is loaded
// when a caller asks for it.
package skills

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/document"
	"github.com/starford/komorebi/internal/storage"
)

// FileName is the instruction file expected inside every skill directory.
const FileName = "SKILL.md"

const descriptionLimit = 100

// Info is the summary of one skill.
type Info struct {
	Name        string
	Description string
	Path        string // relative to the skills root
}

// Manager holds the skills found under one root directory.
type Manager struct {
	store  storage.Provider
	skills map[string]Info
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Discover scans root for <dir>/SKILL.md files. A missing root yields an
// empty manager. Unreadable skill files are skipped with a warning.
func Discover(root string, opts ...Option) (*Manager, error) {
	m := &Manager{skills: map[string]Info{}, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	if root == "" {
		return m, nil
	}
	store, err := storage.NewFS(root)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("skills: %w", err)
	}
	m.store = store

	entries, err := store.List("")
	if err != nil {
		return nil, fmt.Errorf("skills: list %s: %w", root, err)
	}
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		p := e.Name + "/" + FileName
		if !store.Exists(p) {
			continue
		}
		doc, err := document.Load(store, p)
		if err != nil {
			m.logger.Warn("skip skill", "path", p, "error", err)
			continue
		}
		name := doc.Header.String("name")
		if name == "" {
			name = e.Name
		}
		m.skills[name] = Info{
			Name:        name,
			Description: doc.Header.String("description"),
			Path:        p,
		}
	}
	return m, nil
}

// Names returns the skill names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.skills))
	for n := range m.skills {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// List returns every skill, sorted by name.
func (m *Manager) List() []Info {
	out := make([]Info, 0, len(m.skills))
	for _, n := range m.Names() {
		out = append(out, m.skills[n])
	}
	return out
}

// Prompt renders the skill catalogue as a Markdown table, or "" when no
// skill was found.
func (m *Manager) Prompt() string {
	if len(m.skills) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## 可用技能\n\n| 技能 | 說明 |\n|------|------|\n")
	for _, s := range m.List() {
		fmt.Fprintf(&b, "| `%s` | %s |\n", s.Name, summary(s.Description))
	}
	b.WriteString("\n當對話涉及上述主題時，請呼叫 `load_skill` 工具載入詳細指引。")
	return b.String()
}

// summary keeps the first description line, capped in characters.
func summary(desc string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(desc), "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > descriptionLimit {
		line = string(r[:descriptionLimit])
	}
	return line
}

// Load returns the full SKILL.md text of the named skill.
func (m *Manager) Load(name string) (string, error) {
	s, ok := m.skills[name]
	if !ok {
		avail := "(無)"
		if len(m.skills) > 0 {
			avail = strings.Join(m.Names(), ", ")
		}
		return "", fmt.Errorf("skill %q (available: %s): %w", name, avail, apperr.ErrNotFound)
	}
	data, err := m.store.Read(s.Path)
	if err != nil {
		return "", fmt.Errorf("skills: read %s: %w", s.Path, err)
	}
	return string(data), nil
}
