// Package memory keeps long-lived user preferences and project facts in
// memory/facts.yaml.
package memory

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/storage"
)

const FactsPath = "memory/facts.yaml"

// Memory categories.
const (
	CategoryUser     = "user"
	CategoryProjects = "projects"
)

// Categories lists the accepted categories.
var Categories = []string{CategoryUser, CategoryProjects}

// Facts is the decoded facts file: category → key → value.
type Facts map[string]map[string]any

// Store reads and writes the facts file.
type Store struct {
	store storage.Provider
}

// New creates a Store.
func New(store storage.Provider) *Store {
	return &Store{store: store}
}

// Load returns all facts. A missing file is empty.
func (s *Store) Load() (Facts, error) {
	facts := Facts{CategoryUser: {}, CategoryProjects: {}}
	data, err := s.store.Read(FactsPath)
	if errors.Is(err, os.ErrNotExist) {
		return facts, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("memory: %s: %v: %w", FactsPath, err, apperr.ErrParse)
	}
	for cat, kv := range raw {
		if kv == nil {
			kv = map[string]any{}
		}
		facts[cat] = kv
	}
	return facts, nil
}

// Get returns a whole category, or one key of it when key is set.
// ok is false when nothing is stored there.
func (s *Store) Get(category, key string) (any, bool, error) {
	facts, err := s.Load()
	if err != nil {
		return nil, false, err
	}
	cat := facts[category]
	if key == "" {
		return cat, len(cat) > 0, nil
	}
	v, ok := cat[key]
	return v, ok, nil
}

// Remember stores value under category/key, replacing any previous value.
func (s *Store) Remember(category, key, value string) error {
	facts, err := s.Load()
	if err != nil {
		return err
	}
	if facts[category] == nil {
		facts[category] = map[string]any{}
	}
	facts[category][key] = value

	data, err := yaml.Marshal(facts)
	if err != nil {
		return fmt.Errorf("memory: encode: %w", err)
	}
	return s.store.Write(FactsPath, data)
}

// Format renders a stored value as YAML text.
func Format(v any) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
