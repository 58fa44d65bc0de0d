package reposync

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/komorebi/internal/apperr"
	"github.com/starford/komorebi/internal/project"
)

// Analysis is the structured answer of the text generator.
type Analysis struct {
	Goal      string
	TechStack string
	Progress  string
	Blockers  string
}

// Updates maps the analysis onto project sections.
func (a Analysis) Updates() []project.SectionUpdate {
	return []project.SectionUpdate{
		{Heading: project.SectionGoal, Content: a.Goal},
		{Heading: project.SectionTechStack, Content: a.TechStack},
		{Heading: project.SectionProgress, Content: a.Progress},
		{Heading: project.SectionBlockers, Content: a.Blockers},
	}
}

func (a Analysis) empty() bool {
	return a.Goal == "" && a.TechStack == "" && a.Progress == "" && a.Blockers == ""
}

var fenceRe = regexp.MustCompile("(?s)```(?:ya?ml)?\\s*\\n(.*?)```")

// ParseAnalysis reads the generator output as YAML, optionally fenced.
// Output that is not a mapping or carries no known field fails with an
// *apperr.FormatError holding raw.
func ParseAnalysis(raw string) (Analysis, error) {
	text := raw
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		text = m[1]
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(text), &fields); err != nil {
		return Analysis{}, &apperr.FormatError{Raw: raw, Reason: err.Error()}
	}

	a := Analysis{
		Goal:      flatten(fields["goal"]),
		TechStack: flatten(fields["tech_stack"]),
		Progress:  flatten(fields["progress"]),
		Blockers:  flatten(fields["blockers"]),
	}
	if a.empty() {
		return Analysis{}, &apperr.FormatError{Raw: raw, Reason: "no goal, tech_stack, progress or blockers field"}
	}
	return a, nil
}

// flatten renders a scalar as text and a list as Markdown bullets.
func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		var lines []string
		for _, item := range t {
			if s := flatten(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var lines []string
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- %s: %s", k, flatten(t[k])))
		}
		return strings.Join(lines, "\n")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
