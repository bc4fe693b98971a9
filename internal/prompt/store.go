// Package prompt holds the system/user prompt templates for each generation
// stage and the literal placeholder substitution applied to them.
package prompt

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/smartplan/internal/domain"
	"gopkg.in/yaml.v3"
)

// Stage names a pipeline step that owns a prompt pair.
type Stage string

const (
	StageSmartGoal Stage = "smart_goal"
	StagePlan      Stage = "plan"
)

// ErrUnknownStage is returned when no template is registered for a stage.
var ErrUnknownStage = errors.New("unknown prompt stage")

//go:embed prompts.yaml
var defaultTemplates []byte

// Template is one stage's prompt pair as stored in the YAML file.
type Template struct {
	Description  string   `yaml:"description"`
	Placeholders []string `yaml:"placeholders"`
	System       string   `yaml:"system"`
	User         string   `yaml:"user"`
}

// Rendered is a prompt pair with all known placeholders substituted.
type Rendered struct {
	System string
	User   string
}

// Store maps stages to their templates.
type Store struct {
	templates map[Stage]Template
}

// Default returns the store built from the embedded templates.
func Default() *Store {
	s, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml is invalid: %v", err))
	}
	return s
}

// Parse builds a store from YAML bytes keyed by stage name.
func Parse(data []byte) (*Store, error) {
	raw := map[string]Template{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding prompt templates: %w", err)
	}
	s := &Store{templates: make(map[Stage]Template, len(raw))}
	for name, tmpl := range raw {
		if strings.TrimSpace(tmpl.User) == "" {
			return nil, fmt.Errorf("prompt stage %q has no user template", name)
		}
		s.templates[Stage(name)] = tmpl
	}
	return s, nil
}

// Template returns the raw template for a stage.
func (s *Store) Template(stage Stage) (Template, error) {
	tmpl, ok := s.templates[stage]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return tmpl, nil
}

// Stages lists the registered stage names in sorted order.
func (s *Store) Stages() []Stage {
	out := make([]Stage, 0, len(s.templates))
	for st := range s.templates {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Render substitutes vars into both templates of a stage.
func (s *Store) Render(stage Stage, vars map[string]string) (Rendered, error) {
	tmpl, err := s.Template(stage)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{
		System: Substitute(tmpl.System, vars),
		User:   Substitute(tmpl.User, vars),
	}, nil
}

// Substitute replaces every occurrence of "$KEY" with vars[KEY]. Tokens with
// no matching key are left as they are. Longer keys go first so that a key
// which is a prefix of another never consumes part of it.
func Substitute(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "$"+k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// PreGoalVars builds the substitution map for the SMART goal stage. The
// profile is embedded as JSON, "{}" when absent.
func PreGoalVars(p domain.PreGoal) map[string]string {
	profile := "{}"
	if len(p.Profile) > 0 {
		if data, err := json.Marshal(p.Profile); err == nil {
			profile = string(data)
		}
	}
	return map[string]string{
		"WHAT":    p.What,
		"WHY":     p.Why,
		"WHEN":    p.When,
		"PROFILE": profile,
	}
}

// PlanVars builds the substitution map for the plan stage.
func PlanVars(smartGoal string, now time.Time) map[string]string {
	return map[string]string{
		"SMART_GOAL":   smartGoal,
		"CURRENT_DATE": now.UTC().Format(time.RFC3339),
	}
}
