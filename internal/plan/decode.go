package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/llm"
)

const (
	MinScore = 1
	MaxScore = 5
)

// ErrInvalidStructure is returned when model output does not satisfy Schema.
var ErrInvalidStructure = errors.New("plan does not match schema")

// maxOrder bounds order values so they convert to int without wrapping.
const maxOrder = math.MaxInt32

// The wire types use pointers so a missing field can be told apart from a
// zero value.
type wirePlan struct {
	Goal *wireGoal `json:"goal"`
}

// nullableText is a required key whose value may be null. Set records that
// the key was present at all.
type nullableText struct {
	Set   bool
	Value *string
}

func (n *nullableText) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

type wireGoal struct {
	Name        *string          `json:"name"`
	Description nullableText     `json:"description"`
	Deadline    *string          `json:"deadline"`
	Progress    *float64         `json:"progress"`
	Milestones  *[]wireMilestone `json:"milestones"`
}

type wireMilestone struct {
	Name        *string      `json:"name"`
	Order       *float64     `json:"order"`
	Description nullableText `json:"description"`
	Deadline    nullableText `json:"deadline"`
	Tasks       *[]wireTask  `json:"tasks"`
}

type wireTask struct {
	Name          *string      `json:"name"`
	Order         *float64     `json:"order"`
	Description   nullableText `json:"description"`
	DurationHours *float64     `json:"duration_hours"`
	Deadline      *string      `json:"deadline"`
	Simplicity    *float64     `json:"simplicity"`
	Importance    *float64     `json:"importance"`
	Urgency       *float64     `json:"urgency"`
	Completed     *bool        `json:"completed"`
}

// Decode parses raw model output into a goal tree without identities. The
// whole object is rejected on the first violation; nothing is repaired.
func Decode(raw string) (*domain.Goal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidStructure)
	}
	wp, err := llm.ExtractJSON[wirePlan](raw, validateWirePlan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStructure, err)
	}
	return toGoal(wp.Goal), nil
}

func validateWirePlan(wp wirePlan) error {
	g := wp.Goal
	if g == nil {
		return missing("goal")
	}
	if err := requireText("goal.name", g.Name); err != nil {
		return err
	}
	if err := requirePresent("goal.description", g.Description); err != nil {
		return err
	}
	if err := requireText("goal.deadline", g.Deadline); err != nil {
		return err
	}
	if g.Progress == nil {
		return missing("goal.progress")
	}
	if g.Milestones == nil {
		return missing("goal.milestones")
	}
	for i, m := range *g.Milestones {
		path := fmt.Sprintf("goal.milestones[%d]", i)
		if err := validateWireMilestone(path, m); err != nil {
			return err
		}
	}
	return nil
}

func validateWireMilestone(path string, m wireMilestone) error {
	if err := requireText(path+".name", m.Name); err != nil {
		return err
	}
	if err := requireOrder(path+".order", m.Order); err != nil {
		return err
	}
	if err := requirePresent(path+".description", m.Description); err != nil {
		return err
	}
	if err := requirePresent(path+".deadline", m.Deadline); err != nil {
		return err
	}
	if m.Tasks == nil {
		return missing(path + ".tasks")
	}
	for j, t := range *m.Tasks {
		if err := validateWireTask(fmt.Sprintf("%s.tasks[%d]", path, j), t); err != nil {
			return err
		}
	}
	return nil
}

func validateWireTask(path string, t wireTask) error {
	if err := requireText(path+".name", t.Name); err != nil {
		return err
	}
	if err := requireOrder(path+".order", t.Order); err != nil {
		return err
	}
	if err := requirePresent(path+".description", t.Description); err != nil {
		return err
	}
	if t.DurationHours == nil {
		return missing(path + ".duration_hours")
	}
	if *t.DurationHours < 0 {
		return fmt.Errorf("%s.duration_hours must not be negative", path)
	}
	if err := requireText(path+".deadline", t.Deadline); err != nil {
		return err
	}
	for _, s := range []struct {
		name string
		v    *float64
	}{
		{"simplicity", t.Simplicity},
		{"importance", t.Importance},
		{"urgency", t.Urgency},
	} {
		if err := requireScore(path+"."+s.name, s.v); err != nil {
			return err
		}
	}
	if t.Completed == nil {
		return missing(path + ".completed")
	}
	return nil
}

func missing(path string) error {
	return fmt.Errorf("%s is required", path)
}

func requireText(path string, s *string) error {
	if s == nil {
		return missing(path)
	}
	if strings.TrimSpace(*s) == "" {
		return fmt.Errorf("%s must not be empty", path)
	}
	return nil
}

// requirePresent accepts null but not a missing key.
func requirePresent(path string, n nullableText) error {
	if !n.Set {
		return missing(path)
	}
	return nil
}

func requireInt(path string, v *float64) error {
	if v == nil {
		return missing(path)
	}
	if *v != math.Trunc(*v) {
		return fmt.Errorf("%s must be an integer, got %v", path, *v)
	}
	return nil
}

func requireOrder(path string, v *float64) error {
	if err := requireInt(path, v); err != nil {
		return err
	}
	if *v < 0 || *v > maxOrder {
		return fmt.Errorf("%s must be between 0 and %d, got %v", path, maxOrder, *v)
	}
	return nil
}

func requireScore(path string, v *float64) error {
	if err := requireInt(path, v); err != nil {
		return err
	}
	if *v < MinScore || *v > MaxScore {
		return fmt.Errorf("%s must be between %d and %d, got %v", path, MinScore, MaxScore, *v)
	}
	return nil
}

func toGoal(g *wireGoal) *domain.Goal {
	out := &domain.Goal{
		Name:        *g.Name,
		Description: g.Description.Value,
		Deadline:    *g.Deadline,
		Progress:    *g.Progress,
		Milestones:  make([]domain.Milestone, 0, len(*g.Milestones)),
	}
	for _, m := range *g.Milestones {
		dm := domain.Milestone{
			Name:        *m.Name,
			Order:       int(*m.Order),
			Description: m.Description.Value,
			Deadline:    m.Deadline.Value,
			Tasks:       make([]domain.Task, 0, len(*m.Tasks)),
		}
		for _, t := range *m.Tasks {
			dm.Tasks = append(dm.Tasks, domain.Task{
				Name:          *t.Name,
				Order:         int(*t.Order),
				Description:   t.Description.Value,
				DurationHours: *t.DurationHours,
				Deadline:      *t.Deadline,
				Simplicity:    int(*t.Simplicity),
				Importance:    int(*t.Importance),
				Urgency:       int(*t.Urgency),
				Completed:     *t.Completed,
			})
		}
		out.Milestones = append(out.Milestones, dm)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
