package domain

import (
	"fmt"
	"sort"
)

// Task is the leaf unit of work in a plan. MUID points at the owning milestone.
type Task struct {
	Name          string  `json:"name"`
	Order         int     `json:"order"`
	Description   *string `json:"description,omitempty"`
	DurationHours float64 `json:"duration_hours"`
	Deadline      string  `json:"deadline"`
	Simplicity    int     `json:"simplicity"`
	Importance    int     `json:"importance"`
	Urgency       int     `json:"urgency"`
	Completed     bool    `json:"completed"`
	GUID          string  `json:"guid"`
	MUID          string  `json:"muid"`
}

// Milestone groups tasks. MUID is the key tasks reference; GUID is a second
// identifier kept for compatibility with stored plans.
type Milestone struct {
	MUID        string  `json:"muid"`
	Name        string  `json:"name"`
	Order       int     `json:"order"`
	Description *string `json:"description,omitempty"`
	Tasks       []Task  `json:"tasks"`
	Deadline    *string `json:"deadline,omitempty"`
	GUID        string  `json:"guid"`
}

// Goal is the root of a generated plan.
type Goal struct {
	GUID        string      `json:"guid"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Deadline    string      `json:"deadline"`
	Progress    float64     `json:"progress"`
	Milestones  []Milestone `json:"milestones"`
}

// TaskCount returns the number of tasks across all milestones.
func (g *Goal) TaskCount() int {
	n := 0
	for _, m := range g.Milestones {
		n += len(m.Tasks)
	}
	return n
}

// SortByOrder stably sorts milestones, and the tasks inside each milestone,
// by their order field. Ties keep their original relative position.
func (g *Goal) SortByOrder() {
	sort.SliceStable(g.Milestones, func(i, j int) bool {
		return g.Milestones[i].Order < g.Milestones[j].Order
	})
	for i := range g.Milestones {
		tasks := g.Milestones[i].Tasks
		sort.SliceStable(tasks, func(a, b int) bool {
			return tasks[a].Order < tasks[b].Order
		})
	}
}

// Clone returns a deep copy of the goal tree.
func (g *Goal) Clone() *Goal {
	if g == nil {
		return nil
	}
	out := *g
	out.Description = cloneString(g.Description)
	out.Milestones = make([]Milestone, len(g.Milestones))
	for i, m := range g.Milestones {
		mc := m
		mc.Description = cloneString(m.Description)
		mc.Deadline = cloneString(m.Deadline)
		mc.Tasks = make([]Task, len(m.Tasks))
		for j, t := range m.Tasks {
			tc := t
			tc.Description = cloneString(t.Description)
			mc.Tasks[j] = tc
		}
		out.Milestones[i] = mc
	}
	return &out
}

// CheckIdentities verifies that every identifier is present and unique and
// that each task references exactly one milestone of the same goal.
func (g *Goal) CheckIdentities() error {
	if g.GUID == "" {
		return fmt.Errorf("goal guid is empty")
	}
	seen := map[string]bool{g.GUID: true}
	claim := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s identifier is empty", kind)
		}
		if seen[id] {
			return fmt.Errorf("%s identifier %q is not unique", kind, id)
		}
		seen[id] = true
		return nil
	}

	muids := make(map[string]bool, len(g.Milestones))
	for _, m := range g.Milestones {
		if err := claim("milestone muid", m.MUID); err != nil {
			return err
		}
		if err := claim("milestone guid", m.GUID); err != nil {
			return err
		}
		muids[m.MUID] = true
	}
	for _, m := range g.Milestones {
		for _, t := range m.Tasks {
			if err := claim("task guid", t.GUID); err != nil {
				return err
			}
			if t.MUID != m.MUID || !muids[t.MUID] {
				return fmt.Errorf("task %q references milestone %q, want %q", t.Name, t.MUID, m.MUID)
			}
		}
	}
	return nil
}

// GoalPlan pairs a goal with its rendered markdown. The markdown is always
// derived from the goal and is never edited on its own.
type GoalPlan struct {
	Goal     Goal   `json:"goal"`
	Markdown string `json:"markdown"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
