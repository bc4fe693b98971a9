package testutil

import (
	"fmt"

	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/google/uuid"
)

// PlanJSON is a Stage B reply with milestones out of order.
const PlanJSON = `{
  "goal": {
    "name": "Run a marathon",
    "description": "Finish the city marathon in April",
    "deadline": "2027-04-01",
    "progress": 0,
    "milestones": [
      {
        "name": "Build endurance",
        "order": 2,
        "description": null,
        "deadline": "2027-02-01",
        "tasks": [
          {"name": "Long run", "order": 1, "description": null, "duration_hours": 2.5, "deadline": "2026-12-01",
           "simplicity": 2, "importance": 5, "urgency": 3, "completed": false}
        ]
      },
      {
        "name": "Get started",
        "order": 1,
        "description": "First weeks",
        "deadline": null,
        "tasks": [
          {"name": "First 5k", "order": 2, "description": null, "duration_hours": 1, "deadline": "2026-10-25",
           "simplicity": 4, "importance": 3, "urgency": 4, "completed": false},
          {"name": "Buy shoes", "order": 1, "description": "Get fitted", "duration_hours": 1, "deadline": "2026-10-20",
           "simplicity": 5, "importance": 4, "urgency": 5, "completed": false}
        ]
      }
    ]
  }
}`

// SmartGoalText is a Stage A reply.
const SmartGoalText = "Run the city marathon in under 4:30 by 2027-04-01, training four days a week."

// ValidPreGoal returns input that passes validation on 2026-10-14.
func ValidPreGoal() domain.PreGoal {
	return domain.PreGoal{
		What:    "Run a full marathon",
		Why:     "I want to prove to myself I can do it",
		When:    "2027-04-01",
		Profile: map[string]any{"fitness": "beginner"},
	}
}

// PlanOption adjusts a generated fixture goal.
type PlanOption func(*domain.Goal)

// WithMilestones replaces the milestone count; each gets tasksEach tasks.
func WithMilestones(n, tasksEach int) PlanOption {
	return func(g *domain.Goal) {
		g.Milestones = nil
		for i := 1; i <= n; i++ {
			muid := uuid.NewString()
			m := domain.Milestone{
				MUID:     muid,
				GUID:     uuid.NewString(),
				Name:     fmt.Sprintf("Milestone %d", i),
				Order:    i,
				Deadline: domain.StringPtr("2027-01-01"),
			}
			for j := 1; j <= tasksEach; j++ {
				m.Tasks = append(m.Tasks, domain.Task{
					Name:          fmt.Sprintf("Task %d.%d", i, j),
					Order:         j,
					DurationHours: 1,
					Deadline:      "2026-12-01",
					Simplicity:    3,
					Importance:    3,
					Urgency:       3,
					GUID:          uuid.NewString(),
					MUID:          muid,
				})
			}
			g.Milestones = append(g.Milestones, m)
		}
	}
}

// WithGoalName sets the goal name.
func WithGoalName(name string) PlanOption {
	return func(g *domain.Goal) {
		g.Name = name
	}
}

// NewTestGoal builds a goal with identities assigned. The default shape is
// two milestones with two tasks each.
func NewTestGoal(opts ...PlanOption) *domain.Goal {
	g := &domain.Goal{
		GUID:     uuid.NewString(),
		Name:     "Run a marathon",
		Deadline: "2027-04-01",
	}
	WithMilestones(2, 2)(g)
	for _, opt := range opts {
		opt(g)
	}
	return g
}
