package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/smartplan/internal/domain"
)

// RenderMarkdown projects a goal tree into markdown. Output depends only on
// the goal; milestones and tasks appear in order-field sequence and the
// input is not modified.
func RenderMarkdown(goal *domain.Goal) string {
	if goal == nil {
		return ""
	}
	g := goal.Clone()
	g.SortByOrder()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", g.Name)
	if text := deref(g.Description); text != "" {
		fmt.Fprintf(&b, "%s\n\n", text)
	}
	fmt.Fprintf(&b, "**Deadline:** %s\n", g.Deadline)
	fmt.Fprintf(&b, "**Progress:** %s%%\n", formatNumber(g.Progress))
	fmt.Fprintf(&b, "**Milestones:** %d | **Tasks:** %d\n", len(g.Milestones), g.TaskCount())

	for _, m := range g.Milestones {
		fmt.Fprintf(&b, "\n## %s\n\n", m.Name)
		if text := deref(m.Description); text != "" {
			fmt.Fprintf(&b, "%s\n\n", text)
		}
		if dl := deref(m.Deadline); dl != "" {
			fmt.Fprintf(&b, "*Deadline: %s*\n\n", dl)
		}
		if len(m.Tasks) == 0 {
			b.WriteString("No tasks.\n")
			continue
		}
		for _, t := range m.Tasks {
			writeTask(&b, t)
		}
	}
	return b.String()
}

func writeTask(b *strings.Builder, t domain.Task) {
	check := " "
	if t.Completed {
		check = "x"
	}
	fmt.Fprintf(b, "- [%s] **%s** (%sh, due %s)\n", check, t.Name, formatNumber(t.DurationHours), t.Deadline)
	if text := deref(t.Description); text != "" {
		fmt.Fprintf(b, "  %s\n", text)
	}
	fmt.Fprintf(b, "  Simplicity %d/%d | Importance %d/%d | Urgency %d/%d\n",
		t.Simplicity, MaxScore, t.Importance, MaxScore, t.Urgency, MaxScore)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
