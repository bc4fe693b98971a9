package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/smartplan/internal/domain"
	"github.com/alexanderramin/smartplan/internal/pipeline"
	"github.com/charmbracelet/glamour"
)

// Glamour style names.
const (
	MarkdownStyleDark  = "dark"
	MarkdownStylePlain = "notty"
)

const defaultWrap = 80

// MarkdownStyleFor picks the styled renderer for terminals and the plain one
// for pipes and files.
func MarkdownStyleFor(terminal bool) string {
	if terminal {
		return MarkdownStyleDark
	}
	return MarkdownStylePlain
}

// RenderMarkdown formats plan markdown for the terminal. A width under 20
// falls back to 80 columns.
func RenderMarkdown(md string, width int, style string) (string, error) {
	if width < 20 {
		width = defaultWrap
	}
	if style == "" {
		style = MarkdownStylePlain
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}

// FormatSmartGoal boxes the SMART goal statement for review.
func FormatSmartGoal(goal string) string {
	return RenderBox("Your SMART goal", StyleFg.Render(strings.TrimSpace(goal)))
}

// FormatFieldErrors lists validation messages in what/why/when order.
func FormatFieldErrors(fe domain.FieldErrors) string {
	var b strings.Builder
	for _, field := range []string{"what", "why", "when"} {
		msg, ok := fe[field]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %s %s\n", StyleRed.Render(field+":"), msg)
	}
	return b.String()
}

// FormatPlanList renders stored plans as a table, newest last.
func FormatPlanList(plans []pipeline.PlanSummary, now time.Time) string {
	if len(plans) == 0 {
		return Dim("No saved plans yet. Run 'smartplan new' to create one.") + "\n"
	}
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []string{
			p.GUID,
			p.Name,
			deadlineCell(p.Deadline, now),
			fmt.Sprintf("%d", p.Milestones),
			fmt.Sprintf("%d", p.Tasks),
			HumanTimestamp(p.CreatedAt, now),
		})
	}
	return RenderTable([]string{"GUID", "GOAL", "DEADLINE", "MILESTONES", "TASKS", "CREATED"}, rows)
}

// deadlineCell adds a relative hint to a YYYY-MM-DD deadline. Other values
// are shown as given.
func deadlineCell(deadline string, now time.Time) string {
	d, err := time.ParseInLocation(domain.DateLayout, deadline, now.Location())
	if err != nil {
		return deadline
	}
	return deadline + " (" + RelativeDateFrom(d, now) + ")"
}

// FormatPlanFooter is the one-line summary printed under a rendered plan.
func FormatPlanFooter(gp *domain.GoalPlan) string {
	g := gp.Goal
	return Dim(fmt.Sprintf("%d milestones, %d tasks, due %s  ·  %s",
		len(g.Milestones), g.TaskCount(), g.Deadline, g.GUID))
}
