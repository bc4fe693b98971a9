package formatter

import (
	"fmt"
	"strings"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// RenderProgress renders a bar like [████░░░░]  45%. The bar is red under
// a third, yellow under two thirds and green above.
func RenderProgress(pct float64, width int) string {
	pct = clamp01(pct)
	if width < 2 {
		width = 2
	}

	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)

	style := StyleGreen
	if pct < 0.33 {
		style = StyleRed
	} else if pct < 0.66 {
		style = StyleYellow
	}
	return fmt.Sprintf("[%s] %3.0f%%", style.Render(bar), pct*100)
}

// RenderSteps renders wizard progress as "step/total label" with a bar.
func RenderSteps(step, total int, label string, width int) string {
	if total <= 0 {
		total = 1
	}
	bar := RenderProgress(float64(step)/float64(total), width)
	return fmt.Sprintf("%s  %s", bar, Dim(fmt.Sprintf("%d/%d %s", step, total, label)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
