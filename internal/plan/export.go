package plan

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Format is a download format for a rendered plan.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ExportBaseName is the file name stem used for downloads.
const ExportBaseName = "my-goal-plan"

// ErrUnknownFormat is returned for formats other than md and txt.
var ErrUnknownFormat = errors.New("unknown export format")

var (
	markupChars = strings.NewReplacer("\r\n", "\n", "#", "", "*", "", "`", "")
	blankRuns   = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
)

// Export converts rendered markdown into the requested format and returns
// the content with its download file name. Markdown is returned verbatim;
// text normalizes line endings, drops markup characters and collapses
// blank lines, including whitespace-only ones.
func Export(markdown string, format Format) (content, filename string, err error) {
	switch format {
	case FormatMarkdown:
		content = markdown
	case FormatText:
		content = blankRuns.ReplaceAllString(markupChars.Replace(markdown), "\n")
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return content, ExportBaseName + "." + string(format), nil
}

// ParseFormat maps a user-supplied name onto a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case FormatMarkdown, "markdown":
		return FormatMarkdown, nil
	case FormatText, "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}
