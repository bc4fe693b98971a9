package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_MarkdownIsVerbatim(t *testing.T) {
	md := "# Title\n\n**bold** `code`\n"
	content, name, err := Export(md, FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, md, content)
	assert.Equal(t, "my-goal-plan.md", name)
}

func TestExport_TextStripsMarkupAndBlankLines(t *testing.T) {
	md := "# Title\n\n\n\n**bold** and `code`\n\n## Next\n"
	content, name, err := Export(md, FormatText)
	require.NoError(t, err)

	assert.Equal(t, "my-goal-plan.txt", name)
	assert.Equal(t, " Title\nbold and code\n Next\n", content)
	assert.NotContains(t, content, "\n\n")
	assert.False(t, strings.ContainsAny(content, "#*`"))
}

func TestExport_TextCollapsesCRLFAndWhitespaceLines(t *testing.T) {
	cases := map[string]string{
		"# T\r\n\r\n**b**": " T\nb",
		"a\n  \n\t\n\nb\n": "a\nb\n",
	}
	for in, want := range cases {
		content, _, err := Export(in, FormatText)
		require.NoError(t, err)
		assert.Equal(t, want, content, "input %q", in)
	}
}

func TestExport_TextOfRenderedPlan(t *testing.T) {
	content, _, err := Export(RenderMarkdown(decodedGoal(t)), FormatText)
	require.NoError(t, err)
	assert.NotContains(t, content, "\n\n")
	assert.False(t, strings.ContainsAny(content, "#*`"))
	assert.Contains(t, content, "Run a marathon")
}

func TestExport_UnknownFormat(t *testing.T) {
	_, _, err := Export("x", Format("pdf"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"md": FormatMarkdown, ".MD": FormatMarkdown, "markdown": FormatMarkdown, "txt": FormatText, "text": FormatText}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
