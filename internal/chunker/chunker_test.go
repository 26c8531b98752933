package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/pkg/types"
)

func contents(drafts []types.SectionDraft) []string {
	out := make([]string, len(drafts))
	for i, d := range drafts {
		out[i] = d.Content
	}
	return out
}

func TestNew(t *testing.T) {
	c := New()
	require.NotNil(t, c)
	assert.Equal(t, DefaultMaxSectionChars, c.Options().MaxSectionChars)
	assert.Equal(t, DefaultSectionOverlap, c.Options().SectionOverlap)
}

func TestNewWithOptions_InvalidOverlap(t *testing.T) {
	c := NewWithOptions(Options{MaxSectionChars: 100, SectionOverlap: 100})
	assert.Equal(t, 100, c.Options().MaxSectionChars)
	assert.Equal(t, 0, c.Options().SectionOverlap)
}

func TestSplit_TwoHeadings(t *testing.T) {
	c := New()

	drafts, err := c.Split("# A\n\nhello\n\n# B\n\nworld")
	require.NoError(t, err)

	assert.Equal(t, []string{"# A\n\nhello", "# B\n\nworld"}, contents(drafts))
	assert.Equal(t, 0, drafts[0].Index)
	assert.Equal(t, 1, drafts[1].Index)
	assert.Equal(t, "A", drafts[0].Heading)
	assert.Equal(t, "B", drafts[1].Heading)
}

func TestSplit_EmptyInput(t *testing.T) {
	c := New()

	tests := []string{"", "   ", "\n\n\t\n"}
	for _, text := range tests {
		drafts, err := c.Split(text)
		require.NoError(t, err)
		assert.Empty(t, drafts, "input %q", text)
	}
}

func TestSplit_Preamble(t *testing.T) {
	c := New()

	drafts, err := c.Split("Intro text.\n\n## Usage\n\nRun it.")
	require.NoError(t, err)

	require.Len(t, drafts, 2)
	assert.Equal(t, "Intro text.", drafts[0].Content)
	assert.Equal(t, "", drafts[0].Heading)
	assert.Equal(t, "## Usage\n\nRun it.", drafts[1].Content)
	assert.Equal(t, "Usage", drafts[1].Heading)
}

func TestSplit_NoHeadings(t *testing.T) {
	c := New()

	drafts, err := c.Split("just a paragraph\nspanning lines\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"just a paragraph\nspanning lines"}, contents(drafts))
}

func TestSplit_HeadingHierarchy(t *testing.T) {
	c := New()

	text := "# Guide\n\nintro\n\n## Install\n\nsteps\n\n### Linux\n\napt\n\n## Configure ##\n\nedit"
	drafts, err := c.Split(text)
	require.NoError(t, err)

	require.Len(t, drafts, 4)
	assert.Equal(t, "Guide", drafts[0].Heading)
	assert.Equal(t, "Guide > Install", drafts[1].Heading)
	assert.Equal(t, "Guide > Install > Linux", drafts[2].Heading)
	assert.Equal(t, "Guide > Configure", drafts[3].Heading)
}

func TestSplit_HeadingInsideCodeFence(t *testing.T) {
	c := New()

	text := "# Script\n\n```bash\n# not a heading\necho hi\n```\n\n# Next\n\ndone"
	drafts, err := c.Split(text)
	require.NoError(t, err)

	require.Len(t, drafts, 2)
	assert.Contains(t, drafts[0].Content, "# not a heading")
	assert.Equal(t, "# Next\n\ndone", drafts[1].Content)
}

func TestSplit_CRLF(t *testing.T) {
	c := New()

	drafts, err := c.Split("# A\r\n\r\nhello\r\n\r\n# B\r\n\r\nworld")
	require.NoError(t, err)
	assert.Equal(t, []string{"# A\n\nhello", "# B\n\nworld"}, contents(drafts))
}

func TestSplit_InvalidUTF8(t *testing.T) {
	c := New()

	_, err := c.Split("# A\n\n\xff\xfe")
	require.Error(t, err)

	var cerr *types.ChunkingError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, errors.Is(err, ErrInvalidUTF8))
}

func TestSplit_OversizedSection(t *testing.T) {
	c := NewWithOptions(Options{MaxSectionChars: 200})

	var b strings.Builder
	b.WriteString("# Big\n\n")
	for i := 0; i < 40; i++ {
		b.WriteString("lorem ipsum dolor sit amet ")
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}

	drafts, err := c.Split(b.String())
	require.NoError(t, err)
	require.Greater(t, len(drafts), 1)

	for i, d := range drafts {
		assert.Equal(t, i, d.Index)
		assert.Equal(t, "Big", d.Heading)
		assert.NotEmpty(t, d.Content)
		assert.LessOrEqual(t, utf8.RuneCountInString(d.Content), 200)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := NewWithOptions(Options{MaxSectionChars: 50})

	text := "# One\n\nalpha beta gamma delta epsilon zeta eta theta iota kappa lambda\n\n" +
		"## Two\n\n```go\n# inside\n```\n\n# Three\n\nmu nu xi omicron pi rho sigma tau upsilon"

	first, err := c.Split(text)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := c.Split(text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSplit_DropsEmptySections(t *testing.T) {
	c := New()

	drafts, err := c.Split("\n\n# A\n\nbody\n\n\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"# A\n\nbody"}, contents(drafts))
}
