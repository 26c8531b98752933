package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/dshills/docindex/pkg/types"
)

const (
	// DefaultMaxSectionChars is the largest section (in runes) sent to the embedder
	DefaultMaxSectionChars = 4000

	// DefaultSectionOverlap is the overlap (in runes) between pieces of an oversized section
	DefaultSectionOverlap = 0

	maxHeadingLevel = 6
)

// ErrInvalidUTF8 is wrapped in a ChunkingError for text that is not valid UTF-8
var ErrInvalidUTF8 = errors.New("text is not valid UTF-8")

var (
	// Matches ATX headings: # Title, ## Title, ...
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	// Matches the opening or closing line of a fenced code block
	fencePattern = regexp.MustCompile("^(```|~~~)")
)

// Options configures section sizing
type Options struct {
	MaxSectionChars int // Default: DefaultMaxSectionChars
	SectionOverlap  int // Default: DefaultSectionOverlap; must be < MaxSectionChars
}

// Chunker splits markdown documents into ordered sections at heading boundaries
type Chunker struct {
	options  Options
	splitter textsplitter.RecursiveCharacter
}

// New creates a Chunker with default options
func New() *Chunker {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Chunker with custom options
func NewWithOptions(opts Options) *Chunker {
	if opts.MaxSectionChars <= 0 {
		opts.MaxSectionChars = DefaultMaxSectionChars
	}
	if opts.SectionOverlap < 0 || opts.SectionOverlap >= opts.MaxSectionChars {
		opts.SectionOverlap = DefaultSectionOverlap
	}

	return &Chunker{
		options: opts,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.MaxSectionChars),
			textsplitter.WithChunkOverlap(opts.SectionOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}
}

// Options returns the effective options
func (c *Chunker) Options() Options {
	return c.options
}

// section is a run of lines under one heading
type section struct {
	heading string
	content string
}

// Split divides text into ordered section drafts.
// Empty or whitespace-only text yields no sections and no error.
func (c *Chunker) Split(text string) ([]types.SectionDraft, error) {
	if !utf8.ValidString(text) {
		return nil, &types.ChunkingError{Err: ErrInvalidUTF8}
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	drafts := make([]types.SectionDraft, 0)
	for _, sec := range parseSections(text) {
		content := strings.TrimSpace(sec.content)
		if content == "" {
			continue
		}

		if utf8.RuneCountInString(content) <= c.options.MaxSectionChars {
			drafts = append(drafts, types.SectionDraft{Content: content, Heading: sec.heading})
			continue
		}

		pieces, err := c.splitter.SplitText(content)
		if err != nil {
			return nil, &types.ChunkingError{Err: fmt.Errorf("split oversized section %q: %w", sec.heading, err)}
		}
		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			drafts = append(drafts, types.SectionDraft{Content: piece, Heading: sec.heading})
		}
	}

	for i := range drafts {
		drafts[i].Index = i
	}

	return drafts, nil
}

// parseSections groups lines by heading. Headings inside fenced code blocks are
// treated as content. Text before the first heading forms its own section.
func parseSections(text string) []section {
	lines := strings.Split(text, "\n")
	headingStack := make([]string, maxHeadingLevel)

	var (
		sections []section
		current  section
		builder  strings.Builder
		inFence  bool
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if fencePattern.MatchString(trimmed) {
			inFence = !inFence
		} else if !inFence {
			if match := headingPattern.FindStringSubmatch(line); match != nil {
				current.content = builder.String()
				sections = append(sections, current)
				builder.Reset()

				level := len(match[1])
				headingStack[level-1] = headingTitle(match[2])
				for i := level; i < maxHeadingLevel; i++ {
					headingStack[i] = ""
				}

				current = section{heading: headingPath(headingStack[:level])}
			}
		}

		builder.WriteString(line)
		builder.WriteByte('\n')
	}

	current.content = builder.String()
	sections = append(sections, current)

	return sections
}

// headingTitle strips optional closing hashes: "Title ##" -> "Title"
func headingTitle(raw string) string {
	title := strings.TrimSpace(raw)
	trimmed := strings.TrimSpace(strings.TrimRight(title, "#"))
	if trimmed == "" {
		return title
	}
	return trimmed
}

func headingPath(stack []string) string {
	parts := make([]string, 0, len(stack))
	for _, title := range stack {
		if title != "" {
			parts = append(parts, title)
		}
	}
	return strings.Join(parts, " > ")
}
