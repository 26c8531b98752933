package types

import (
	"errors"
	"time"
	"unicode/utf8"
)

// CharsPerToken is the heuristic used when a provider does not report usage
const CharsPerToken = 4

// SectionDraft is one chunk of a document produced by the chunker, before embedding
type SectionDraft struct {
	Content string
	Index   int    // Position within the document (0-based)
	Heading string // Heading trail, e.g. "Guide > Install"; empty for preamble text
}

// Section is a persisted, embedded chunk of a document
type Section struct {
	ID         int64
	DocumentID int64

	// Position is part of the section key (document_id, position)
	Position int
	Content  string
	Heading  string

	TokenCount int
	Embedding  []float32
	Dimension  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EstimateTokens estimates the token count of text using chars/4
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / CharsPerToken
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// Validate checks the section before it is persisted
func (s *Section) Validate() error {
	if s.Content == "" {
		return errors.New("section content cannot be empty")
	}

	if s.Position < 0 {
		return errors.New("section position must be >= 0")
	}

	if len(s.Embedding) == 0 {
		return errors.New("section embedding is required")
	}

	if s.Dimension != 0 && s.Dimension != len(s.Embedding) {
		return errors.New("section dimension does not match embedding length")
	}

	return nil
}
