package indexer

import (
	"fmt"
	"time"
)

// Status is the outcome of one document pass
type Status string

const (
	StatusIndexed   Status = "indexed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Reason tags the stage a failed pass stopped at
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonChunking Reason = "chunking"
	ReasonProvider Reason = "provider"
	ReasonStore    Reason = "store"
	ReasonInternal Reason = "internal"
)

// DocumentResult reports what happened to one document
type DocumentResult struct {
	Path     string
	Status   Status
	Reason   Reason
	Sections int // Sections stored by this pass
	Tokens   int // Provider tokens consumed, including by a failed pass
	Duration time.Duration
	Err      error
}

// Statistics contains statistics about an indexing run
type Statistics struct {
	RunID          string
	Discovered     int
	Indexed        int
	Skipped        int
	Failed         int
	Cancelled      int
	SectionsStored int
	TokensUsed     int
	StartedAt      time.Time
	Duration       time.Duration
	ErrorMessages  []string
	Results        []DocumentResult // In discovery order
}

func (s *Statistics) add(r DocumentResult) {
	s.Results = append(s.Results, r)
	s.TokensUsed += r.Tokens

	switch r.Status {
	case StatusIndexed:
		s.Indexed++
		s.SectionsStored += r.Sections
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
		s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf("%s: %s: %v", r.Path, r.Reason, r.Err))
	case StatusCancelled:
		s.Cancelled++
	}
}

// Summary is the one-line, user-visible outcome of a run
func (s *Statistics) Summary() string {
	return fmt.Sprintf("discovered %d, indexed %d, skipped %d, failed %d, cancelled %d (%d sections, %d tokens) in %v",
		s.Discovered, s.Indexed, s.Skipped, s.Failed, s.Cancelled,
		s.SectionsStored, s.TokensUsed, s.Duration.Round(time.Millisecond))
}
