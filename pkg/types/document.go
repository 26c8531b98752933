package types

import "time"

// SourceDocument is a discovered corpus entry: a stable path and its raw text
type SourceDocument struct {
	Path string
	Text string
}

// Document is the stored record for a corpus entry.
//
// Checksum is the completeness marker. It is non-empty only when every section of
// the last pass was embedded and persisted; an empty Checksum means the document
// is being indexed, failed, or was interrupted and must be indexed again.
type Document struct {
	ID            int64
	Path          string
	Checksum      string
	SectionCount  int
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Complete reports whether the last pass for this document finished
func (d *Document) Complete() bool {
	return d.Checksum != ""
}
