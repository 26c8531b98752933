// Package chunker divides markdown documents into ordered sections for embedding.
//
// Sections are cut at ATX heading boundaries so each one can be retrieved on its
// own. Headings inside fenced code blocks do not start a section. Text before the
// first heading becomes a section of its own.
//
// # Basic Usage
//
//	c := chunker.New()
//	drafts, err := c.Split(text)
//	if err != nil {
//	    return err
//	}
//
//	for _, d := range drafts {
//	    fmt.Printf("%d %q: %d chars\n", d.Index, d.Heading, len(d.Content))
//	}
//
// # Sizing
//
// Sections longer than Options.MaxSectionChars runes are split again with a
// recursive character splitter (paragraphs, then lines, then words) so that no
// draft exceeds the provider's input limit.
//
// # Determinism
//
// Split has no side effects and always returns the same drafts, in the same order,
// for the same text. The pipeline relies on this: positions are part of the stored
// section key.
package chunker
