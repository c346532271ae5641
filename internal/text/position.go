// Package text provides the editable document buffer and the position
// mapping between protocol coordinates (line + UTF-16 code unit column)
// and the byte offsets the parser operates on.
package text

import "errors"

// ErrOutOfRange reports a position or offset outside the buffer bounds.
// Conversions clamp to the nearest valid boundary and return the clamped
// result alongside this error, so callers can choose to tolerate it.
var ErrOutOfRange = errors.New("position out of range")

// Position is a protocol position: zero-based line and zero-based column
// counted in UTF-16 code units.
type Position struct {
	Line      uint32
	Character uint32
}

// Range is a half-open protocol range [Start, End).
type Range struct {
	Start Position
	End   Position
}

// Span is a half-open byte range [Start, End) into a buffer's content.
// Spans are only meaningful against the exact buffer version they were
// computed from.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether the byte offset falls within the span.
func (s Span) Contains(offset int) bool {
	return s.Start <= offset && offset < s.End
}

// ContainsSpan reports whether other lies fully within s.
func (s Span) ContainsSpan(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}
