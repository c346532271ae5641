package text

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Buffer is an immutable text snapshot with a line-start offset table.
// Editing operations return a new Buffer; the version bumps once per
// committed edit batch, not per splice. Published buffers are never
// mutated, so they are safe to share across goroutines without
// synchronization.
type Buffer struct {
	content    string
	version    int32
	lineStarts []int
}

// NewBuffer creates a version-0 buffer holding content.
func NewBuffer(content string) *Buffer {
	return &Buffer{
		content:    content,
		lineStarts: scanLineStarts(content, 0),
	}
}

func scanLineStarts(s string, base int) []int {
	starts := []int{base}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, base+i+1)
		}
	}
	return starts
}

func (b *Buffer) Content() string { return b.content }
func (b *Buffer) Version() int32  { return b.version }
func (b *Buffer) Len() int        { return len(b.content) }

// LineCount returns the number of lines, counting the trailing line even
// when it is empty.
func (b *Buffer) LineCount() int { return len(b.lineStarts) }

// Line returns the content of the zero-based line without its newline.
func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lineStarts) {
		return ""
	}
	start := b.lineStarts[i]
	end := len(b.content)
	if i+1 < len(b.lineStarts) {
		end = b.lineStarts[i+1]
	}
	return strings.TrimSuffix(strings.TrimSuffix(b.content[start:end], "\n"), "\r")
}

// lineEnd returns the byte offset just past the content of line i,
// excluding the line terminator.
func (b *Buffer) lineEnd(i int) int {
	end := len(b.content)
	if i+1 < len(b.lineStarts) {
		end = b.lineStarts[i+1] - 1 // drop '\n'
		if end > b.lineStarts[i] && b.content[end-1] == '\r' {
			end--
		}
	}
	return end
}

// OffsetAt converts a protocol position (UTF-16 column) to a byte offset.
// Out-of-range positions clamp to the nearest valid boundary and report
// ErrOutOfRange.
func (b *Buffer) OffsetAt(pos Position) (int, error) {
	line := int(pos.Line)
	if line >= len(b.lineStarts) {
		return len(b.content), ErrOutOfRange
	}
	off := b.lineStarts[line]
	end := b.lineEnd(line)

	var col uint32
	for off < end {
		if col >= pos.Character {
			break
		}
		r, size := utf8.DecodeRuneInString(b.content[off:end])
		col += utf16Len(r)
		off += size
	}
	if col < pos.Character {
		return off, ErrOutOfRange
	}
	return off, nil
}

// PositionAt converts a byte offset to a protocol position. Offsets
// beyond the buffer clamp to the end; offsets inside a multi-byte
// character clamp down to the character start.
func (b *Buffer) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.content) {
		offset = len(b.content)
	}
	line := sort.Search(len(b.lineStarts), func(i int) bool {
		return b.lineStarts[i] > offset
	}) - 1

	var col uint32
	for off := b.lineStarts[line]; off < offset; {
		r, size := utf8.DecodeRuneInString(b.content[off:])
		if off+size > offset {
			break
		}
		col += utf16Len(r)
		off += size
	}
	return Position{Line: uint32(line), Character: col}
}

// RangeFor converts a byte span into a protocol range against this buffer.
func (b *Buffer) RangeFor(span Span) Range {
	return Range{Start: b.PositionAt(span.Start), End: b.PositionAt(span.End)}
}

// SpanFor converts a protocol range into a byte span, clamping either end.
func (b *Buffer) SpanFor(r Range) (Span, error) {
	start, err1 := b.OffsetAt(r.Start)
	end, err2 := b.OffsetAt(r.End)
	if end < start {
		end = start
	}
	if err1 != nil {
		return Span{Start: start, End: end}, err1
	}
	return Span{Start: start, End: end}, err2
}

// Replace splices newText over the byte span and returns the resulting
// buffer at the same version. Line starts after the edit are shifted
// by the edit delta rather than rescanned; only the replaced region is
// scanned for new line breaks.
func (b *Buffer) Replace(span Span, newText string) *Buffer {
	if span.Start < 0 {
		span.Start = 0
	}
	if span.End > len(b.content) {
		span.End = len(b.content)
	}
	if span.End < span.Start {
		span.End = span.Start
	}

	var sb strings.Builder
	sb.Grow(len(b.content) - span.Len() + len(newText))
	sb.WriteString(b.content[:span.Start])
	sb.WriteString(newText)
	sb.WriteString(b.content[span.End:])

	// Keep line starts at or before the edit point.
	keep := sort.Search(len(b.lineStarts), func(i int) bool {
		return b.lineStarts[i] > span.Start
	})
	starts := make([]int, keep, keep+8)
	copy(starts, b.lineStarts[:keep])

	// Line breaks introduced by the new text.
	for i := 0; i < len(newText); i++ {
		if newText[i] == '\n' {
			starts = append(starts, span.Start+i+1)
		}
	}

	// Surviving line starts after the edit, shifted by the delta.
	delta := len(newText) - span.Len()
	for _, ls := range b.lineStarts {
		if ls > span.End {
			starts = append(starts, ls+delta)
		}
	}

	return &Buffer{
		content:    sb.String(),
		version:    b.version,
		lineStarts: starts,
	}
}

// WithText replaces the whole content at the same version.
func (b *Buffer) WithText(content string) *Buffer {
	return &Buffer{
		content:    content,
		version:    b.version,
		lineStarts: scanLineStarts(content, 0),
	}
}

// Commit stamps the buffer with the next version. Splices leave the
// version alone; the owning store commits once per accepted edit
// batch, however many splices the batch held.
func (b *Buffer) Commit() *Buffer {
	next := *b
	next.version++
	return &next
}

func utf16Len(r rune) uint32 {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
