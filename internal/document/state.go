// Package document tracks every open document and its analysis state.
// Readers always see an immutable snapshot; edits and background
// analysis swap in fresh snapshots without blocking queries.
package document

import (
	"tx3lsp/internal/analysis"
	"tx3lsp/internal/text"
)

// Snapshot is one immutable view of a document: its text at a version,
// and the newest analysis available when the snapshot was taken. Result
// may belong to an earlier version while analysis of this one is still
// in flight, and is nil before the first analysis lands.
type Snapshot struct {
	URI     string
	Version int32
	Buffer  *text.Buffer
	Result  *analysis.Result

	// analyzedVersion is the document version Result was computed
	// from, -1 when Result is nil.
	analyzedVersion int32
}

// Settled reports whether Result describes this exact version.
func (s *Snapshot) Settled() bool {
	return s.Result != nil && s.analyzedVersion == s.Version
}

// AnalyzedVersion returns the version Result was computed from, or -1
// when no analysis has completed yet.
func (s *Snapshot) AnalyzedVersion() int32 {
	if s.Result == nil {
		return -1
	}
	return s.analyzedVersion
}
