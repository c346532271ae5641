package lang

import "tx3lsp/internal/text"

// Severity mirrors the protocol diagnostic severities.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Source tags distinguish the producing pass. Syntax diagnostics sort
// before semantic ones at the same position.
const (
	SourceParser   = "tx3"
	SourceAnalyzer = "tx3-analysis"
)

// Diagnostic is a finding against one exact buffer version. The span is
// a byte range; protocol-unit conversion happens only against the buffer
// the diagnostic was computed from.
type Diagnostic struct {
	Span     text.Span
	Severity Severity
	Message  string
	Code     string
	Source   string
}
