// Package analysis turns document text into a syntax tree plus the
// full set of diagnostics, and runs that work on a background pool so
// editor notifications never wait on it.
package analysis

import (
	"sort"

	"tx3lsp/internal/lang"
)

// Result is the outcome of analyzing one version of a document. When
// parsing fails beyond recovery, Fatal is set and Program is the last
// tree that parsed, carried over by the caller (StaleAST marks that
// carry-over).
type Result struct {
	Program     *lang.Program
	Fatal       bool
	StaleAST    bool
	Diagnostics []lang.Diagnostic
}

// Analyze parses and validates content. Semantic validation runs even
// when the parser recovered from errors, but not when parsing failed
// outright. Diagnostics come back ordered by position, with syntax
// errors ahead of semantic ones at the same offset.
func Analyze(content string) *Result {
	prog, diags := lang.Parse(content)
	if prog == nil {
		return &Result{Fatal: true, Diagnostics: diags}
	}
	diags = append(diags, lang.Validate(prog)...)
	sortDiagnostics(diags)
	return &Result{Program: prog, Diagnostics: diags}
}

func sortDiagnostics(diags []lang.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Source != b.Source {
			return a.Source == lang.SourceParser
		}
		return false
	})
}
