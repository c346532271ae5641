package lsp

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"tx3lsp/internal/document"
	"tx3lsp/internal/lang"
	"tx3lsp/internal/query"
	"tx3lsp/internal/text"
)

func fromProtocolPosition(pos protocol.Position) text.Position {
	return text.Position{Line: uint32(pos.Line), Character: uint32(pos.Character)}
}

func toProtocolPosition(pos text.Position) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(pos.Line),
		Character: protocol.UInteger(pos.Character),
	}
}

func toProtocolRange(r text.Range) protocol.Range {
	return protocol.Range{
		Start: toProtocolPosition(r.Start),
		End:   toProtocolPosition(r.End),
	}
}

// publishSnapshot is the debounce sink: it converts a settled
// snapshot's diagnostics and notifies the client.
func (ls *Server) publishSnapshot(snap *document.Snapshot) {
	client := ls.client.Load()
	if client == nil {
		return
	}
	diags := make([]protocol.Diagnostic, 0, len(snap.Result.Diagnostics))
	for _, d := range snap.Result.Diagnostics {
		diags = append(diags, toProtocolDiagnostic(snap, d))
	}
	ls.log.Debugf("publishing %d diagnostics for %s v%d", len(diags), snap.URI, snap.Version)
	client.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         snap.URI,
		Diagnostics: diags,
	})
}

// retractDiagnostics clears what the client shows for a closed
// document.
func (ls *Server) retractDiagnostics(uri string) {
	client := ls.client.Load()
	if client == nil {
		return
	}
	client.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func toProtocolDiagnostic(snap *document.Snapshot, d lang.Diagnostic) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverity(d.Severity)
	source := d.Source
	out := protocol.Diagnostic{
		Range:    toProtocolRange(snap.Buffer.RangeFor(d.Span)),
		Severity: &severity,
		Source:   &source,
		Message:  d.Message,
	}
	if d.Code != "" {
		out.Code = &protocol.IntegerOrString{Value: d.Code}
	}
	return out
}

func toProtocolSymbols(symbols []query.Symbol) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(symbols))
	for _, s := range symbols {
		detail := s.Detail
		out = append(out, protocol.DocumentSymbol{
			Name:           s.Name,
			Detail:         &detail,
			Kind:           symbolKind(s.Kind),
			Range:          toProtocolRange(s.Range),
			SelectionRange: toProtocolRange(s.Selection),
			Children:       toProtocolSymbols(s.Children),
		})
	}
	return out
}

func symbolKind(kind lang.SymbolKind) protocol.SymbolKind {
	switch kind {
	case lang.SymParty:
		return protocol.SymbolKindObject
	case lang.SymPolicy:
		return protocol.SymbolKindKey
	case lang.SymAsset:
		return protocol.SymbolKindObject
	case lang.SymType:
		return protocol.SymbolKindStruct
	case lang.SymTx:
		return protocol.SymbolKindMethod
	case lang.SymParam:
		return protocol.SymbolKindField
	default:
		return protocol.SymbolKindObject
	}
}
