package lsp

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"tx3lsp/internal/config"
	"tx3lsp/internal/document"
	"tx3lsp/internal/text"
)

func (ls *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	ls.rememberClient(context)

	if params.InitializationOptions != nil {
		merged, err := config.Merge(ls.cfg, params.InitializationOptions)
		if err != nil {
			ls.log.Errorf("ignoring bad initializationOptions: %s", err.Error())
		} else if merged != ls.cfg {
			ls.configure(merged)
		}
	}

	capabilities := ls.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
	}
	capabilities.SemanticTokensProvider = protocol.SemanticTokensOptions{
		Legend: protocol.SemanticTokensLegend{
			TokenTypes:     semanticTokenTypes,
			TokenModifiers: semanticTokenModifiers,
		},
		Full: true,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (ls *Server) initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	ls.rememberClient(context)
	ls.log.Notice("server initialized")
	return nil
}

func (ls *Server) shutdown(context *glsp.Context) error {
	ls.log.Notice("server shutting down")
	protocol.SetTraceValue(protocol.TraceValueOff)
	ls.publisher.Stop()
	ls.store.CloseAll()
	ls.pool.Stop()
	return nil
}

func (ls *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	ls.rememberClient(context)
	uri := params.TextDocument.URI
	ls.log.Debugf("didOpen %s", uri)
	ls.store.Open(uri, params.TextDocument.Text)
	return nil
}

func (ls *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	ls.rememberClient(context)
	uri := params.TextDocument.URI

	edits := make([]document.Edit, 0, len(params.ContentChanges))
	for _, change := range params.ContentChanges {
		switch contentChange := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			edits = append(edits, document.Edit{Text: contentChange.Text})
		case protocol.TextDocumentContentChangeEvent:
			var r *text.Range
			if contentChange.Range != nil {
				r = &text.Range{
					Start: fromProtocolPosition(contentChange.Range.Start),
					End:   fromProtocolPosition(contentChange.Range.End),
				}
			}
			edits = append(edits, document.Edit{Range: r, Text: contentChange.Text})
		default:
			return fmt.Errorf("unsupported content change %T", change)
		}
	}

	if _, err := ls.store.Change(uri, edits); err != nil {
		return fmt.Errorf("failed to apply changes to %s: %w", uri, err)
	}
	return nil
}

func (ls *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	ls.rememberClient(context)
	uri := params.TextDocument.URI
	ls.log.Debugf("didClose %s", uri)

	ls.publisher.Clear(uri)
	if err := ls.store.Close(uri); err != nil {
		return fmt.Errorf("failed to close %s: %w", uri, err)
	}
	return nil
}
