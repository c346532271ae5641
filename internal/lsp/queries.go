package lsp

import (
	"context"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"tx3lsp/internal/lang"
	"tx3lsp/internal/query"
)

func (ls *Server) textDocumentHover(
	glspContext *glsp.Context,
	params *protocol.HoverParams,
) (*protocol.Hover, error) {
	ls.rememberClient(glspContext)

	hover, err := ls.queries.Hover(
		context.Background(),
		params.TextDocument.URI,
		fromProtocolPosition(params.Position),
	)
	if err != nil || hover == nil {
		return nil, err
	}
	rng := toProtocolRange(hover.Range)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: hover.Markdown,
		},
		Range: &rng,
	}, nil
}

func (ls *Server) textDocumentCompletion(
	glspContext *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	ls.rememberClient(glspContext)

	items, err := ls.queries.Completion(
		context.Background(),
		params.TextDocument.URI,
		fromProtocolPosition(params.Position),
	)
	if err != nil {
		return nil, err
	}
	result := make([]protocol.CompletionItem, 0, len(items))
	for _, item := range items {
		kind := completionKind(item.Kind)
		detail := item.Detail
		result = append(result, protocol.CompletionItem{
			Label:  item.Label,
			Kind:   &kind,
			Detail: &detail,
		})
	}
	return result, nil
}

func (ls *Server) textDocumentDefinition(
	glspContext *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	ls.rememberClient(glspContext)

	loc, err := ls.queries.Definition(
		context.Background(),
		params.TextDocument.URI,
		fromProtocolPosition(params.Position),
	)
	if err != nil || loc == nil {
		return nil, err
	}
	return protocol.Location{
		URI:   loc.URI,
		Range: toProtocolRange(loc.Range),
	}, nil
}

func (ls *Server) textDocumentDocumentSymbol(
	glspContext *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	ls.rememberClient(glspContext)

	symbols, err := ls.queries.DocumentSymbols(context.Background(), params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return toProtocolSymbols(symbols), nil
}

func (ls *Server) textDocumentSemanticTokensFull(
	glspContext *glsp.Context,
	params *protocol.SemanticTokensParams,
) (*protocol.SemanticTokens, error) {
	ls.rememberClient(glspContext)

	tokens, err := ls.queries.SemanticTokens(context.Background(), params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	return &protocol.SemanticTokens{Data: encodeSemanticTokens(tokens)}, nil
}

// Semantic token legend. semanticTokenIndex must stay aligned with
// semanticTokenTypes.
var (
	semanticTokenTypes     = []string{"party", "policy", "class", "type", "function"}
	semanticTokenModifiers = []string{"declaration"}
)

func semanticTokenIndex(kind lang.SymbolKind) uint32 {
	switch kind {
	case lang.SymParty:
		return 0
	case lang.SymPolicy:
		return 1
	case lang.SymAsset:
		return 2
	case lang.SymType:
		return 3
	default:
		return 4
	}
}

// encodeSemanticTokens packs tokens into the wire layout: five
// integers per token, line and start column relative to the previous
// token. Tokens spanning lines or with empty ranges are skipped.
func encodeSemanticTokens(tokens []query.SemanticToken) []protocol.UInteger {
	data := make([]protocol.UInteger, 0, len(tokens)*5)
	var prevLine, prevStart uint32
	for _, tok := range tokens {
		line := tok.Range.Start.Line
		start := tok.Range.Start.Character
		if tok.Range.End.Line != line || tok.Range.End.Character <= start {
			continue
		}
		length := tok.Range.End.Character - start
		deltaLine := line - prevLine
		deltaStart := start
		if deltaLine == 0 {
			deltaStart = start - prevStart
		}
		data = append(data,
			protocol.UInteger(deltaLine),
			protocol.UInteger(deltaStart),
			protocol.UInteger(length),
			protocol.UInteger(semanticTokenIndex(tok.Kind)),
			protocol.UInteger(1), // declaration
		)
		prevLine, prevStart = line, start
	}
	return data
}

func completionKind(kind lang.SymbolKind) protocol.CompletionItemKind {
	switch kind {
	case lang.SymParty:
		return protocol.CompletionItemKindConstant
	case lang.SymPolicy, lang.SymAsset:
		return protocol.CompletionItemKindValue
	case lang.SymType:
		return protocol.CompletionItemKindClass
	case lang.SymTx:
		return protocol.CompletionItemKindFunction
	case lang.SymParam:
		return protocol.CompletionItemKindVariable
	case lang.SymInput, lang.SymOutput, lang.SymReference:
		return protocol.CompletionItemKindField
	default:
		return protocol.CompletionItemKindText
	}
}
