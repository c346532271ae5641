// Package query answers editor requests against a pinned document
// snapshot. Every request resolves one snapshot up front and works on
// it alone, so concurrent edits never produce a half-updated answer.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"tx3lsp/internal/document"
	"tx3lsp/internal/lang"
	"tx3lsp/internal/text"
)

// Service wraps a document store with position-based queries.
type Service struct {
	store *document.Store
	log   commonlog.Logger
}

func NewService(store *document.Store) *Service {
	return &Service{
		store: store,
		log:   commonlog.GetLogger("tx3lsp.query"),
	}
}

// Hover is a markdown payload plus the range it describes.
type Hover struct {
	Markdown string
	Range    text.Range
}

// Location points at a definition.
type Location struct {
	URI   string
	Range text.Range
}

// CompletionItem is one completable name.
type CompletionItem struct {
	Label  string
	Kind   lang.SymbolKind
	Detail string
}

// Symbol is one document-outline entry, possibly with children.
type Symbol struct {
	Name      string
	Detail    string
	Kind      lang.SymbolKind
	Range     text.Range
	Selection text.Range
	Children  []Symbol
}

// pin resolves the freshest analyzed snapshot and its program. The
// program may be a retained older tree when the current text does not
// parse.
func (s *Service) pin(ctx context.Context, uri string) (*document.Snapshot, *lang.Program, error) {
	snap, err := s.store.GetSettled(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	if snap.Result == nil {
		return snap, nil, nil
	}
	return snap, snap.Result.Program, nil
}

// Hover describes the symbol at the position.
func (s *Service) Hover(ctx context.Context, uri string, pos text.Position) (*Hover, error) {
	snap, prog, err := s.pin(ctx, uri)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, nil
	}
	offset, _ := snap.Buffer.OffsetAt(pos)
	sym := lang.SymbolAt(prog, offset)
	if sym == nil {
		return nil, nil
	}
	md := s.hoverMarkdown(prog, sym)
	if md == "" {
		return nil, nil
	}
	return &Hover{Markdown: md, Range: snap.Buffer.RangeFor(sym.DeclSpan)}, nil
}

func (s *Service) hoverMarkdown(prog *lang.Program, sym *lang.Symbol) string {
	switch sym.Kind {
	case lang.SymParty:
		return fmt.Sprintf("**Party**: `%s`\n\nA party in the transaction. It can be an address for a script or a wallet.", sym.Name)
	case lang.SymPolicy:
		return fmt.Sprintf("**Policy**: `%s`\n\nA policy definition.", sym.Name)
	case lang.SymType:
		return fmt.Sprintf("**Type**: `%s`\n\nA type definition.", sym.Name)
	case lang.SymAsset:
		return fmt.Sprintf("**Asset**: `%s`\n\nAn asset definition.", sym.Name)
	case lang.SymInput:
		return fmt.Sprintf("**Input**: `%s`\n\nTransaction input.", sym.Name)
	case lang.SymOutput:
		return fmt.Sprintf("**Output**: `%s`\n\nTransaction output.", sym.Name)
	case lang.SymReference:
		return fmt.Sprintf("**Reference**: `%s`\n\nTransaction reference input.", sym.Name)
	case lang.SymParam:
		return fmt.Sprintf("**Parameter**: `%s`\n\n**Type**: `%s`", sym.Name, lang.TypeString(sym.Type))
	case lang.SymTx:
		return txHover(sym.Tx)
	case lang.SymIdent:
		// An identifier occurrence: describe whatever it resolves to.
		return s.resolveIdentHover(prog, sym)
	}
	return ""
}

// resolveIdentHover looks the occurrence up in its scope and reuses
// the declaration's hover text.
func (s *Service) resolveIdentHover(prog *lang.Program, sym *lang.Symbol) string {
	if sym.Tx != nil {
		for _, param := range sym.Tx.Params {
			if param.Name.Name == sym.Name {
				return s.hoverMarkdown(prog, &lang.Symbol{Kind: lang.SymParam, Name: sym.Name, Type: param.Type})
			}
		}
		for _, blk := range sym.Tx.Blocks {
			if blk.Name != nil && blk.Name.Name == sym.Name {
				return s.hoverMarkdown(prog, &lang.Symbol{Kind: lang.BlockSymbolKind(blk.Kind), Name: sym.Name})
			}
		}
	}
	for _, d := range prog.Parties {
		if d.Name.Name == sym.Name {
			return s.hoverMarkdown(prog, &lang.Symbol{Kind: lang.SymParty, Name: sym.Name})
		}
	}
	for _, d := range prog.Policies {
		if d.Name.Name == sym.Name {
			return s.hoverMarkdown(prog, &lang.Symbol{Kind: lang.SymPolicy, Name: sym.Name})
		}
	}
	for _, d := range prog.Assets {
		if d.Name.Name == sym.Name {
			return s.hoverMarkdown(prog, &lang.Symbol{Kind: lang.SymAsset, Name: sym.Name})
		}
	}
	for _, d := range prog.Types {
		if d.Name.Name == sym.Name {
			return s.hoverMarkdown(prog, &lang.Symbol{Kind: lang.SymType, Name: sym.Name})
		}
	}
	for _, d := range prog.Txs {
		if d.Name.Name == sym.Name {
			return txHover(d)
		}
	}
	return ""
}

func txHover(tx *lang.TxDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Transaction**: `%s`\n\n", tx.Name.Name)
	if len(tx.Params) > 0 {
		b.WriteString("**Parameters**:\n")
		for _, param := range tx.Params {
			fmt.Fprintf(&b, "- `%s`: `%s`\n", param.Name.Name, lang.TypeString(param.Type))
		}
		b.WriteString("\n")
	}
	if inputs := tx.Inputs(); len(inputs) > 0 {
		b.WriteString("**Inputs**:\n")
		for _, in := range inputs {
			fmt.Fprintf(&b, "- `%s`\n", blockName(in))
		}
		b.WriteString("\n")
	}
	if outputs := tx.Outputs(); len(outputs) > 0 {
		b.WriteString("**Outputs**:\n")
		for _, out := range outputs {
			fmt.Fprintf(&b, "- `%s`\n", blockName(out))
		}
	}
	return b.String()
}

func blockDetail(kind lang.BlockKind) string {
	switch kind {
	case lang.BlockInput:
		return "Input"
	case lang.BlockOutput:
		return "Output"
	case lang.BlockReference:
		return "Reference"
	case lang.BlockCollateral:
		return "Collateral"
	default:
		return string(kind)
	}
}

func blockName(blk *lang.Block) string {
	if blk.Name != nil {
		return blk.Name.Name
	}
	return string(blk.Kind)
}

// Definition resolves the symbol at the position to where it is
// declared. Works on a retained tree when the current text is broken.
func (s *Service) Definition(ctx context.Context, uri string, pos text.Position) (*Location, error) {
	snap, prog, err := s.pin(ctx, uri)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, nil
	}
	offset, _ := snap.Buffer.OffsetAt(pos)
	sym := lang.SymbolAt(prog, offset)
	if sym == nil {
		return nil, nil
	}
	span, ok := lang.Definition(prog, sym.Name, offset)
	if !ok {
		return nil, nil
	}
	return &Location{URI: uri, Range: snap.Buffer.RangeFor(span)}, nil
}

// Completion lists the names visible at the position.
func (s *Service) Completion(ctx context.Context, uri string, pos text.Position) ([]CompletionItem, error) {
	snap, prog, err := s.pin(ctx, uri)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, nil
	}
	offset, _ := snap.Buffer.OffsetAt(pos)
	entries := lang.ScopeAt(prog, offset)
	items := make([]CompletionItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, CompletionItem{Label: e.Name, Kind: e.Kind, Detail: e.Detail})
	}
	return items, nil
}

// SemanticToken marks one declaration name for highlighting.
type SemanticToken struct {
	Range text.Range
	Kind  lang.SymbolKind
}

// SemanticTokens lists the declaration-name tokens of the document in
// position order: every party, policy, asset, type and tx name at its
// identifier span. References and block bodies are left to the
// client's syntax grammar.
func (s *Service) SemanticTokens(ctx context.Context, uri string) ([]SemanticToken, error) {
	snap, prog, err := s.pin(ctx, uri)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, nil
	}

	var tokens []SemanticToken
	add := func(id lang.Identifier, kind lang.SymbolKind) {
		if id.Name == "" {
			return
		}
		tokens = append(tokens, SemanticToken{Range: snap.Buffer.RangeFor(id.Span), Kind: kind})
	}
	for _, d := range prog.Parties {
		add(d.Name, lang.SymParty)
	}
	for _, d := range prog.Policies {
		add(d.Name, lang.SymPolicy)
	}
	for _, d := range prog.Assets {
		add(d.Name, lang.SymAsset)
	}
	for _, d := range prog.Types {
		add(d.Name, lang.SymType)
	}
	for _, tx := range prog.Txs {
		add(tx.Name, lang.SymTx)
	}

	sort.Slice(tokens, func(i, j int) bool {
		a, b := tokens[i].Range.Start, tokens[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return tokens, nil
}

// DocumentSymbols builds the document outline: top-level declarations,
// with a transaction's parameters and blocks nested under it.
func (s *Service) DocumentSymbols(ctx context.Context, uri string) ([]Symbol, error) {
	snap, prog, err := s.pin(ctx, uri)
	if err != nil {
		return nil, err
	}
	if prog == nil {
		return nil, nil
	}
	rng := func(span text.Span) text.Range { return snap.Buffer.RangeFor(span) }

	var symbols []Symbol
	for _, d := range prog.Parties {
		symbols = append(symbols, Symbol{
			Name: d.Name.Name, Detail: "Party", Kind: lang.SymParty,
			Range: rng(d.Span), Selection: rng(d.Name.Span),
		})
	}
	for _, d := range prog.Policies {
		symbols = append(symbols, Symbol{
			Name: d.Name.Name, Detail: "Policy", Kind: lang.SymPolicy,
			Range: rng(d.Span), Selection: rng(d.Name.Span),
		})
	}
	for _, d := range prog.Assets {
		symbols = append(symbols, Symbol{
			Name: d.Name.Name, Detail: "Asset", Kind: lang.SymAsset,
			Range: rng(d.Span), Selection: rng(d.Name.Span),
		})
	}
	for _, d := range prog.Types {
		symbols = append(symbols, Symbol{
			Name: d.Name.Name, Detail: "Type", Kind: lang.SymType,
			Range: rng(d.Span), Selection: rng(d.Name.Span),
		})
	}
	for _, tx := range prog.Txs {
		var children []Symbol
		for _, param := range tx.Params {
			children = append(children, Symbol{
				Name:   param.Name.Name,
				Detail: fmt.Sprintf("Parameter<%s>", lang.TypeString(param.Type)),
				Kind:   lang.SymParam,
				Range:  rng(param.Span), Selection: rng(param.Name.Span),
			})
		}
		for _, blk := range tx.Blocks {
			if blk.Name == nil && blk.Kind != lang.BlockOutput {
				continue
			}
			selection := blk.Span
			if blk.Name != nil {
				selection = blk.Name.Span
			}
			children = append(children, Symbol{
				Name:   blockName(blk),
				Detail: blockDetail(blk.Kind),
				Kind:   lang.BlockSymbolKind(blk.Kind),
				Range:  rng(blk.Span), Selection: rng(selection),
			})
		}
		symbols = append(symbols, Symbol{
			Name: tx.Name.Name, Detail: "Tx", Kind: lang.SymTx,
			Range: rng(tx.Span), Selection: rng(tx.Name.Span),
			Children: children,
		})
	}
	return symbols, nil
}
