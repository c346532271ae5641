package lang

import "tx3lsp/internal/text"

// SymbolKind classifies what sits at a source offset.
type SymbolKind int

const (
	SymParty SymbolKind = iota
	SymPolicy
	SymAsset
	SymType
	SymTx
	SymParam
	SymInput
	SymOutput
	SymReference
	SymIdent // an identifier occurrence inside an expression
)

// Symbol describes the innermost named node at an offset. Tx is the
// enclosing transaction when the occurrence sits inside one.
type Symbol struct {
	Kind     SymbolKind
	Name     string
	Span     text.Span // span of the occurrence itself
	DeclSpan text.Span // span of the node it belongs to
	Tx       *TxDef
	Type     *TypeRef // set for parameters
}

// SymbolAt locates the innermost symbol whose span contains the byte
// offset. At each level the tightest enclosing span wins; ties resolve
// by declaration order. Returns nil when nothing named encloses the
// offset.
func SymbolAt(prog *Program, offset int) *Symbol {
	if prog == nil {
		return nil
	}
	for _, tx := range prog.Txs {
		if !tx.Span.Contains(offset) {
			continue
		}
		if sym := symbolInTx(tx, offset); sym != nil {
			return sym
		}
		return &Symbol{Kind: SymTx, Name: tx.Name.Name, Span: tx.Name.Span, DeclSpan: tx.Span, Tx: tx}
	}
	for _, d := range prog.Parties {
		if d.Span.Contains(offset) {
			return &Symbol{Kind: SymParty, Name: d.Name.Name, Span: d.Name.Span, DeclSpan: d.Span}
		}
	}
	for _, d := range prog.Policies {
		if d.Span.Contains(offset) {
			if sym := identInExpr(d.Value, offset); sym != nil {
				return sym
			}
			for _, f := range d.Fields {
				if sym := identInExpr(f.Value, offset); sym != nil {
					return sym
				}
			}
			return &Symbol{Kind: SymPolicy, Name: d.Name.Name, Span: d.Name.Span, DeclSpan: d.Span}
		}
	}
	for _, d := range prog.Assets {
		if d.Span.Contains(offset) {
			if sym := identInExpr(d.Policy, offset); sym != nil {
				return sym
			}
			if sym := identInExpr(d.AssetName, offset); sym != nil {
				return sym
			}
			return &Symbol{Kind: SymAsset, Name: d.Name.Name, Span: d.Name.Span, DeclSpan: d.Span}
		}
	}
	for _, d := range prog.Types {
		if d.Span.Contains(offset) {
			if sym := symbolInType(d, offset); sym != nil {
				return sym
			}
			return &Symbol{Kind: SymType, Name: d.Name.Name, Span: d.Name.Span, DeclSpan: d.Span}
		}
	}
	return nil
}

func symbolInType(d *TypeDef, offset int) *Symbol {
	for _, c := range d.Cases {
		for _, f := range c.Fields {
			if f.Type != nil && f.Type.Span.Contains(offset) {
				return typeRefSymbol(f.Type, offset)
			}
		}
	}
	return nil
}

func typeRefSymbol(ref *TypeRef, offset int) *Symbol {
	if ref.Elem != nil && ref.Elem.Span.Contains(offset) {
		return typeRefSymbol(ref.Elem, offset)
	}
	return &Symbol{Kind: SymIdent, Name: ref.Name, Span: ref.Span, DeclSpan: ref.Span}
}

func symbolInTx(tx *TxDef, offset int) *Symbol {
	if tx.Name.Span.Contains(offset) {
		return &Symbol{Kind: SymTx, Name: tx.Name.Name, Span: tx.Name.Span, DeclSpan: tx.Span, Tx: tx}
	}
	for _, param := range tx.Params {
		if param.Name.Span.Contains(offset) {
			return &Symbol{Kind: SymParam, Name: param.Name.Name, Span: param.Name.Span, DeclSpan: param.Span, Tx: tx, Type: param.Type}
		}
		if param.Type != nil && param.Type.Span.Contains(offset) {
			sym := typeRefSymbol(param.Type, offset)
			sym.Tx = tx
			return sym
		}
	}
	for _, blk := range tx.Blocks {
		if !blk.Span.Contains(offset) {
			continue
		}
		if blk.Name != nil && blk.Name.Span.Contains(offset) {
			return &Symbol{
				Kind:     BlockSymbolKind(blk.Kind),
				Name:     blk.Name.Name,
				Span:     blk.Name.Span,
				DeclSpan: blk.Span,
				Tx:       tx,
			}
		}
		for _, f := range blk.Fields {
			if sym := identInExpr(f.Value, offset); sym != nil {
				sym.Tx = tx
				return sym
			}
		}
		// Inside the block but not on a name: surface the block itself.
		name := string(blk.Kind)
		if blk.Name != nil {
			name = blk.Name.Name
		}
		return &Symbol{Kind: BlockSymbolKind(blk.Kind), Name: name, Span: blk.Span, DeclSpan: blk.Span, Tx: tx}
	}
	return nil
}

// BlockSymbolKind maps a block kind to the symbol kind it declares.
func BlockSymbolKind(kind BlockKind) SymbolKind {
	switch kind {
	case BlockInput, BlockCollateral:
		return SymInput
	case BlockOutput:
		return SymOutput
	case BlockReference:
		return SymReference
	default:
		return SymIdent
	}
}

func identInExpr(e Expr, offset int) *Symbol {
	switch e := e.(type) {
	case nil:
		return nil
	case *IdentExpr:
		if e.S.Contains(offset) {
			return &Symbol{Kind: SymIdent, Name: e.Name, Span: e.S, DeclSpan: e.S}
		}
	case *PropertyAccess:
		if sym := identInExpr(e.Object, offset); sym != nil {
			return sym
		}
		for _, seg := range e.Path {
			if sym := identInExpr(seg, offset); sym != nil {
				return sym
			}
		}
	case *ConstructorExpr:
		if sym := identInExpr(e.Type, offset); sym != nil {
			return sym
		}
		for _, f := range e.Fields {
			if sym := identInExpr(f.Value, offset); sym != nil {
				return sym
			}
		}
		return identInExpr(e.Spread, offset)
	case *ListExpr:
		for _, el := range e.Elems {
			if sym := identInExpr(el, offset); sym != nil {
				return sym
			}
		}
	case *BinaryExpr:
		if sym := identInExpr(e.Left, offset); sym != nil {
			return sym
		}
		return identInExpr(e.Right, offset)
	}
	return nil
}

// TxAt returns the transaction whose span contains the offset.
func TxAt(prog *Program, offset int) *TxDef {
	if prog == nil {
		return nil
	}
	for _, tx := range prog.Txs {
		if tx.Span.Contains(offset) {
			return tx
		}
	}
	return nil
}

// Definition resolves a name to its defining span. Names declared in
// the enclosing tx (parameters, inputs, outputs, references) shadow
// top-level declarations.
func Definition(prog *Program, name string, offset int) (text.Span, bool) {
	if prog == nil || name == "" {
		return text.Span{}, false
	}
	if tx := TxAt(prog, offset); tx != nil {
		for _, param := range tx.Params {
			if param.Name.Name == name {
				return param.Span, true
			}
		}
		for _, blk := range tx.Blocks {
			if blk.Name != nil && blk.Name.Name == name {
				return blk.Span, true
			}
		}
	}
	for _, d := range prog.Parties {
		if d.Name.Name == name {
			return d.Span, true
		}
	}
	for _, d := range prog.Policies {
		if d.Name.Name == name {
			return d.Span, true
		}
	}
	for _, d := range prog.Assets {
		if d.Name.Name == name {
			return d.Span, true
		}
	}
	for _, d := range prog.Types {
		if d.Name.Name == name {
			return d.Span, true
		}
	}
	for _, d := range prog.Txs {
		if d.Name.Name == name {
			return d.Span, true
		}
	}
	return text.Span{}, false
}

// ScopeEntry is one completable name visible at a position.
type ScopeEntry struct {
	Name   string
	Kind   SymbolKind
	Detail string
}

// ScopeAt lists the names visible at the offset: all top-level
// declarations, plus the enclosing tx's parameters and named blocks.
// Entries appear in declaration order.
func ScopeAt(prog *Program, offset int) []ScopeEntry {
	if prog == nil {
		return nil
	}
	var entries []ScopeEntry
	if tx := TxAt(prog, offset); tx != nil {
		for _, param := range tx.Params {
			entries = append(entries, ScopeEntry{Name: param.Name.Name, Kind: SymParam, Detail: TypeString(param.Type)})
		}
		for _, blk := range tx.Blocks {
			if blk.Name != nil {
				entries = append(entries, ScopeEntry{Name: blk.Name.Name, Kind: BlockSymbolKind(blk.Kind), Detail: string(blk.Kind)})
			}
		}
	}
	for _, d := range prog.Parties {
		entries = append(entries, ScopeEntry{Name: d.Name.Name, Kind: SymParty, Detail: "party"})
	}
	for _, d := range prog.Policies {
		entries = append(entries, ScopeEntry{Name: d.Name.Name, Kind: SymPolicy, Detail: "policy"})
	}
	for _, d := range prog.Assets {
		entries = append(entries, ScopeEntry{Name: d.Name.Name, Kind: SymAsset, Detail: "asset"})
	}
	for _, d := range prog.Types {
		entries = append(entries, ScopeEntry{Name: d.Name.Name, Kind: SymType, Detail: "type"})
	}
	for _, d := range prog.Txs {
		entries = append(entries, ScopeEntry{Name: d.Name.Name, Kind: SymTx, Detail: "tx"})
	}
	return entries
}

// TypeString renders a type reference the way it appears in source,
// or "" for a missing annotation.
func TypeString(ref *TypeRef) string {
	if ref == nil {
		return ""
	}
	if ref.Elem != nil {
		return ref.Name + "<" + TypeString(ref.Elem) + ">"
	}
	return ref.Name
}
