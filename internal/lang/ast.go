package lang

import "tx3lsp/internal/text"

// Program is the root of a parsed tx3 document. Declarations appear in
// source order within each slice. All spans are byte ranges into the
// exact buffer version the program was parsed from.
type Program struct {
	Span     text.Span
	Parties  []*PartyDef
	Policies []*PolicyDef
	Assets   []*AssetDef
	Types    []*TypeDef
	Txs      []*TxDef
}

// Identifier is a named occurrence with its source span.
type Identifier struct {
	Span text.Span
	Name string
}

// PartyDef is `party Name;`.
type PartyDef struct {
	Span text.Span
	Name Identifier
}

// PolicyDef is `policy Name = <expr>;` or a constructor block
// `policy Name { hash: ..., }`.
type PolicyDef struct {
	Span   text.Span
	Name   Identifier
	Value  Expr          // set for the assignment form
	Fields []*FieldEntry // set for the constructor form
}

// AssetDef is `asset Name = <policy>.<name>;`.
type AssetDef struct {
	Span      text.Span
	Name      Identifier
	Policy    Expr
	AssetName Expr
}

// TypeDef is `type Name { ... }` with one or more variant cases. A
// plain record type is represented as a single unnamed case.
type TypeDef struct {
	Span  text.Span
	Name  Identifier
	Cases []*VariantCase
}

// VariantCase is one constructor of a type definition.
type VariantCase struct {
	Span   text.Span
	Name   Identifier
	Fields []*RecordField
}

// RecordField is `name: Type` inside a type case.
type RecordField struct {
	Span text.Span
	Name Identifier
	Type *TypeRef
}

// TypeRef is a type expression: a named type or List<T>.
type TypeRef struct {
	Span text.Span
	Name string
	Elem *TypeRef // non-nil for List<T>
}

// TxDef is a transaction template declaration.
type TxDef struct {
	Span       text.Span
	Name       Identifier
	Params     []*Parameter
	ParamsSpan text.Span
	Blocks     []*Block
	// Partial marks a tx recovered from a syntax error; its block list
	// may be incomplete but the declaration is still queryable.
	Partial bool
}

// Parameter is `name: Type` in a tx parameter list.
type Parameter struct {
	Span text.Span
	Name Identifier
	Type *TypeRef
}

// BlockKind discriminates the block forms inside a tx body.
type BlockKind string

const (
	BlockInput      BlockKind = "input"
	BlockOutput     BlockKind = "output"
	BlockMint       BlockKind = "mint"
	BlockBurn       BlockKind = "burn"
	BlockReference  BlockKind = "reference"
	BlockCollateral BlockKind = "collateral"
	BlockSigners    BlockKind = "signers"
	BlockValidity   BlockKind = "validity"
	BlockMetadata   BlockKind = "metadata"
)

// Block is one section of a tx body. Name is set for the named forms
// (`input src { ... }`, `reference r { ... }`); Fields holds the
// `key: expr` entries, or bare expressions (empty Name) for signer
// lists.
type Block struct {
	Span   text.Span
	Kind   BlockKind
	Name   *Identifier
	Fields []*FieldEntry
}

// FieldEntry is a `key: expr` entry (or a bare expr when Name has an
// empty span and name).
type FieldEntry struct {
	Span  text.Span
	Name  Identifier
	Value Expr
}

// Inputs returns the input blocks of the tx in declaration order.
func (t *TxDef) Inputs() []*Block { return t.blocks(BlockInput) }

// Outputs returns the output blocks of the tx in declaration order.
func (t *TxDef) Outputs() []*Block { return t.blocks(BlockOutput) }

// References returns the reference blocks of the tx.
func (t *TxDef) References() []*Block { return t.blocks(BlockReference) }

func (t *TxDef) blocks(kind BlockKind) []*Block {
	var out []*Block
	for _, b := range t.Blocks {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Expr is a field-value expression.
type Expr interface {
	Span() text.Span
}

// IdentExpr is a bare identifier reference.
type IdentExpr struct {
	S    text.Span
	Name string
}

// PropertyAccess is `object.path.to.field`.
type PropertyAccess struct {
	S      text.Span
	Object *IdentExpr
	Path   []*IdentExpr
}

// IntLit is a decimal integer literal.
type IntLit struct {
	S     text.Span
	Value string
}

// HexLit is a 0x-prefixed bytes literal.
type HexLit struct {
	S     text.Span
	Value string
}

// StringLit is a quoted string literal.
type StringLit struct {
	S     text.Span
	Value string
}

// ConstructorExpr is `Type { field: expr, ..., ...spread }` with an
// optional variant case `Type::Case { ... }` collapsed to Case being
// carried in the field list of the parse (tx3's subset keeps the flat
// form).
type ConstructorExpr struct {
	S      text.Span
	Type   *IdentExpr
	Fields []*FieldEntry
	Spread Expr
}

// ListExpr is `[a, b, c]`.
type ListExpr struct {
	S     text.Span
	Elems []Expr
}

// BinaryExpr is `left op right` for the asset arithmetic operators.
type BinaryExpr struct {
	S     text.Span
	Op    string
	Left  Expr
	Right Expr
}

func (e *IdentExpr) Span() text.Span       { return e.S }
func (e *PropertyAccess) Span() text.Span  { return e.S }
func (e *IntLit) Span() text.Span          { return e.S }
func (e *HexLit) Span() text.Span          { return e.S }
func (e *StringLit) Span() text.Span       { return e.S }
func (e *ConstructorExpr) Span() text.Span { return e.S }
func (e *ListExpr) Span() text.Span        { return e.S }
func (e *BinaryExpr) Span() text.Span      { return e.S }
