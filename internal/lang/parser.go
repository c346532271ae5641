package lang

import (
	"fmt"

	"tx3lsp/internal/text"
)

// maxParseErrors bounds recovery; past this the document is treated as
// malformed beyond recovery and reported as a single fatal diagnostic.
const maxParseErrors = 25

var topLevelKeywords = map[string]bool{
	"party":  true,
	"policy": true,
	"asset":  true,
	"type":   true,
	"tx":     true,
}

var blockKeywords = map[string]BlockKind{
	"input":      BlockInput,
	"output":     BlockOutput,
	"mint":       BlockMint,
	"burn":       BlockBurn,
	"reference":  BlockReference,
	"collateral": BlockCollateral,
	"signers":    BlockSigners,
	"validity":   BlockValidity,
	"metadata":   BlockMetadata,
}

// Parse parses a tx3 document with error recovery: a syntax error is
// recorded as a diagnostic and parsing resumes at the next declaration
// boundary, so the remainder of the document stays queryable. A nil
// program means the text was malformed beyond recovery; the returned
// diagnostics then contain a single entry covering the whole document.
func Parse(src string) (*Program, []Diagnostic) {
	p := &parser{src: src}
	lx := newLexer(src)
	for {
		t := lx.next()
		p.toks = append(p.toks, t)
		if t.kind == tokEOF {
			break
		}
	}

	prog := &Program{Span: text.Span{Start: 0, End: len(src)}}
	for p.cur().kind != tokEOF {
		if len(p.diags) > maxParseErrors {
			return nil, []Diagnostic{{
				Span:     text.Span{Start: 0, End: len(src)},
				Severity: SeverityError,
				Message:  "too many syntax errors, giving up on this document",
				Code:     "parse-failure",
				Source:   SourceParser,
			}}
		}
		t := p.cur()
		if t.kind != tokIdent {
			p.errorAt(t.span, fmt.Sprintf("expected declaration, found %s", t.kind))
			p.advance()
			p.syncTopLevel()
			continue
		}
		switch t.text {
		case "party":
			p.parseParty(prog)
		case "policy":
			p.parsePolicy(prog)
		case "asset":
			p.parseAsset(prog)
		case "type":
			p.parseType(prog)
		case "tx":
			p.parseTx(prog)
		default:
			p.errorAt(t.span, fmt.Sprintf("expected declaration, found %q", t.text))
			p.advance()
			p.syncTopLevel()
		}
	}
	return prog, p.diags
}

type parser struct {
	src   string
	toks  []token
	i     int
	diags []Diagnostic
}

func (p *parser) cur() token {
	return p.toks[p.i]
}

func (p *parser) peek() token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *parser) prevEnd() int {
	if p.i == 0 {
		return 0
	}
	return p.toks[p.i-1].span.End
}

func (p *parser) at(kind tokenKind) bool {
	return p.cur().kind == kind
}

func (p *parser) eat(kind tokenKind) (token, bool) {
	if p.at(kind) {
		return p.advance(), true
	}
	return p.cur(), false
}

func (p *parser) expect(kind tokenKind) (token, bool) {
	if t, ok := p.eat(kind); ok {
		return t, true
	}
	t := p.cur()
	p.errorAt(t.span, fmt.Sprintf("expected %s, found %s", kind, describe(t)))
	return t, false
}

func describe(t token) string {
	if t.kind == tokIdent {
		return fmt.Sprintf("%q", t.text)
	}
	return t.kind.String()
}

func (p *parser) errorAt(span text.Span, msg string) {
	p.diags = append(p.diags, Diagnostic{
		Span:     span,
		Severity: SeverityError,
		Message:  msg,
		Code:     "syntax",
		Source:   SourceParser,
	})
}

// syncTopLevel skips tokens until the next declaration keyword outside
// any brace nesting, or end of file.
func (p *parser) syncTopLevel() {
	depth := 0
	for {
		t := p.cur()
		switch t.kind {
		case tokEOF:
			return
		case tokLBrace:
			depth++
		case tokRBrace:
			if depth > 0 {
				depth--
			}
		case tokIdent:
			if depth == 0 && topLevelKeywords[t.text] {
				return
			}
		}
		p.advance()
	}
}

func (p *parser) expectIdent() (Identifier, bool) {
	t, ok := p.eat(tokIdent)
	if !ok {
		p.errorAt(t.span, fmt.Sprintf("expected identifier, found %s", describe(t)))
		return Identifier{Span: t.span}, false
	}
	return Identifier{Span: t.span, Name: t.text}, true
}

func (p *parser) parseParty(prog *Program) {
	kw := p.advance()
	name, ok := p.expectIdent()
	if !ok {
		p.syncTopLevel()
		return
	}
	p.expect(tokSemi)
	prog.Parties = append(prog.Parties, &PartyDef{
		Span: text.Span{Start: kw.span.Start, End: p.prevEnd()},
		Name: name,
	})
}

func (p *parser) parsePolicy(prog *Program) {
	kw := p.advance()
	name, ok := p.expectIdent()
	if !ok {
		p.syncTopLevel()
		return
	}
	def := &PolicyDef{Name: name}
	switch {
	case p.at(tokEq):
		p.advance()
		def.Value = p.parseExpr()
		p.expect(tokSemi)
	case p.at(tokLBrace):
		p.advance()
		def.Fields = p.parseFieldEntries(tokRBrace)
		p.expect(tokRBrace)
	default:
		p.errorAt(p.cur().span, fmt.Sprintf("expected '=' or '{' after policy name, found %s", describe(p.cur())))
		p.syncTopLevel()
		return
	}
	def.Span = text.Span{Start: kw.span.Start, End: p.prevEnd()}
	prog.Policies = append(prog.Policies, def)
}

func (p *parser) parseAsset(prog *Program) {
	kw := p.advance()
	name, ok := p.expectIdent()
	if !ok {
		p.syncTopLevel()
		return
	}
	if _, ok := p.expect(tokEq); !ok {
		p.syncTopLevel()
		return
	}
	def := &AssetDef{Name: name}
	def.Policy = p.parsePrimary()
	if _, ok := p.expect(tokDot); ok {
		def.AssetName = p.parsePrimary()
	}
	p.expect(tokSemi)
	def.Span = text.Span{Start: kw.span.Start, End: p.prevEnd()}
	prog.Assets = append(prog.Assets, def)
}

func (p *parser) parseType(prog *Program) {
	kw := p.advance()
	name, ok := p.expectIdent()
	if !ok {
		p.syncTopLevel()
		return
	}
	def := &TypeDef{Name: name}
	if _, ok := p.expect(tokLBrace); !ok {
		p.syncTopLevel()
		return
	}

	// A body of `name: Type` fields is a plain record: one unnamed case.
	// A body of `Case { ... }` entries is a variant type.
	if p.at(tokIdent) && p.peek().kind == tokColon {
		start := p.cur().span.Start
		fields := p.parseRecordFields()
		def.Cases = append(def.Cases, &VariantCase{
			Span:   text.Span{Start: start, End: p.prevEnd()},
			Fields: fields,
		})
	} else {
		for p.at(tokIdent) {
			caseName, _ := p.expectIdent()
			vc := &VariantCase{Name: caseName}
			if _, ok := p.expect(tokLBrace); ok {
				vc.Fields = p.parseRecordFields()
				p.expect(tokRBrace)
			}
			vc.Span = text.Span{Start: caseName.Span.Start, End: p.prevEnd()}
			def.Cases = append(def.Cases, vc)
			p.eat(tokComma)
		}
	}
	p.expect(tokRBrace)
	def.Span = text.Span{Start: kw.span.Start, End: p.prevEnd()}
	prog.Types = append(prog.Types, def)
}

func (p *parser) parseRecordFields() []*RecordField {
	var fields []*RecordField
	for p.at(tokIdent) && p.peek().kind == tokColon {
		name, _ := p.expectIdent()
		p.advance() // ':'
		typ := p.parseTypeRef()
		fields = append(fields, &RecordField{
			Span: text.Span{Start: name.Span.Start, End: p.prevEnd()},
			Name: name,
			Type: typ,
		})
		if _, ok := p.eat(tokComma); !ok {
			break
		}
	}
	return fields
}

func (p *parser) parseTypeRef() *TypeRef {
	t, ok := p.eat(tokIdent)
	if !ok {
		p.errorAt(t.span, fmt.Sprintf("expected type, found %s", describe(t)))
		return &TypeRef{Span: t.span}
	}
	ref := &TypeRef{Span: t.span, Name: t.text}
	if t.text == "List" && p.at(tokLess) {
		p.advance()
		ref.Elem = p.parseTypeRef()
		p.expect(tokGreater)
		ref.Span.End = p.prevEnd()
	}
	return ref
}

func (p *parser) parseTx(prog *Program) {
	kw := p.advance()
	name, ok := p.expectIdent()
	if !ok {
		p.syncTopLevel()
		return
	}
	def := &TxDef{Name: name}

	if lp, ok := p.expect(tokLParen); ok {
		def.ParamsSpan.Start = lp.span.Start
		for p.at(tokIdent) {
			pname, _ := p.expectIdent()
			param := &Parameter{Name: pname}
			if _, ok := p.expect(tokColon); ok {
				param.Type = p.parseTypeRef()
			}
			param.Span = text.Span{Start: pname.Span.Start, End: p.prevEnd()}
			def.Params = append(def.Params, param)
			if _, ok := p.eat(tokComma); !ok {
				break
			}
		}
		p.expect(tokRParen)
		def.ParamsSpan.End = p.prevEnd()
	}

	if _, ok := p.expect(tokLBrace); !ok {
		def.Partial = true
		def.Span = text.Span{Start: kw.span.Start, End: p.prevEnd()}
		prog.Txs = append(prog.Txs, def)
		p.syncTopLevel()
		return
	}

	for !p.at(tokRBrace) && !p.at(tokEOF) {
		t := p.cur()
		if t.kind == tokIdent {
			if bk, ok := blockKeywords[t.text]; ok {
				def.Blocks = append(def.Blocks, p.parseBlock(bk))
				continue
			}
		}
		p.errorAt(t.span, fmt.Sprintf("expected block, found %s", describe(t)))
		p.syncBlock()
	}
	if _, ok := p.eat(tokRBrace); !ok {
		eof := p.cur().span
		p.errorAt(eof, "unexpected end of file, expected '}'")
		def.Partial = true
	}
	def.Span = text.Span{Start: kw.span.Start, End: p.prevEnd()}
	prog.Txs = append(prog.Txs, def)
}

// syncBlock skips to the next block keyword or the tx body's closing
// brace, balancing nested braces on the way.
func (p *parser) syncBlock() {
	depth := 0
	for {
		t := p.cur()
		switch t.kind {
		case tokEOF:
			return
		case tokLBrace:
			depth++
		case tokRBrace:
			if depth == 0 {
				return
			}
			depth--
		case tokIdent:
			if depth == 0 {
				if _, ok := blockKeywords[t.text]; ok {
					return
				}
			}
		}
		p.advance()
	}
}

func (p *parser) parseBlock(kind BlockKind) *Block {
	kw := p.advance()
	blk := &Block{Kind: kind}
	if p.at(tokIdent) {
		name, _ := p.expectIdent()
		blk.Name = &name
	}
	if _, ok := p.expect(tokLBrace); ok {
		blk.Fields = p.parseFieldEntries(tokRBrace)
		p.expect(tokRBrace)
	}
	blk.Span = text.Span{Start: kw.span.Start, End: p.prevEnd()}
	return blk
}

// parseFieldEntries parses `key: expr` entries, or bare expressions for
// list-shaped bodies (signers), until the closing token.
func (p *parser) parseFieldEntries(closing tokenKind) []*FieldEntry {
	var entries []*FieldEntry
	for !p.at(closing) && !p.at(tokEOF) {
		start := p.cur().span.Start
		entry := &FieldEntry{}
		if p.at(tokIdent) && p.peek().kind == tokColon {
			name, _ := p.expectIdent()
			p.advance() // ':'
			entry.Name = name
			entry.Value = p.parseExpr()
		} else {
			entry.Value = p.parseExpr()
		}
		if entry.Value == nil {
			// parseExpr reported the error; skip the offender to make
			// progress and resync at the next entry.
			p.advance()
			continue
		}
		entry.Span = text.Span{Start: start, End: p.prevEnd()}
		entries = append(entries, entry)
		if _, ok := p.eat(tokComma); !ok {
			break
		}
	}
	return entries
}

func (p *parser) parseExpr() Expr {
	left := p.parsePrimary()
	if left == nil {
		return nil
	}
	for p.at(tokPlus) || p.at(tokMinus) {
		op := p.advance()
		right := p.parsePrimary()
		if right == nil {
			return left
		}
		left = &BinaryExpr{
			S:     text.Span{Start: left.Span().Start, End: right.Span().End},
			Op:    op.text,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *parser) parsePrimary() Expr {
	t := p.cur()
	switch t.kind {
	case tokInt:
		p.advance()
		return &IntLit{S: t.span, Value: t.text}
	case tokHex:
		p.advance()
		return &HexLit{S: t.span, Value: t.text}
	case tokString:
		p.advance()
		return &StringLit{S: t.span, Value: t.text}
	case tokLBracket:
		p.advance()
		list := &ListExpr{S: text.Span{Start: t.span.Start}}
		for !p.at(tokRBracket) && !p.at(tokEOF) {
			el := p.parseExpr()
			if el == nil {
				break
			}
			list.Elems = append(list.Elems, el)
			if _, ok := p.eat(tokComma); !ok {
				break
			}
		}
		p.expect(tokRBracket)
		list.S.End = p.prevEnd()
		return list
	case tokIdent:
		p.advance()
		if p.at(tokLBrace) {
			return p.parseConstructor(t)
		}
		return p.parseAccess(t)
	}
	p.errorAt(t.span, fmt.Sprintf("expected expression, found %s", describe(t)))
	return nil
}

func (p *parser) parseAccess(first token) Expr {
	obj := &IdentExpr{S: first.span, Name: first.text}
	if !p.at(tokDot) || p.peek().kind != tokIdent {
		return obj
	}
	access := &PropertyAccess{S: first.span, Object: obj}
	for p.at(tokDot) && p.peek().kind == tokIdent {
		p.advance() // '.'
		seg := p.advance()
		access.Path = append(access.Path, &IdentExpr{S: seg.span, Name: seg.text})
	}
	access.S.End = p.prevEnd()
	return access
}

func (p *parser) parseConstructor(typeTok token) Expr {
	ctor := &ConstructorExpr{
		S:    text.Span{Start: typeTok.span.Start},
		Type: &IdentExpr{S: typeTok.span, Name: typeTok.text},
	}
	p.advance() // '{'
	for !p.at(tokRBrace) && !p.at(tokEOF) {
		if p.at(tokEllipsis) {
			p.advance()
			ctor.Spread = p.parseExpr()
			p.eat(tokComma)
			continue
		}
		name, ok := p.expectIdent()
		if !ok {
			p.advance()
			continue
		}
		entry := &FieldEntry{Name: name}
		if _, ok := p.expect(tokColon); ok {
			entry.Value = p.parseExpr()
		}
		entry.Span = text.Span{Start: name.Span.Start, End: p.prevEnd()}
		ctor.Fields = append(ctor.Fields, entry)
		if _, ok := p.eat(tokComma); !ok {
			break
		}
	}
	p.expect(tokRBrace)
	ctor.S.End = p.prevEnd()
	return ctor
}
