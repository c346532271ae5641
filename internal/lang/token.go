// Package lang implements the tx3 grammar: an error-recovering parser,
// the AST with byte spans, and the semantic analyzer. The rest of the
// engine consumes it through Parse and Validate only.
package lang

import "tx3lsp/internal/text"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokHex
	tokString
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokColon
	tokSemi
	tokComma
	tokDot
	tokEllipsis
	tokEq
	tokPlus
	tokMinus
	tokStar
	tokLess
	tokGreater
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
	span text.Span
}

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "integer"
	case tokHex:
		return "hex literal"
	case tokString:
		return "string"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokColon:
		return "':'"
	case tokSemi:
		return "';'"
	case tokComma:
		return "','"
	case tokDot:
		return "'.'"
	case tokEllipsis:
		return "'...'"
	case tokEq:
		return "'='"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokLess:
		return "'<'"
	case tokGreater:
		return "'>'"
	default:
		return "invalid token"
	}
}
