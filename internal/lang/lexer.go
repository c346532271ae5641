package lang

import "tx3lsp/internal/text"

type lexer struct {
	src string
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) next() token {
	l.skipTrivia()
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, span: text.Span{Start: start, End: start}}
	}

	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return l.tok(tokIdent, start)

	case c >= '0' && c <= '9':
		if c == '0' && l.pos+1 < len(l.src) && (l.src[l.pos+1] == 'x' || l.src[l.pos+1] == 'X') {
			l.pos += 2
			for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
				l.pos++
			}
			return l.tok(tokHex, start)
		}
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
		return l.tok(tokInt, start)

	case c == '"':
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] != '"' && l.src[l.pos] != '\n' {
			if l.src[l.pos] == '\\' && l.pos+1 < len(l.src) {
				l.pos++
			}
			l.pos++
		}
		if l.pos < len(l.src) && l.src[l.pos] == '"' {
			l.pos++
		}
		return l.tok(tokString, start)
	}

	l.pos++
	switch c {
	case '{':
		return l.tok(tokLBrace, start)
	case '}':
		return l.tok(tokRBrace, start)
	case '(':
		return l.tok(tokLParen, start)
	case ')':
		return l.tok(tokRParen, start)
	case '[':
		return l.tok(tokLBracket, start)
	case ']':
		return l.tok(tokRBracket, start)
	case ':':
		return l.tok(tokColon, start)
	case ';':
		return l.tok(tokSemi, start)
	case ',':
		return l.tok(tokComma, start)
	case '.':
		if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && l.src[l.pos+1] == '.' {
			l.pos += 2
			return l.tok(tokEllipsis, start)
		}
		return l.tok(tokDot, start)
	case '=':
		return l.tok(tokEq, start)
	case '+':
		return l.tok(tokPlus, start)
	case '-':
		return l.tok(tokMinus, start)
	case '*':
		return l.tok(tokStar, start)
	case '<':
		return l.tok(tokLess, start)
	case '>':
		return l.tok(tokGreater, start)
	}
	return l.tok(tokInvalid, start)
}

func (l *lexer) tok(kind tokenKind, start int) token {
	return token{
		kind: kind,
		text: l.src[start:l.pos],
		span: text.Span{Start: start, End: l.pos},
	}
}

func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			l.pos += 2
			for l.pos < len(l.src) {
				if l.src[l.pos] == '*' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
					l.pos += 2
					break
				}
				l.pos++
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
