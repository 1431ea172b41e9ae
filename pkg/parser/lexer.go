package parser

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/token"
)

// Lexer tokenizes SQL input.
//
// Quoted identifiers are emitted as IDENT tokens whose literal keeps the
// delimiters, so identifier normalization stays in one place (pkg/ident).
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	dialect *dialect.Dialect
}

// NewLexer creates a new Lexer for the given input. A nil dialect lexes
// as ANSI.
func NewLexer(input string, d *dialect.Dialect) *Lexer {
	if d == nil {
		d = defaultDialect()
	}
	l := &Lexer{
		input:   input,
		line:    1,
		col:     0,
		dialect: d,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	tok := token.Token{Pos: pos}

	if l.pos >= len(l.input) {
		tok.Type = token.EOF
		return tok
	}

	if closing, ok := l.dialect.QuoteFor(l.ch); ok {
		lit, ok := l.readDelimited(closing)
		tok.Literal = lit
		tok.Type = token.IDENT
		if !ok {
			tok.Type = token.ILLEGAL
		}
		return tok
	}

	switch l.ch {
	case '+':
		tok = l.single(token.PLUS, pos)
	case '-':
		tok = l.single(token.MINUS, pos)
	case '*':
		tok = l.single(token.STAR, pos)
	case '/':
		tok = l.single(token.SLASH, pos)
	case '%':
		tok = l.single(token.PERCENT, pos)
	case '=':
		tok = l.single(token.EQ, pos)
		if l.ch == '=' { // ==
			l.readChar()
		}
	case '<':
		switch l.peekChar() {
		case '=':
			tok = l.double(token.LE, pos)
		case '>':
			tok = l.double(token.NE, pos)
		default:
			tok = l.single(token.LT, pos)
		}
	case '>':
		if l.peekChar() == '=' {
			tok = l.double(token.GE, pos)
		} else {
			tok = l.single(token.GT, pos)
		}
	case '!':
		if l.peekChar() == '=' {
			tok = l.double(token.NE, pos)
		} else {
			tok = l.single(token.ILLEGAL, pos)
		}
	case '|':
		if l.peekChar() == '|' {
			tok = l.double(token.DPIPE, pos)
		} else {
			tok = l.single(token.ILLEGAL, pos)
		}
	case ':':
		if l.peekChar() == ':' {
			tok = l.double(token.DCOLON, pos)
		} else {
			tok = l.single(token.ILLEGAL, pos)
		}
	case '.':
		if isDigit(l.peekChar()) {
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
		} else {
			tok = l.single(token.DOT, pos)
		}
	case ',':
		tok = l.single(token.COMMA, pos)
	case ';':
		tok = l.single(token.SEMICOLON, pos)
	case '(':
		tok = l.single(token.LPAREN, pos)
	case ')':
		tok = l.single(token.RPAREN, pos)
	case '\'':
		tok.Literal, tok.Type = l.readStringToken()
	case '?':
		tok = l.single(token.PARAM, pos)
	case '@', '$':
		tok.Type = token.PARAM
		tok.Literal = l.readParam()
	default:
		switch {
		case (l.ch == 'N' || l.ch == 'n' || l.ch == 'E' || l.ch == 'e') && l.peekChar() == '\'':
			l.readChar() // prefix: N'unicode', E'escape'
			tok.Literal, tok.Type = l.readStringToken()
		case isIdentStart(l.ch) || (l.ch == '#' && l.dialect.AllowsHashIdentifiers()):
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(strings.ToLower(tok.Literal))
		case isDigit(l.ch):
			tok.Type = token.NUMBER
			tok.Literal = l.readNumber()
		default:
			tok = l.single(token.ILLEGAL, pos)
		}
	}
	return tok
}

// single consumes one character as a token.
func (l *Lexer) single(t token.TokenType, pos token.Position) token.Token {
	lit := string(l.ch)
	l.readChar()
	return token.Token{Type: t, Literal: lit, Pos: pos}
}

// double consumes two characters as a token.
func (l *Lexer) double(t token.TokenType, pos token.Position) token.Token {
	lit := l.input[l.pos : l.pos+2]
	l.readChar()
	l.readChar()
	return token.Token{Type: t, Literal: lit, Pos: pos}
}

// skipWhitespaceAndComments skips whitespace, -- line and /* block */ comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for l.ch != 0 && (l.ch != '*' || l.peekChar() != '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
			continue
		}

		break
	}
}

// readStringToken reads a string literal. An unterminated string becomes
// ILLEGAL with its opening quote kept in the literal.
func (l *Lexer) readStringToken() (string, token.TokenType) {
	lit, ok := l.readString()
	if !ok {
		return "'" + lit, token.ILLEGAL
	}
	return lit, token.STRING
}

// readString reads a single-quoted string literal.
// Handles doubled single quotes as escape: 'it''s' -> it's
func (l *Lexer) readString() (string, bool) {
	l.readChar() // skip opening quote

	var result strings.Builder
	for l.pos < len(l.input) {
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return result.String(), true
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
	return result.String(), false
}

// readDelimited reads a quoted identifier and returns it with its
// delimiters. A doubled closer is an escaped delimiter.
func (l *Lexer) readDelimited(closing byte) (string, bool) {
	start := l.pos
	l.readChar() // opening delimiter
	for l.pos < len(l.input) {
		if l.ch == closing {
			if l.peekChar() == closing {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return l.input[start:l.pos], true
		}
		l.readChar()
	}
	return l.input[start:l.pos], false
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	l.readChar()
	for isIdentPart(l.ch) || (l.ch == '#' && l.dialect.AllowsHashIdentifiers()) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readParam reads @name, @@name, $1 or $name.
func (l *Lexer) readParam() string {
	start := l.pos
	for l.ch == '@' || l.ch == '$' {
		l.readChar()
	}
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && (isDigit(l.peekChar()) || !isIdentStart(l.peekChar())) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch >= 0x80 || unicode.IsLetter(rune(ch))
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF.
func Tokenize(input string, d *dialect.Dialect) []token.Token {
	l := NewLexer(input, d)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return tokens
}
