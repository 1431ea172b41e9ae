// Package parser turns SQL text into the syntax tree in pkg/core.
//
// # Usage
//
//	d, _ := dialect.Get("tsql")
//	stmt, err := parser.Parse("SELECT a, b FROM t", d)
//
//	for _, s := range parser.ParseScript(script, d) {
//	    if s.Err != nil {
//	        // statement s.Index failed; the others are still usable
//	    }
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for the query subset of SQL:
//
//	script        → statement (";" statement)*
//	statement     → [WITH [RECURSIVE] cte_list] select_body
//	select_body   → operand [(UNION|INTERSECT|EXCEPT|MINUS) [ALL|DISTINCT] select_body]
//	operand       → select_core | "(" statement ")"
//	select_core   → SELECT [DISTINCT|ALL] [TOP n] select_list [INTO name]
//	                [FROM from_clause] [WHERE expr] [GROUP BY expr_list]
//	                [HAVING expr] [WINDOW ...] [QUALIFY expr]
//	                [ORDER BY order_list] [LIMIT expr] [OFFSET expr]
//
// See each file for detailed grammar rules for that section.
package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/token"
)

// Parser parses SQL into an AST.
type Parser struct {
	input   string
	lexer   *Lexer
	token   token.Token // current token
	peek    token.Token // lookahead token
	peek2   token.Token // second lookahead token
	errors  []error
	dialect *dialect.Dialect
}

// NewParser creates a new parser for the given SQL input. A nil dialect
// parses as ANSI.
func NewParser(sql string, d *dialect.Dialect) *Parser {
	if d == nil {
		d = defaultDialect()
	}
	p := &Parser{
		input:   sql,
		lexer:   NewLexer(sql, d),
		dialect: d,
	}
	// Read three tokens to initialize current, peek, and peek2
	p.nextToken()
	p.nextToken()
	p.nextToken()
	return p
}

func defaultDialect() *dialect.Dialect {
	d, _ := dialect.Get(dialect.ANSI)
	return d
}

// Parse parses exactly one statement. A trailing semicolon is allowed.
func Parse(sql string, d *dialect.Dialect) (*core.SelectStmt, error) {
	p := NewParser(sql, d)
	stmt := p.parseStatement()
	p.match(token.SEMICOLON)
	if len(p.errors) == 0 && !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "end of input"))
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// Statement is one entry of a parsed script.
type Statement struct {
	Index int    // 0-based position in the script
	Text  string // source text of the statement
	Stmt  *core.SelectStmt
	Err   error
}

// ParseScript parses every statement in sql. Statements are separated by
// semicolons, or start implicitly at a SELECT/WITH that follows a complete
// statement. A statement that fails to parse yields an entry with Err set;
// parsing resumes at the next statement.
func ParseScript(sql string, d *dialect.Dialect) []Statement {
	p := NewParser(sql, d)
	var out []Statement
	for !p.check(token.EOF) {
		if p.match(token.SEMICOLON) {
			continue
		}
		start := p.token.Pos.Offset
		p.errors = nil

		stmt := p.parseStatement()
		if len(p.errors) == 0 && !p.check(token.SEMICOLON) && !p.check(token.EOF) &&
			!p.check(token.SELECT) && !p.check(token.WITH) {
			p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), "end of statement"))
		}

		entry := Statement{Index: len(out), Stmt: stmt}
		if len(p.errors) > 0 {
			entry.Stmt = nil
			entry.Err = p.errors[0]
			p.skipStatement()
		}
		entry.Text = strings.TrimSpace(p.input[start:p.token.Pos.Offset])
		out = append(out, entry)
	}
	return out
}

// skipStatement advances to the next top-level semicolon or EOF.
func (p *Parser) skipStatement() {
	depth := 0
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		case token.SEMICOLON:
			if depth <= 0 {
				return
			}
		}
		p.nextToken()
	}
}

// Dialect returns the parser's dialect.
func (p *Parser) Dialect() *dialect.Dialect {
	return p.dialect
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.peek2
	p.peek2 = p.lexer.NextToken()
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

// checkWord reports whether the current token is the bare word w
// (case-insensitive). Used for contextual words that are not keywords.
func (p *Parser) checkWord(w string) bool {
	return p.token.Type == token.IDENT && strings.EqualFold(p.token.Literal, w)
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// matchWord consumes the contextual word w if present.
func (p *Parser) matchWord(w string) bool {
	if p.checkWord(w) {
		p.nextToken()
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise adds an error.
func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), t))
	return false
}

// addError adds a parse error. Only the first error of a statement is
// reported; the rest are usually cascades.
func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
	})
}

// failed reports whether the current statement already has an error.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// describe renders a token for error messages.
func (p *Parser) describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.IDENT, token.NUMBER, token.PARAM:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case token.STRING:
		return "string literal"
	case token.ILLEGAL:
		return p.illegal(tok)
	}
	return tok.Type.String()
}

func (p *Parser) illegal(tok token.Token) string {
	if tok.Literal != "" {
		if tok.Literal[0] == '\'' {
			return fmt.Sprintf(ErrUnterminated, "string", "'")
		}
		if _, ok := p.dialect.QuoteFor(tok.Literal[0]); ok {
			return fmt.Sprintf(ErrUnterminated, "quoted identifier", tok.Literal[:1])
		}
	}
	return fmt.Sprintf(ErrIllegalCharacter, tok.Literal)
}

// makeSpan closes a span opened at start at the current token.
func (p *Parser) makeSpan(start token.Position) token.Span {
	return token.Span{Start: start, End: p.token.Pos}
}

// ---------- Keyword Helpers ----------

// nonReserved lists keywords that may still name a column, table or alias.
var nonReserved = map[token.TokenType]bool{
	token.APPLY:      true,
	token.CURRENT:    true,
	token.ESCAPE:     true,
	token.FILTER:     true,
	token.FIRST:      true,
	token.FOLLOWING:  true,
	token.LAST:       true,
	token.MINUS_KW:   true,
	token.NULLS:      true,
	token.PARTITION:  true,
	token.PERCENT_KW: true,
	token.PRECEDING:  true,
	token.QUALIFY:    true,
	token.RANGE:      true,
	token.RECURSIVE:  true,
	token.ROW:        true,
	token.ROWS:       true,
	token.TIES:       true,
	token.TOP:        true,
	token.UNBOUNDED:  true,
	token.WINDOW:     true,
	token.WITHIN:     true,
}

// aliasStopWords are bare words that continue a statement and so can
// never be an implicit (AS-less) alias.
var aliasStopWords = map[string]bool{
	"for":         true,
	"fetch":       true,
	"into":        true,
	"option":      true,
	"pivot":       true,
	"unpivot":     true,
	"returning":   true,
	"tablesample": true,
}

// isIdentifier reports whether tok can be used as an identifier.
func (p *Parser) isIdentifier(tok token.Token) bool {
	return tok.Type == token.IDENT || nonReserved[tok.Type]
}

// isImplicitAlias reports whether tok can be an alias written without AS.
func (p *Parser) isImplicitAlias(tok token.Token) bool {
	switch tok.Type {
	case token.IDENT:
		return !aliasStopWords[strings.ToLower(tok.Literal)]
	case token.WINDOW, token.QUALIFY:
		return false
	case token.MINUS_KW:
		return !p.dialect.SupportsMinus()
	}
	return nonReserved[tok.Type]
}

// parseIdentifier consumes an identifier and returns its raw literal.
func (p *Parser) parseIdentifier(what string) string {
	if !p.isIdentifier(p.token) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), what))
		return ""
	}
	lit := p.token.Literal
	p.nextToken()
	return lit
}

// parseAlias parses [AS] alias. T-SQL also allows a string literal alias.
func (p *Parser) parseAlias() string {
	if p.match(token.AS) {
		if p.check(token.STRING) {
			lit := p.token.Literal
			p.nextToken()
			return lit
		}
		return p.parseIdentifier("alias")
	}
	if p.isImplicitAlias(p.token) {
		lit := p.token.Literal
		p.nextToken()
		return lit
	}
	return ""
}
