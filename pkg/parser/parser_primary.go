package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/token"
)

// Primary expression parsing: literals, identifiers, function calls,
// CASE, CAST, EXISTS, parenthesized expressions and subqueries.
//
// Grammar:
//
//	primary     → literal | param | case_expr | cast_expr | exists_expr
//	            | "(" statement ")" | "(" expr ["," expr]* ")"
//	            | name_chain ["." "*"] | name_chain "(" args ")" [func_suffix]
//	func_suffix → [WITHIN GROUP "(" ORDER BY order_list ")"]
//	              [FILTER "(" WHERE expr ")"] [OVER (identifier | "(" window ")")]

// niladic are functions that may be called without parentheses; as bare
// words they must not be read as column names.
var niladic = map[string]bool{
	"current_date":      true,
	"current_time":      true,
	"current_timestamp": true,
	"current_user":      true,
	"current_schema":    true,
	"current_catalog":   true,
	"current_role":      true,
	"localtime":         true,
	"localtimestamp":    true,
	"session_user":      true,
	"system_user":       true,
	"sysdate":           true,
	"systimestamp":      true,
}

// datePartFuncs take an unquoted date part keyword as first argument:
// DATEADD(day, 1, x). The keyword is a literal, not a column.
var datePartFuncs = map[string]bool{
	"dateadd":       true,
	"datediff":      true,
	"datediff_big":  true,
	"datename":      true,
	"datepart":      true,
	"datetrunc":     true,
	"date_part":     true,
	"timestampadd":  true,
	"timestampdiff": true,
}

// intervalUnits may follow an INTERVAL literal: INTERVAL '1' DAY.
var intervalUnits = map[string]bool{
	"year": true, "quarter": true, "month": true, "week": true, "day": true,
	"hour": true, "minute": true, "second": true,
}

// typeContinuations are words that extend a multi-word type name outside
// parentheses: x::double precision.
var typeContinuations = map[string]bool{
	"precision": true, "varying": true, "unsigned": true, "signed": true,
}

// trimSpecs are the optional TRIM direction words.
var trimSpecs = map[string]bool{"leading": true, "trailing": true, "both": true}

// parsePrimary parses a primary expression.
func (p *Parser) parsePrimary() core.Expr {
	start := p.token.Pos
	info := func() core.NodeInfo { return core.NodeInfo{Span: p.makeSpan(start)} }

	switch p.token.Type {
	case token.NUMBER:
		lit := p.token.Literal
		p.nextToken()
		return &core.Literal{NodeInfo: info(), Type: core.LiteralNumber, Value: lit}
	case token.STRING:
		lit := p.token.Literal
		p.nextToken()
		return &core.Literal{NodeInfo: info(), Type: core.LiteralString, Value: lit}
	case token.TRUE, token.FALSE:
		lit := strings.ToUpper(p.token.Literal)
		p.nextToken()
		return &core.Literal{NodeInfo: info(), Type: core.LiteralBool, Value: lit}
	case token.NULL:
		p.nextToken()
		return &core.Literal{NodeInfo: info(), Type: core.LiteralNull, Value: "NULL"}
	case token.PARAM:
		name := p.token.Literal
		p.nextToken()
		return &core.Param{NodeInfo: info(), Name: name}
	case token.CASE:
		return p.parseCaseExpr()
	case token.CAST:
		return p.parseCastExpr()
	case token.EXISTS:
		return p.parseExists(start)
	case token.LPAREN:
		return p.parseParenExpr()
	case token.LEFT, token.RIGHT:
		// LEFT(s, n) / RIGHT(s, n) string functions
		if p.checkPeek(token.LPAREN) {
			name := p.token.Literal
			p.nextToken()
			return p.parseFuncCall(name, start)
		}
	case token.STAR:
		p.nextToken()
		return &core.StarExpr{NodeInfo: info()}
	}

	if p.isIdentifier(p.token) {
		return p.parseIdentifierExpr()
	}

	p.addError("unexpected " + p.describe(p.token) + " in expression")
	return &core.Literal{NodeInfo: info(), Type: core.LiteralNull}
}

// parseIdentifierExpr parses a column reference, qualified star, typed
// literal, or function call.
func (p *Parser) parseIdentifierExpr() core.Expr {
	start := p.token.Pos
	first := p.token.Literal
	lower := strings.ToLower(first)

	// Typed literals: DATE '2024-01-01', INTERVAL '1 day'
	if p.checkPeek(token.STRING) && (lower == "date" || lower == "time" || lower == "timestamp" || lower == "interval") {
		p.nextToken()
		lit := p.token.Literal
		p.nextToken()
		if lower == "interval" && p.token.Type == token.IDENT && intervalUnits[strings.ToLower(p.token.Literal)] {
			p.nextToken() // unit: INTERVAL '1' DAY
		}
		return &core.Literal{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Type: core.LiteralString, Value: lit}
	}

	parts := []string{first}
	p.nextToken()

	for p.check(token.DOT) {
		if p.checkPeek(token.STAR) {
			p.nextToken()
			p.nextToken()
			return &core.StarExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Table: parts}
		}
		p.nextToken()
		if !p.isIdentifier(p.token) {
			p.addError("expected identifier after '.', got " + p.describe(p.token))
			break
		}
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}

	if p.check(token.LPAREN) {
		return p.parseFuncCall(strings.Join(parts, "."), start)
	}

	if len(parts) == 1 && niladic[lower] {
		return &core.FuncCall{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Name: first}
	}

	return &core.ColumnRef{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Parts: parts}
}

// parseFuncCall parses a function call after its name.
func (p *Parser) parseFuncCall(name string, start token.Position) *core.FuncCall {
	fn := &core.FuncCall{Name: name}
	lower := strings.ToLower(name)
	p.expect(token.LPAREN)

	switch {
	case p.check(token.STAR):
		p.nextToken()
		fn.Star = true
	case p.check(token.RPAREN):
	case lower == "extract":
		p.parseExtractArgs(fn)
	case lower == "convert" || lower == "try_convert":
		p.parseConvertArgs(fn)
	default:
		if p.match(token.DISTINCT) {
			fn.Distinct = true
		} else {
			p.match(token.ALL)
		}
		if lower == "trim" && p.isIdentifier(p.token) && trimSpecs[strings.ToLower(p.token.Literal)] {
			p.nextToken()
			if p.match(token.FROM) {
				fn.Args = append(fn.Args, p.parseExpression())
				break
			}
		}
		if datePartFuncs[lower] && p.isIdentifier(p.token) && p.checkPeek(token.COMMA) {
			fn.Args = append(fn.Args, &core.Literal{Type: core.LiteralString, Value: p.token.Literal})
			p.nextToken()
			p.nextToken()
		}
		p.parseFuncArgs(fn, lower)
	}
	p.expect(token.RPAREN)

	p.parseFuncSuffix(fn)
	fn.Span = p.makeSpan(start)
	return fn
}

// parseFuncArgs parses the argument list. SUBSTRING(x FROM a FOR b),
// POSITION(a IN b), TRIM(c FROM s) and in-call ORDER BY are accepted.
func (p *Parser) parseFuncArgs(fn *core.FuncCall, name string) {
	prec := precedenceLowest
	if name == "position" {
		// keep IN available as the separator
		prec = precedenceComparison
	}
	for !p.failed() {
		fn.Args = append(fn.Args, p.parseExpr(prec))
		switch {
		case p.match(token.COMMA), p.match(token.FROM), p.matchWord("for"), p.match(token.IN):
			continue
		case p.check(token.ORDER) && p.checkPeek(token.BY):
			p.nextToken()
			p.nextToken()
			fn.WithinGroup = p.parseOrderByList()
		case p.matchWord("ignore"), p.matchWord("respect"):
			p.expect(token.NULLS)
		case p.match(token.AS):
			// CAST-like helpers: TRY_CAST(x AS t), SAFE_CAST(x AS t)
			p.parseTypeName(true)
		}
		return
	}
}

// parseExtractArgs parses EXTRACT(part FROM expr).
func (p *Parser) parseExtractArgs(fn *core.FuncCall) {
	if p.isIdentifier(p.token) || p.check(token.STRING) {
		fn.Args = append(fn.Args, &core.Literal{Type: core.LiteralString, Value: p.token.Literal})
		p.nextToken()
	}
	p.expect(token.FROM)
	fn.Args = append(fn.Args, p.parseExpression())
}

// parseConvertArgs parses CONVERT(type, expr [, style]).
func (p *Parser) parseConvertArgs(fn *core.FuncCall) {
	p.parseTypeName(true)
	if !p.expect(token.COMMA) {
		return
	}
	fn.Args = append(fn.Args, p.parseExpression())
	for p.match(token.COMMA) {
		fn.Args = append(fn.Args, p.parseExpression())
	}
}

// parseFuncSuffix parses WITHIN GROUP, FILTER and OVER after a call.
func (p *Parser) parseFuncSuffix(fn *core.FuncCall) {
	if p.check(token.WITHIN) && p.checkPeek(token.GROUP) {
		p.nextToken()
		p.nextToken()
		p.expect(token.LPAREN)
		if p.check(token.ORDER) && p.checkPeek(token.BY) {
			p.nextToken()
			p.nextToken()
			fn.WithinGroup = p.parseOrderByList()
		}
		p.expect(token.RPAREN)
	}

	if p.check(token.FILTER) && p.checkPeek(token.LPAREN) {
		p.nextToken()
		p.nextToken()
		p.expect(token.WHERE)
		fn.Filter = p.parseExpression()
		p.expect(token.RPAREN)
	}

	if p.match(token.OVER) {
		if p.isIdentifier(p.token) {
			fn.Window = &core.WindowSpec{Name: p.token.Literal}
			p.nextToken()
			return
		}
		p.expect(token.LPAREN)
		if p.failed() {
			return
		}
		fn.Window = p.parseWindowBody()
		p.expect(token.RPAREN)
	}
}

// parseWindowBody parses the inside of OVER (...) or WINDOW w AS (...).
func (p *Parser) parseWindowBody() *core.WindowSpec {
	spec := &core.WindowSpec{}
	if p.isIdentifier(p.token) && !p.check(token.PARTITION) && !p.check(token.ROWS) &&
		!p.check(token.RANGE) && !p.checkWord("groups") {
		spec.Name = p.token.Literal
		p.nextToken()
	}
	if p.check(token.PARTITION) && p.checkPeek(token.BY) {
		p.nextToken()
		p.nextToken()
		spec.PartitionBy = p.parseExpressionList()
	}
	if p.check(token.ORDER) && p.checkPeek(token.BY) {
		p.nextToken()
		p.nextToken()
		spec.OrderBy = p.parseOrderByList()
	}
	if p.check(token.ROWS) || p.check(token.RANGE) || p.checkWord("groups") {
		spec.Frame = p.parseFrameSpec()
	}
	return spec
}

// parseFrameSpec parses ROWS|RANGE|GROUPS [BETWEEN] bound [AND bound].
func (p *Parser) parseFrameSpec() *core.FrameSpec {
	frame := &core.FrameSpec{Type: strings.ToUpper(p.token.Literal)}
	p.nextToken()
	if p.match(token.BETWEEN) {
		frame.Start = p.parseFrameBound()
		p.expect(token.AND)
		frame.End = p.parseFrameBound()
		return frame
	}
	frame.Start = p.parseFrameBound()
	return frame
}

// parseFrameBound parses one frame bound.
func (p *Parser) parseFrameBound() *core.FrameBound {
	switch {
	case p.match(token.UNBOUNDED):
		if p.match(token.PRECEDING) {
			return &core.FrameBound{Type: "UNBOUNDED PRECEDING"}
		}
		p.expect(token.FOLLOWING)
		return &core.FrameBound{Type: "UNBOUNDED FOLLOWING"}
	case p.match(token.CURRENT):
		p.expect(token.ROW)
		return &core.FrameBound{Type: "CURRENT ROW"}
	}
	offset := p.parseExpr(precedenceComparison)
	if p.match(token.PRECEDING) {
		return &core.FrameBound{Type: "EXPR PRECEDING", Offset: offset}
	}
	p.expect(token.FOLLOWING)
	return &core.FrameBound{Type: "EXPR FOLLOWING", Offset: offset}
}

// parseCaseExpr parses CASE [operand] WHEN ... THEN ... [ELSE ...] END.
func (p *Parser) parseCaseExpr() core.Expr {
	start := p.token.Pos
	p.expect(token.CASE)
	c := &core.CaseExpr{}
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(token.WHEN) {
		w := core.WhenClause{Condition: p.parseExpression()}
		p.expect(token.THEN)
		w.Result = p.parseExpression()
		c.Whens = append(c.Whens, w)
		if p.failed() {
			return c
		}
	}
	if len(c.Whens) == 0 {
		p.addError("CASE requires at least one WHEN")
		return c
	}
	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(token.END)
	c.Span = p.makeSpan(start)
	return c
}

// parseCastExpr parses CAST(expr AS type).
func (p *Parser) parseCastExpr() core.Expr {
	start := p.token.Pos
	p.expect(token.CAST)
	c := &core.CastExpr{}
	p.expect(token.LPAREN)
	c.Expr = p.parseExpression()
	p.expect(token.AS)
	c.TypeName = p.parseTypeName(true)
	p.expect(token.RPAREN)
	c.Span = p.makeSpan(start)
	return c
}

// parseTypeName parses a type name. Inside parentheses (bounded) every
// word up to the closing ")" or "," belongs to the type; after "::" only
// known continuation words do, so a following implicit alias survives.
// Type names are never resolved, so the raw text is kept.
func (p *Parser) parseTypeName(bounded bool) string {
	if !p.isIdentifier(p.token) {
		p.addError("expected type name, got " + p.describe(p.token))
		return ""
	}
	var sb strings.Builder
	sb.WriteString(p.token.Literal)
	p.nextToken()

	for !p.failed() {
		switch {
		case p.check(token.DOT):
			p.nextToken()
			sb.WriteByte('.')
			sb.WriteString(p.parseIdentifier("type name"))
		case p.check(token.LPAREN):
			p.readBalanced(&sb)
		case bounded && !p.check(token.RPAREN) && !p.check(token.COMMA) && !p.check(token.EOF):
			sb.WriteByte(' ')
			sb.WriteString(p.token.Literal)
			p.nextToken()
		case p.token.Type == token.IDENT && typeContinuations[strings.ToLower(p.token.Literal)]:
			sb.WriteByte(' ')
			sb.WriteString(p.token.Literal)
			p.nextToken()
		default:
			return sb.String()
		}
	}
	return sb.String()
}

// readBalanced appends a parenthesized token run, such as (10, 2).
func (p *Parser) readBalanced(sb *strings.Builder) {
	depth := 0
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		}
		sb.WriteString(p.token.Literal)
		p.nextToken()
		if depth == 0 {
			return
		}
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, p.describe(p.token), token.RPAREN))
}

// parseExists parses EXISTS (subquery). The caller handles a leading NOT.
func (p *Parser) parseExists(start token.Position) *core.ExistsExpr {
	p.expect(token.EXISTS)
	e := &core.ExistsExpr{}
	p.expect(token.LPAREN)
	if p.failed() {
		return e
	}
	e.Select = p.parseStatement()
	p.expect(token.RPAREN)
	e.Span = p.makeSpan(start)
	return e
}

// parseParenExpr parses a subquery, a tuple or a parenthesized expression.
func (p *Parser) parseParenExpr() core.Expr {
	start := p.token.Pos
	p.expect(token.LPAREN)

	if p.check(token.SELECT) || p.check(token.WITH) {
		sub := &core.SubqueryExpr{}
		sub.Select = p.parseStatement()
		p.expect(token.RPAREN)
		sub.Span = p.makeSpan(start)
		return sub
	}

	first := p.parseExpression()
	if p.check(token.COMMA) {
		tuple := &core.TupleExpr{Items: []core.Expr{first}}
		for p.match(token.COMMA) {
			tuple.Items = append(tuple.Items, p.parseExpression())
		}
		p.expect(token.RPAREN)
		tuple.Span = p.makeSpan(start)
		return tuple
	}
	p.expect(token.RPAREN)
	return &core.ParenExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Expr: first}
}
