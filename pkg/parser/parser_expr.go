package parser

import (
	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/token"
)

// Expression parsing with Pratt-style operator precedence.
//
// Grammar:
//
//	expr       → or_expr
//	or_expr    → and_expr (OR and_expr)*
//	and_expr   → not_expr (AND not_expr)*
//	not_expr   → NOT not_expr | comparison
//	comparison → additive ((= | <> | < | > | <= | >=) additive)*
//	           | additive IS [NOT] (NULL | TRUE | FALSE | DISTINCT FROM additive)
//	           | additive [NOT] IN "(" (expr_list | statement) ")"
//	           | additive [NOT] BETWEEN additive AND additive
//	           | additive [NOT] (LIKE | ILIKE) additive [ESCAPE additive]
//	additive   → multiply ((+ | - | ||) multiply)*
//	multiply   → unary ((* | / | %) unary)*
//	unary      → (- | +) unary | postfix
//	postfix    → primary ("::" type_name)*

// Operator precedence levels.
const (
	precedenceLowest     = 0
	precedenceOr         = 1
	precedenceAnd        = 2
	precedenceNot        = 3
	precedenceComparison = 4
	precedenceAddition   = 5
	precedenceMultiply   = 6
	precedenceUnary      = 7
	precedencePostfix    = 8
)

// parseExpression parses an expression.
func (p *Parser) parseExpression() core.Expr {
	return p.parseExpr(precedenceLowest)
}

// parseExpr parses operators binding tighter than minPrec.
func (p *Parser) parseExpr(minPrec int) core.Expr {
	left := p.parsePrefix()
	for !p.failed() {
		prec := p.infixPrecedence()
		if prec <= minPrec {
			break
		}
		left = p.parseInfix(left, prec)
	}
	return left
}

// parsePrefix parses unary prefix operators or a primary expression.
func (p *Parser) parsePrefix() core.Expr {
	start := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		if p.checkPeek(token.EXISTS) {
			p.nextToken()
			e := p.parseExists(start)
			e.Not = true
			return e
		}
		p.nextToken()
		operand := p.parseExpr(precedenceNot)
		return &core.UnaryExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Op: token.NOT, Expr: operand}
	case token.MINUS, token.PLUS:
		op := p.token.Type
		p.nextToken()
		operand := p.parseExpr(precedenceUnary)
		return &core.UnaryExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Op: op, Expr: operand}
	}
	return p.parsePrimary()
}

// infixPrecedence returns the binding power of the current token as an
// infix operator, or precedenceLowest if it is not one.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.OR:
		return precedenceOr
	case token.AND:
		return precedenceAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.IS, token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
		return precedenceComparison
	case token.NOT:
		switch p.peek.Type {
		case token.IN, token.BETWEEN, token.LIKE, token.ILIKE:
			return precedenceComparison
		}
	case token.PLUS, token.MINUS, token.DPIPE:
		return precedenceAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precedenceMultiply
	case token.DCOLON:
		if p.dialect.SupportsDoubleColonCast() {
			return precedencePostfix
		}
	}
	return precedenceLowest
}

// parseInfix parses the operator at the current token with left as its
// left operand.
func (p *Parser) parseInfix(left core.Expr, prec int) core.Expr {
	start := left.Pos()
	switch p.token.Type {
	case token.IS:
		return p.parseIsExpr(left, start)
	case token.IN:
		return p.parseInExpr(left, false, start)
	case token.BETWEEN:
		return p.parseBetweenExpr(left, false, start)
	case token.LIKE, token.ILIKE:
		return p.parseLikeExpr(left, false, start)
	case token.NOT:
		return p.parseNotInfixExpr(left, start)
	case token.DCOLON:
		p.nextToken()
		typeName := p.parseTypeName(false)
		return &core.CastExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Expr: left, TypeName: typeName}
	}

	op := p.token.Type
	p.nextToken()
	right := p.parseExpr(prec)
	return &core.BinaryExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Left: left, Op: op, Right: right}
}

// parseNotInfixExpr parses NOT IN / NOT BETWEEN / NOT LIKE.
func (p *Parser) parseNotInfixExpr(left core.Expr, start token.Position) core.Expr {
	p.expect(token.NOT)
	switch p.token.Type {
	case token.IN:
		return p.parseInExpr(left, true, start)
	case token.BETWEEN:
		return p.parseBetweenExpr(left, true, start)
	default:
		return p.parseLikeExpr(left, true, start)
	}
}

// parseIsExpr parses IS [NOT] NULL | TRUE | FALSE | DISTINCT FROM expr.
func (p *Parser) parseIsExpr(left core.Expr, start token.Position) core.Expr {
	p.expect(token.IS)
	not := p.match(token.NOT)

	switch {
	case p.match(token.NULL):
		return &core.IsNullExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Expr: left, Not: not}
	case p.check(token.TRUE), p.check(token.FALSE):
		lit := p.parsePrimary()
		return &core.BinaryExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Left: left, Op: token.IS, Right: lit}
	case p.match(token.DISTINCT):
		p.expect(token.FROM)
		right := p.parseExpr(precedenceComparison)
		op := token.NE
		if not {
			op = token.EQ
		}
		return &core.BinaryExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}, Left: left, Op: op, Right: right}
	}
	p.addError("expected NULL, TRUE, FALSE or DISTINCT FROM after IS, got " + p.describe(p.token))
	return left
}

// parseInExpr parses IN (values) or IN (subquery).
func (p *Parser) parseInExpr(left core.Expr, not bool, start token.Position) core.Expr {
	p.expect(token.IN)
	in := &core.InExpr{Expr: left, Not: not}
	if !p.expect(token.LPAREN) {
		return in
	}

	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Query = p.parseStatement()
	} else if !p.check(token.RPAREN) {
		in.Values = p.parseExpressionList()
	}
	p.expect(token.RPAREN)
	in.Span = p.makeSpan(start)
	return in
}

// parseBetweenExpr parses BETWEEN low AND high.
func (p *Parser) parseBetweenExpr(left core.Expr, not bool, start token.Position) core.Expr {
	p.expect(token.BETWEEN)
	between := &core.BetweenExpr{Expr: left, Not: not}
	between.Low = p.parseExpr(precedenceComparison)
	p.expect(token.AND)
	between.High = p.parseExpr(precedenceComparison)
	between.Span = p.makeSpan(start)
	return between
}

// parseLikeExpr parses LIKE|ILIKE pattern [ESCAPE e].
func (p *Parser) parseLikeExpr(left core.Expr, not bool, start token.Position) core.Expr {
	like := &core.LikeExpr{Expr: left, Not: not, Op: p.token.Type}
	if !p.match(token.LIKE) && !p.match(token.ILIKE) {
		p.addError("expected LIKE, got " + p.describe(p.token))
		return like
	}
	like.Pattern = p.parseExpr(precedenceComparison)
	if p.match(token.ESCAPE) {
		like.Escape = p.parseExpr(precedenceComparison)
	}
	like.Span = p.makeSpan(start)
	return like
}
