package parser

import (
	"fmt"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/token"
)

// Statement parsing: WITH, set operations, SELECT core clauses.
//
// Grammar:
//
//	statement   → [with_clause] select_body
//	with_clause → WITH [RECURSIVE] cte ("," cte)*
//	cte         → identifier ["(" ident_list ")"] AS ["NOT"] [MATERIALIZED] "(" statement ")"
//	select_list → select_item ("," select_item)*
//	select_item → "*" | qualifier ".*" | [alias "="] expr [[AS] alias]

// parseStatement parses a complete query statement.
func (p *Parser) parseStatement() *core.SelectStmt {
	start := p.token.Pos
	stmt := &core.SelectStmt{}

	if !p.check(token.WITH) && !p.check(token.SELECT) && !p.check(token.LPAREN) {
		p.addError(fmt.Sprintf(ErrUnsupportedStatement, p.describe(p.token)))
		return stmt
	}

	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
	}
	if p.failed() {
		return stmt
	}

	stmt.Body = p.parseSelectBody()
	stmt.Span = p.makeSpan(start)
	return stmt
}

// parseWithClause parses WITH [RECURSIVE] cte_list.
func (p *Parser) parseWithClause() *core.WithClause {
	start := p.token.Pos
	p.expect(token.WITH)

	with := &core.WithClause{}
	with.Recursive = p.match(token.RECURSIVE)

	for {
		cte := p.parseCTE()
		if p.failed() {
			break
		}
		with.CTEs = append(with.CTEs, cte)
		if !p.match(token.COMMA) {
			break
		}
	}

	with.Span = p.makeSpan(start)
	return with
}

// parseCTE parses one common table expression.
func (p *Parser) parseCTE() *core.CTE {
	start := p.token.Pos
	cte := &core.CTE{}
	cte.Name = p.parseIdentifier("CTE name")

	if p.match(token.LPAREN) {
		cte.Columns = p.parseIdentList()
		p.expect(token.RPAREN)
	}

	p.expect(token.AS)
	p.match(token.NOT)
	p.matchWord("materialized")

	p.expect(token.LPAREN)
	if !p.failed() {
		cte.Select = p.parseStatement()
	}
	p.expect(token.RPAREN)

	cte.Span = p.makeSpan(start)
	return cte
}

// parseIdentList parses identifier ("," identifier)*.
func (p *Parser) parseIdentList() []string {
	var names []string
	for {
		name := p.parseIdentifier("identifier")
		if p.failed() {
			return names
		}
		names = append(names, name)
		if !p.match(token.COMMA) {
			return names
		}
	}
}

// parseSelectBody parses an operand and any set operations chained to it.
func (p *Parser) parseSelectBody() *core.SelectBody {
	start := p.token.Pos
	body := &core.SelectBody{}

	if p.check(token.LPAREN) {
		p.nextToken()
		body.Nested = p.parseStatement()
		p.expect(token.RPAREN)
		p.parseTrailingModifiers(body)
	} else {
		body.Left = p.parseSelectCore()
	}
	if p.failed() {
		return body
	}

	switch {
	case p.check(token.UNION):
		body.Op = core.SetOpUnion
	case p.check(token.INTERSECT):
		body.Op = core.SetOpIntersect
	case p.check(token.EXCEPT):
		body.Op = core.SetOpExcept
	case p.check(token.MINUS_KW) && p.dialect.SupportsMinus():
		body.Op = core.SetOpExcept
	default:
		body.Span = p.makeSpan(start)
		return body
	}
	p.nextToken()

	if p.match(token.ALL) {
		body.All = true
	} else {
		p.match(token.DISTINCT)
	}

	body.Right = p.parseSelectBody()
	body.Span = p.makeSpan(start)
	return body
}

// parseTrailingModifiers accepts ORDER BY / LIMIT after a parenthesized
// operand. The ORDER BY keys attach to the operand's last core.
func (p *Parser) parseTrailingModifiers(body *core.SelectBody) {
	if !p.check(token.ORDER) && !p.check(token.LIMIT) && !p.check(token.OFFSET) {
		return
	}
	holder := &core.SelectCore{}
	p.parseOrderLimit(holder)
	if body.Nested != nil && body.Nested.Body != nil {
		last := body.Nested.Body
		for last.Right != nil {
			last = last.Right
		}
		if last.Left != nil && last.Left.OrderBy == nil {
			last.Left.OrderBy = holder.OrderBy
		}
	}
}

// parseSelectCore parses a single SELECT block.
func (p *Parser) parseSelectCore() *core.SelectCore {
	start := p.token.Pos
	sc := &core.SelectCore{}

	if !p.expect(token.SELECT) {
		return sc
	}

	if p.match(token.DISTINCT) {
		sc.Distinct = true
	} else {
		p.match(token.ALL)
	}

	if p.check(token.TOP) && p.dialect.SupportsTop() {
		sc.Top = p.parseTop()
	}

	sc.Columns = p.parseSelectList()
	if p.failed() {
		return sc
	}

	// T-SQL SELECT ... INTO target: the target is written, not read.
	if p.matchWord("into") {
		p.parseTableName()
	}

	if p.match(token.FROM) {
		sc.From = p.parseFromClause()
	}

	if p.match(token.WHERE) {
		sc.Where = p.parseExpression()
	}

	if p.check(token.GROUP) && p.checkPeek(token.BY) {
		p.nextToken()
		p.nextToken()
		if !p.match(token.ALL) {
			sc.GroupBy = p.parseExpressionList()
		}
	}

	if p.match(token.HAVING) {
		sc.Having = p.parseExpression()
	}

	if p.check(token.WINDOW) {
		sc.Windows = p.parseNamedWindows()
	}

	if p.check(token.QUALIFY) {
		if !p.dialect.SupportsQualify() {
			p.addError(fmt.Sprintf(ErrUnsupportedClause, "QUALIFY", p.dialect.Name))
			return sc
		}
		p.nextToken()
		sc.Qualify = p.parseExpression()
	}

	p.parseOrderLimit(sc)

	sc.Span = p.makeSpan(start)
	return sc
}

// parseTop parses TOP n | TOP (expr) [PERCENT] [WITH TIES].
func (p *Parser) parseTop() core.Expr {
	p.expect(token.TOP)
	var n core.Expr
	if p.match(token.LPAREN) {
		n = p.parseExpression()
		p.expect(token.RPAREN)
	} else {
		n = p.parsePrimary()
	}
	p.match(token.PERCENT_KW)
	if p.check(token.WITH) && p.checkPeek(token.TIES) {
		p.nextToken()
		p.nextToken()
	}
	return n
}

// parseOrderLimit parses ORDER BY, LIMIT, OFFSET and FETCH.
func (p *Parser) parseOrderLimit(sc *core.SelectCore) {
	if p.check(token.ORDER) && p.checkPeek(token.BY) {
		p.nextToken()
		p.nextToken()
		sc.OrderBy = p.parseOrderByList()
	}

	if p.match(token.LIMIT) {
		if !p.match(token.ALL) {
			sc.Limit = p.parseExpression()
		}
		// MySQL LIMIT offset, count
		if p.match(token.COMMA) {
			sc.Offset = sc.Limit
			sc.Limit = p.parseExpression()
		}
	}

	if p.match(token.OFFSET) {
		sc.Offset = p.parseExpression()
		if !p.match(token.ROWS) {
			p.match(token.ROW)
		}
	}

	// FETCH FIRST|NEXT n ROWS ONLY
	if p.matchWord("fetch") {
		if !p.match(token.FIRST) {
			p.matchWord("next")
		}
		if !p.check(token.ROWS) && !p.check(token.ROW) {
			sc.Limit = p.parseExpression()
		}
		if !p.match(token.ROWS) {
			p.match(token.ROW)
		}
		if !p.matchWord("only") && p.check(token.WITH) && p.checkPeek(token.TIES) {
			p.nextToken()
			p.nextToken()
		}
	}
}

// parseNamedWindows parses WINDOW name AS (spec) [, ...].
func (p *Parser) parseNamedWindows() []*core.WindowSpec {
	p.expect(token.WINDOW)
	var specs []*core.WindowSpec
	for {
		name := p.parseIdentifier("window name")
		p.expect(token.AS)
		p.expect(token.LPAREN)
		if p.failed() {
			return specs
		}
		spec := p.parseWindowBody()
		spec.Name = name
		specs = append(specs, spec)
		p.expect(token.RPAREN)
		if p.failed() || !p.match(token.COMMA) {
			return specs
		}
	}
}

// parseSelectList parses the projection list.
func (p *Parser) parseSelectList() []core.SelectItem {
	var items []core.SelectItem
	for {
		items = append(items, p.parseSelectItem())
		if p.failed() || !p.match(token.COMMA) {
			return items
		}
	}
}

// parseSelectItem parses one projection.
func (p *Parser) parseSelectItem() core.SelectItem {
	if p.check(token.STAR) {
		start := p.token.Pos
		p.nextToken()
		return core.SelectItem{Expr: &core.StarExpr{NodeInfo: core.NodeInfo{Span: p.makeSpan(start)}}}
	}

	// T-SQL: SELECT Total = a + b
	if p.dialect.SupportsAssignmentAlias() && p.isIdentifier(p.token) && p.checkPeek(token.EQ) {
		alias := p.token.Literal
		p.nextToken()
		p.nextToken()
		return core.SelectItem{Expr: p.parseExpression(), Alias: alias}
	}

	item := core.SelectItem{Expr: p.parseExpression()}
	if _, star := item.Expr.(*core.StarExpr); star {
		return item
	}
	item.Alias = p.parseAlias()
	return item
}

// parseOrderByList parses ORDER BY items.
func (p *Parser) parseOrderByList() []core.OrderByItem {
	var items []core.OrderByItem
	for {
		item := core.OrderByItem{Expr: p.parseExpression()}
		if p.match(token.DESC) {
			item.Desc = true
		} else {
			p.match(token.ASC)
		}
		if p.match(token.NULLS) {
			first := p.check(token.FIRST)
			if !p.match(token.FIRST) {
				p.expect(token.LAST)
			}
			item.NullsFirst = &first
		}
		items = append(items, item)
		if p.failed() || !p.match(token.COMMA) {
			return items
		}
	}
}

// parseExpressionList parses expr ("," expr)*.
func (p *Parser) parseExpressionList() []core.Expr {
	var exprs []core.Expr
	for {
		exprs = append(exprs, p.parseExpression())
		if p.failed() || !p.match(token.COMMA) {
			return exprs
		}
	}
}
