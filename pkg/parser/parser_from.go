package parser

import (
	"strings"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/token"
)

// FROM clause parsing: table references, derived tables, lateral joins, JOINs.
//
// Grammar:
//
//	from_clause   → table_ref (join)*
//	table_ref     → table_name | derived_table | lateral_table | func_table
//	table_name    → [[server "."] catalog "."] [schema "."] identifier [AS identifier] [hint]
//	derived_table → "(" statement ")" [AS] identifier ["(" ident_list ")"]
//	lateral_table → LATERAL (derived_table | func_table)
//	func_table    → name "(" args ")" [AS] identifier
//	join          → [NATURAL] join_type JOIN table_ref [ON expr | USING "(" ident_list ")"]
//	              | (CROSS | OUTER) APPLY table_ref
//	              | "," table_ref
//	join_type     → [INNER] | LEFT [OUTER] | RIGHT [OUTER] | FULL [OUTER] | CROSS

// parseFromClause parses the FROM clause.
func (p *Parser) parseFromClause() *core.FromClause {
	start := p.token.Pos
	from := &core.FromClause{}
	from.Source = p.parseTableRef()

	for !p.failed() {
		join := p.parseJoin()
		if join == nil {
			break
		}
		from.Joins = append(from.Joins, join)
	}

	from.Span = p.makeSpan(start)
	return from
}

// parseTableRef parses a table reference.
func (p *Parser) parseTableRef() core.TableRef {
	if p.match(token.LATERAL) {
		ref := p.parseTableRef()
		switch r := ref.(type) {
		case *core.DerivedTable:
			r.Lateral = true
		case *core.FuncTable:
			r.Lateral = true
		}
		return ref
	}

	if p.check(token.LPAREN) {
		if p.checkPeek(token.SELECT) || p.checkPeek(token.WITH) || p.checkPeek(token.LPAREN) {
			return p.parseDerivedTable()
		}
		p.addError(ErrParenthesizedJoin)
		return &core.DerivedTable{}
	}

	return p.parseTableName()
}

// parseTableName parses a table name with optional schema/catalog, or a
// table-valued function call when the name is followed by "(".
func (p *Parser) parseTableName() core.TableRef {
	start := p.token.Pos

	if !p.isIdentifier(p.token) {
		p.addError("expected table name, got " + p.describe(p.token))
		return &core.TableName{}
	}

	// Parse potentially qualified name. T-SQL allows db..table (empty schema).
	parts := []string{p.token.Literal}
	p.nextToken()
	for p.match(token.DOT) {
		if p.check(token.DOT) {
			parts = append(parts, "")
			continue
		}
		parts = append(parts, p.parseIdentifier("identifier"))
		if p.failed() {
			return &core.TableName{}
		}
	}

	if p.check(token.LPAREN) {
		fn := p.parseFuncCall(strings.Join(parts, "."), start)
		ft := &core.FuncTable{Func: fn}
		ft.Alias = p.parseAlias()
		p.skipColumnAliases()
		ft.Span = p.makeSpan(start)
		return ft
	}

	table := &core.TableName{}
	// Four-part names carry a linked server first; it does not take part
	// in resolution.
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	switch len(parts) {
	case 1:
		table.Name = parts[0]
	case 2:
		table.Schema = parts[0]
		table.Name = parts[1]
	case 3:
		table.Catalog = parts[0]
		table.Schema = parts[1]
		table.Name = parts[2]
	}

	table.Alias = p.parseAlias()
	p.skipColumnAliases()
	p.skipTableHints()
	table.Span = p.makeSpan(start)
	return table
}

// parseDerivedTable parses a derived table (subquery in FROM).
func (p *Parser) parseDerivedTable() *core.DerivedTable {
	start := p.token.Pos
	p.expect(token.LPAREN)
	derived := &core.DerivedTable{}
	derived.Select = p.parseStatement()
	p.expect(token.RPAREN)
	if p.failed() {
		return derived
	}

	derived.Alias = p.parseAlias()
	p.skipColumnAliases()
	derived.Span = p.makeSpan(start)
	return derived
}

// skipColumnAliases consumes an alias column list: t(a, b).
func (p *Parser) skipColumnAliases() {
	if p.check(token.LPAREN) && p.isIdentifier(p.peek) {
		p.nextToken()
		p.parseIdentList()
		p.expect(token.RPAREN)
	}
}

// skipTableHints consumes T-SQL table hints: WITH (NOLOCK, INDEX(ix)).
func (p *Parser) skipTableHints() {
	if !p.check(token.WITH) || !p.checkPeek(token.LPAREN) || !p.dialect.SupportsTableHints() {
		return
	}
	p.nextToken()
	depth := 0
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		}
		p.nextToken()
		if depth == 0 {
			return
		}
	}
}

// parseJoin parses a JOIN clause. Returns nil if no join follows.
func (p *Parser) parseJoin() *core.Join {
	start := p.token.Pos

	if p.match(token.COMMA) {
		join := &core.Join{Type: core.JoinComma}
		join.Right = p.parseTableRef()
		join.Span = p.makeSpan(start)
		return join
	}

	// CROSS APPLY / OUTER APPLY
	if (p.check(token.CROSS) || p.check(token.OUTER)) && p.checkPeek(token.APPLY) && p.dialect.SupportsApply() {
		join := &core.Join{Type: core.JoinCrossApply}
		if p.check(token.OUTER) {
			join.Type = core.JoinOuterApply
		}
		p.nextToken()
		p.nextToken()
		join.Right = p.parseTableRef()
		switch r := join.Right.(type) {
		case *core.DerivedTable:
			r.Lateral = true
		case *core.FuncTable:
			r.Lateral = true
		}
		join.Span = p.makeSpan(start)
		return join
	}

	natural := p.match(token.NATURAL)

	var joinType core.JoinType
	switch {
	case p.match(token.INNER):
		joinType = core.JoinInner
	case p.match(token.LEFT):
		p.match(token.OUTER)
		joinType = core.JoinLeft
	case p.match(token.RIGHT):
		p.match(token.OUTER)
		joinType = core.JoinRight
	case p.match(token.FULL):
		p.match(token.OUTER)
		joinType = core.JoinFull
	case p.match(token.CROSS):
		joinType = core.JoinCross
	case p.check(token.JOIN):
		joinType = core.JoinInner
	default:
		if natural {
			p.addError("expected JOIN after NATURAL")
		}
		return nil
	}

	if !p.expect(token.JOIN) {
		return nil
	}

	join := &core.Join{Type: joinType, Natural: natural}
	join.Right = p.parseTableRef()
	if p.failed() {
		return join
	}

	p.parseJoinCondition(join)
	join.Span = p.makeSpan(start)
	return join
}

// parseJoinCondition parses ON expr or USING (cols).
func (p *Parser) parseJoinCondition(join *core.Join) {
	switch {
	case p.match(token.ON):
		if join.Natural {
			p.addError(ErrNaturalWithCondition)
			return
		}
		join.Condition = p.parseExpression()
	case p.match(token.USING):
		if join.Natural {
			p.addError(ErrNaturalWithCondition)
			return
		}
		p.expect(token.LPAREN)
		join.Using = p.parseIdentList()
		p.expect(token.RPAREN)
	}
}
