package parser_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/parser"
)

func mustDialect(t *testing.T, name string) *dialect.Dialect {
	t.Helper()
	d, err := dialect.Lookup(name)
	require.NoError(t, err)
	return d
}

func parse(t *testing.T, sql, dialectName string) *core.SelectStmt {
	t.Helper()
	stmt, err := parser.Parse(sql, mustDialect(t, dialectName))
	require.NoError(t, err)
	require.NotNil(t, stmt.Body)
	return stmt
}

func firstCore(t *testing.T, stmt *core.SelectStmt) *core.SelectCore {
	t.Helper()
	require.NotNil(t, stmt.Body.Left)
	return stmt.Body.Left
}

// columnParts collects the parts of every column reference in the
// select list, in document order.
func columnParts(sc *core.SelectCore) [][]string {
	var out [][]string
	for _, item := range sc.Columns {
		core.WalkExpr(item.Expr, func(e core.Expr) bool {
			if c, ok := e.(*core.ColumnRef); ok {
				out = append(out, c.Parts)
			}
			return true
		})
	}
	return out
}

// ---------- SELECT core ----------

func TestParseSimpleSelect(t *testing.T) {
	stmt := parse(t, "SELECT a, t.b FROM dbo.orders AS t", dialect.TSQL)
	sc := firstCore(t, stmt)

	assert.Equal(t, [][]string{{"a"}, {"t", "b"}}, columnParts(sc))

	require.NotNil(t, sc.From)
	table, ok := sc.From.Source.(*core.TableName)
	require.True(t, ok)
	assert.Equal(t, "dbo", table.Schema)
	assert.Equal(t, "orders", table.Name)
	assert.Equal(t, "t", table.Alias)
	assert.Empty(t, sc.From.Joins)
}

func TestParseQualifiedTableNames(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		catalog string
		schema  string
		table   string
	}{
		{"bare", "SELECT a FROM t", "", "", "t"},
		{"schema", "SELECT a FROM s.t", "", "s", "t"},
		{"catalog", "SELECT a FROM db.s.t", "db", "s", "t"},
		{"linked server dropped", "SELECT a FROM srv.db.s.t", "db", "s", "t"},
		{"empty schema", "SELECT a FROM db..t", "db", "", "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := firstCore(t, parse(t, tt.sql, dialect.TSQL))
			table, ok := sc.From.Source.(*core.TableName)
			require.True(t, ok)
			assert.Equal(t, tt.catalog, table.Catalog)
			assert.Equal(t, tt.schema, table.Schema)
			assert.Equal(t, tt.table, table.Name)
		})
	}
}

func TestParseQuotedIdentifiersPerDialect(t *testing.T) {
	tests := []struct {
		name     string
		dialect  string
		sql      string
		wantCols [][]string
		wantName string
	}{
		{
			name:     "tsql brackets",
			dialect:  dialect.TSQL,
			sql:      "SELECT [Order Id], o.[Total] FROM [dbo].[Order Lines] o",
			wantCols: [][]string{{"[Order Id]"}, {"o", "[Total]"}},
			wantName: "[Order Lines]",
		},
		{
			name:     "tsql double quotes",
			dialect:  dialect.TSQL,
			sql:      `SELECT "Order Id" FROM "Order Lines"`,
			wantCols: [][]string{{`"Order Id"`}},
			wantName: `"Order Lines"`,
		},
		{
			name:     "mysql backticks",
			dialect:  dialect.MySQL,
			sql:      "SELECT `Order Id` FROM `Order Lines`",
			wantCols: [][]string{{"`Order Id`"}},
			wantName: "`Order Lines`",
		},
		{
			name:     "postgres double quotes",
			dialect:  dialect.Postgres,
			sql:      `SELECT "Col" FROM "Tab"`,
			wantCols: [][]string{{`"Col"`}},
			wantName: `"Tab"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := firstCore(t, parse(t, tt.sql, tt.dialect))
			if diff := cmp.Diff(tt.wantCols, columnParts(sc)); diff != "" {
				t.Errorf("columns mismatch (-want +got):\n%s", diff)
			}
			table, ok := sc.From.Source.(*core.TableName)
			require.True(t, ok)
			assert.Equal(t, tt.wantName, table.Name)
		})
	}
}

func TestParseBracketsRejectedOutsideTSQL(t *testing.T) {
	_, err := parser.Parse("SELECT [a] FROM t", mustDialect(t, dialect.Postgres))
	require.Error(t, err)
}

func TestParseTopAndAssignmentAlias(t *testing.T) {
	sc := firstCore(t, parse(t, "SELECT TOP 10 Total = a + b FROM t", dialect.TSQL))

	top, ok := sc.Top.(*core.Literal)
	require.True(t, ok)
	assert.Equal(t, "10", top.Value)

	require.Len(t, sc.Columns, 1)
	assert.Equal(t, "Total", sc.Columns[0].Alias)
	assert.IsType(t, &core.BinaryExpr{}, sc.Columns[0].Expr)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, columnParts(sc))
}

func TestParseTableHints(t *testing.T) {
	sc := firstCore(t, parse(t, "SELECT a FROM t AS x WITH (NOLOCK) WHERE b = 1", dialect.TSQL))
	table := sc.From.Source.(*core.TableName)
	assert.Equal(t, "x", table.Alias)
	assert.NotNil(t, sc.Where)
}

func TestParseWildcards(t *testing.T) {
	sc := firstCore(t, parse(t, "SELECT *, t.* FROM t", dialect.ANSI))
	require.Len(t, sc.Columns, 2)

	bare, ok := sc.Columns[0].Expr.(*core.StarExpr)
	require.True(t, ok)
	assert.Empty(t, bare.Table)

	qualified, ok := sc.Columns[1].Expr.(*core.StarExpr)
	require.True(t, ok)
	assert.Equal(t, []string{"t"}, qualified.Table)
}

// ---------- JOINs ----------

func TestParseJoins(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		wantType core.JoinType
		wantOn   bool
		wantUse  []string
	}{
		{
			name:     "inner join",
			sql:      "SELECT o.id FROM orders o JOIN customers c ON o.cid = c.id",
			wantType: core.JoinInner,
			wantOn:   true,
		},
		{
			name:     "left outer join",
			sql:      "SELECT o.id FROM orders o LEFT OUTER JOIN customers c ON o.cid = c.id",
			wantType: core.JoinLeft,
			wantOn:   true,
		},
		{
			name:     "full join",
			sql:      "SELECT o.id FROM orders o FULL JOIN customers c ON o.cid = c.id",
			wantType: core.JoinFull,
			wantOn:   true,
		},
		{
			name:     "cross join",
			sql:      "SELECT o.id FROM orders o CROSS JOIN customers c",
			wantType: core.JoinCross,
		},
		{
			name:     "comma join",
			sql:      "SELECT o.id FROM orders o, customers c",
			wantType: core.JoinComma,
		},
		{
			name:     "using",
			sql:      "SELECT * FROM a JOIN b USING (id, region)",
			wantType: core.JoinInner,
			wantUse:  []string{"id", "region"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := firstCore(t, parse(t, tt.sql, dialect.ANSI))
			require.Len(t, sc.From.Joins, 1)
			join := sc.From.Joins[0]
			assert.Equal(t, tt.wantType, join.Type)
			assert.Equal(t, tt.wantOn, join.Condition != nil)
			assert.Equal(t, tt.wantUse, join.Using)
		})
	}
}

func TestParseNaturalJoinRejectsCondition(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM t1 NATURAL JOIN t2 ON t1.id = t2.id",
		"SELECT * FROM t1 NATURAL JOIN t2 USING (id)",
	} {
		_, err := parser.Parse(sql, mustDialect(t, dialect.ANSI))
		require.Error(t, err, sql)
		assert.Contains(t, err.Error(), parser.ErrNaturalWithCondition)
	}
}

func TestParseApply(t *testing.T) {
	sql := "SELECT x.v FROM t CROSS APPLY (SELECT t.a AS v) x OUTER APPLY (SELECT t.b AS w) y"
	sc := firstCore(t, parse(t, sql, dialect.TSQL))
	require.Len(t, sc.From.Joins, 2)

	assert.Equal(t, core.JoinCrossApply, sc.From.Joins[0].Type)
	assert.Equal(t, core.JoinOuterApply, sc.From.Joins[1].Type)

	derived, ok := sc.From.Joins[0].Right.(*core.DerivedTable)
	require.True(t, ok)
	assert.True(t, derived.Lateral)
	assert.Equal(t, "x", derived.Alias)
}

func TestParseApplyRejectedOutsideTSQL(t *testing.T) {
	_, err := parser.Parse("SELECT x.v FROM t CROSS APPLY (SELECT t.a AS v) x", mustDialect(t, dialect.Postgres))
	require.Error(t, err)
}

func TestParseLateral(t *testing.T) {
	sc := firstCore(t, parse(t, "SELECT l.n FROM t, LATERAL (SELECT t.a AS n) l", dialect.Postgres))
	require.Len(t, sc.From.Joins, 1)
	derived, ok := sc.From.Joins[0].Right.(*core.DerivedTable)
	require.True(t, ok)
	assert.True(t, derived.Lateral)
	assert.Equal(t, "l", derived.Alias)
}

func TestParseUnaliasedDerivedTable(t *testing.T) {
	sc := firstCore(t, parse(t, "SELECT x FROM (SELECT 1 AS x)", dialect.ANSI))
	derived, ok := sc.From.Source.(*core.DerivedTable)
	require.True(t, ok)
	assert.Empty(t, derived.Alias)
	require.NotNil(t, derived.Select)
}

// ---------- WITH / set operations ----------

func TestParseRecursiveCTE(t *testing.T) {
	sql := `WITH RECURSIVE r(n) AS (
		SELECT 1
		UNION ALL
		SELECT n + 1 FROM r WHERE n < 5
	)
	SELECT n FROM r`
	stmt := parse(t, sql, dialect.Postgres)

	require.NotNil(t, stmt.With)
	assert.True(t, stmt.With.Recursive)
	require.Len(t, stmt.With.CTEs, 1)

	cte := stmt.With.CTEs[0]
	assert.Equal(t, "r", cte.Name)
	assert.Equal(t, []string{"n"}, cte.Columns)
	require.NotNil(t, cte.Select)
	assert.Equal(t, core.SetOpUnion, cte.Select.Body.Op)
	assert.True(t, cte.Select.Body.All)
	require.NotNil(t, cte.Select.Body.Right)
}

func TestParseMultipleCTEs(t *testing.T) {
	stmt := parse(t, "WITH a AS (SELECT 1 AS x), b AS (SELECT x FROM a) SELECT x FROM b", dialect.ANSI)
	require.Len(t, stmt.With.CTEs, 2)
	assert.Equal(t, "a", stmt.With.CTEs[0].Name)
	assert.Equal(t, "b", stmt.With.CTEs[1].Name)
	assert.False(t, stmt.With.Recursive)
}

func TestParseSetOperations(t *testing.T) {
	stmt := parse(t, "SELECT a FROM x UNION SELECT a FROM y EXCEPT SELECT a FROM z", dialect.ANSI)
	assert.Equal(t, core.SetOpUnion, stmt.Body.Op)
	require.NotNil(t, stmt.Body.Right)
	assert.Equal(t, core.SetOpExcept, stmt.Body.Right.Op)
	require.NotNil(t, stmt.Body.Right.Right)
}

func TestParseMinusDialects(t *testing.T) {
	stmt := parse(t, "SELECT a FROM x MINUS SELECT a FROM y", dialect.Oracle)
	assert.Equal(t, core.SetOpExcept, stmt.Body.Op)
}

func TestParseParenthesizedOperand(t *testing.T) {
	stmt := parse(t, "(SELECT a FROM x) UNION ALL (SELECT a FROM y)", dialect.ANSI)
	require.NotNil(t, stmt.Body.Nested)
	assert.Equal(t, core.SetOpUnion, stmt.Body.Op)
	require.NotNil(t, stmt.Body.Right)
	assert.NotNil(t, stmt.Body.Right.Nested)
}

// ---------- Expressions ----------

func TestParseFunctionForms(t *testing.T) {
	sql := `SELECT COUNT(*), COUNT(DISTINCT a), CAST(b AS VARCHAR(10)),
		DATEADD(day, 1, c), SUBSTRING(d FROM 1 FOR 2), x::int AS y
	FROM t`
	sc := firstCore(t, parse(t, sql, dialect.Postgres))

	require.Len(t, sc.Columns, 6)
	count, ok := sc.Columns[0].Expr.(*core.FuncCall)
	require.True(t, ok)
	assert.True(t, count.Star)

	distinct := sc.Columns[1].Expr.(*core.FuncCall)
	assert.True(t, distinct.Distinct)

	cast := sc.Columns[2].Expr.(*core.CastExpr)
	assert.Equal(t, "VARCHAR(10)", cast.TypeName)

	assert.Equal(t, "y", sc.Columns[5].Alias)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"x"}}, columnParts(sc))
}

func TestParseNiladicFunctions(t *testing.T) {
	sc := firstCore(t, parse(t, "SELECT CURRENT_TIMESTAMP, a FROM t", dialect.ANSI))
	assert.IsType(t, &core.FuncCall{}, sc.Columns[0].Expr)
	assert.Equal(t, [][]string{{"a"}}, columnParts(sc))
}

func TestParseWindowFunctions(t *testing.T) {
	sql := `SELECT SUM(b) OVER (PARTITION BY a ORDER BY c ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW),
		AVG(b) OVER w
	FROM t
	WINDOW w AS (PARTITION BY d)`
	sc := firstCore(t, parse(t, sql, dialect.ANSI))

	sum := sc.Columns[0].Expr.(*core.FuncCall)
	require.NotNil(t, sum.Window)
	assert.Len(t, sum.Window.PartitionBy, 1)
	assert.Len(t, sum.Window.OrderBy, 1)
	require.NotNil(t, sum.Window.Frame)
	assert.Equal(t, "ROWS", sum.Window.Frame.Type)
	assert.Equal(t, "UNBOUNDED PRECEDING", sum.Window.Frame.Start.Type)
	assert.Equal(t, "CURRENT ROW", sum.Window.Frame.End.Type)

	avg := sc.Columns[1].Expr.(*core.FuncCall)
	require.NotNil(t, avg.Window)
	assert.Equal(t, "w", avg.Window.Name)

	require.Len(t, sc.Windows, 1)
	assert.Equal(t, "w", sc.Windows[0].Name)
	assert.Len(t, sc.Windows[0].PartitionBy, 1)
}

func TestParsePredicates(t *testing.T) {
	sql := `SELECT CASE WHEN a > 1 THEN 'x' ELSE b END
	FROM t
	WHERE c IN (SELECT c FROM u) AND NOT EXISTS (SELECT 1 FROM v WHERE v.k = t.k)`
	sc := firstCore(t, parse(t, sql, dialect.ANSI))

	assert.IsType(t, &core.CaseExpr{}, sc.Columns[0].Expr)

	and, ok := sc.Where.(*core.BinaryExpr)
	require.True(t, ok)

	in, ok := and.Left.(*core.InExpr)
	require.True(t, ok)
	assert.NotNil(t, in.Query)

	exists, ok := and.Right.(*core.ExistsExpr)
	require.True(t, ok)
	assert.True(t, exists.Not)
	assert.NotNil(t, core.Subquery(exists))
}

func TestParseOperatorPrecedence(t *testing.T) {
	sc := firstCore(t, parse(t, "SELECT a FROM t WHERE a = 1 OR b = 2 AND c BETWEEN 1 AND 3", dialect.ANSI))
	or, ok := sc.Where.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "OR", or.Op.String())

	and, ok := or.Right.(*core.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "AND", and.Op.String())
	assert.IsType(t, &core.BetweenExpr{}, and.Right)
}

// ---------- Dialect clauses ----------

func TestParseQualify(t *testing.T) {
	sql := `SELECT a, ROW_NUMBER() OVER (PARTITION BY b ORDER BY c DESC) AS rn
	FROM t
	QUALIFY rn = 1`

	sc := firstCore(t, parse(t, sql, dialect.Snowflake))
	assert.NotNil(t, sc.Qualify)

	_, err := parser.Parse(sql, mustDialect(t, dialect.Postgres))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUALIFY")
}

// ---------- Errors ----------

func TestParseErrorPosition(t *testing.T) {
	_, err := parser.Parse("SELECT a\nFROM t\nWHERE", mustDialect(t, dialect.ANSI))
	require.Error(t, err)

	var perr *parser.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Pos.Line)
}

func TestParseRejectsNonQuery(t *testing.T) {
	_, err := parser.Parse("UPDATE t SET a = 1", mustDialect(t, dialect.ANSI))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported statement")
}

func TestParseUnterminatedString(t *testing.T) {
	_, err := parser.Parse("SELECT 'abc FROM t", mustDialect(t, dialect.ANSI))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated string")
}

// ---------- Scripts ----------

func TestParseScriptRecovers(t *testing.T) {
	stmts := parser.ParseScript("SELECT a FROM t; SELEC b FROM u; SELECT c FROM v", mustDialect(t, dialect.ANSI))
	require.Len(t, stmts, 3)

	assert.NoError(t, stmts[0].Err)
	assert.Error(t, stmts[1].Err)
	assert.Nil(t, stmts[1].Stmt)
	assert.Equal(t, "SELEC b FROM u", stmts[1].Text)
	assert.NoError(t, stmts[2].Err)
	assert.Equal(t, 2, stmts[2].Index)
}

func TestParseScriptImplicitBoundary(t *testing.T) {
	stmts := parser.ParseScript("SELECT a FROM t\nSELECT b FROM u", mustDialect(t, dialect.TSQL))
	require.Len(t, stmts, 2)
	assert.Equal(t, "SELECT a FROM t", stmts[0].Text)
	assert.Equal(t, "SELECT b FROM u", stmts[1].Text)
	for _, s := range stmts {
		assert.NoError(t, s.Err)
	}
}
