package resolve_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/parser"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

func parseSQL(t *testing.T, sql, dialectName string) *core.SelectStmt {
	t.Helper()
	d, err := dialect.Lookup(dialectName)
	require.NoError(t, err)
	stmt, err := parser.Parse(sql, d)
	require.NoError(t, err)
	return stmt
}

func resolveSQL(t *testing.T, sql, dialectName string, opts resolve.Options) resolve.Result {
	t.Helper()
	res, err := resolve.Resolve(parseSQL(t, sql, dialectName), opts)
	require.NoError(t, err)
	return res
}

func qualified(t *testing.T, sql string) []string {
	t.Helper()
	return resolveSQL(t, sql, dialect.TSQL, resolve.Options{}).Qualified()
}

func TestShadowing(t *testing.T) {
	res := resolveSQL(t,
		"SELECT t.a FROM customers t WHERE EXISTS (SELECT t.b FROM orders t)",
		dialect.ANSI, resolve.Options{})

	assert.Equal(t, []string{"customers.a", "orders.b"}, res.Qualified())
	require.Len(t, res.References, 2)
	assert.NotEqual(t, res.References[0].Scope, res.References[1].Scope)
}

func TestCaseInsensitiveAliases(t *testing.T) {
	res := resolveSQL(t,
		`SELECT T.Col, t.col, "T"."Col", [T].[COL] FROM Customers AS t`,
		dialect.TSQL, resolve.Options{})

	require.Len(t, res.Columns, 4)
	assert.Equal(t, []string{"Customers.Col", "Customers.col", "Customers.Col", "Customers.COL"}, res.Qualified())
	for _, c := range res.Columns[1:] {
		assert.Same(t, res.Columns[0].Owner, c.Owner)
		assert.Equal(t, resolve.AliasResolved, c.Confidence)
	}
}

func TestSingleTableShortcut(t *testing.T) {
	res := resolveSQL(t, "SELECT id FROM orders", dialect.ANSI, resolve.Options{})
	require.Len(t, res.Columns, 1)
	assert.Equal(t, "orders.id", res.Columns[0].Qualified())
	assert.Equal(t, resolve.AliasResolved, res.Columns[0].Confidence)
}

func TestJoinContextDisambiguation(t *testing.T) {
	res := resolveSQL(t,
		"SELECT dept_id FROM employees e JOIN departments d ON e.dept_id = d.id",
		dialect.ANSI, resolve.Options{})

	assert.Equal(t, []string{"employees.dept_id", "employees.dept_id", "departments.id"}, res.Qualified())
	assert.Equal(t, resolve.HeuristicUnqualified, res.Columns[0].Confidence)
}

func TestUnqualifiedHeuristics(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "using list goes to the left side",
			sql:  "SELECT id FROM a JOIN b USING (id)",
			want: []string{"a.id"},
		},
		{
			name: "where predicate",
			sql:  "SELECT name FROM a, b WHERE b.name = 'x'",
			want: []string{"b.name", "b.name"},
		},
		{
			name: "having predicate",
			sql:  "SELECT region FROM a, b GROUP BY a.region HAVING a.region <> ''",
			want: []string{"a.region", "a.region", "a.region"},
		},
		{
			name: "join predicate wins over where",
			sql:  "SELECT k FROM a JOIN b ON b.k = a.id WHERE a.k = 1",
			want: []string{"b.k", "b.k", "a.id", "a.k"},
		},
		{
			name: "no from items",
			sql:  "SELECT x",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSQL(t, tt.sql, dialect.ANSI, resolve.Options{}).Qualified())
		})
	}
}

func TestWildcardsAreFiltered(t *testing.T) {
	for _, sql := range []string{"SELECT t.* FROM t", "SELECT * FROM t"} {
		res := resolveSQL(t, sql, dialect.ANSI, resolve.Options{})
		assert.Empty(t, res.Columns, sql)
		require.Len(t, res.References, 1, sql)
		assert.True(t, res.References[0].Wildcard())
	}
}

func TestCTERoundTrip(t *testing.T) {
	res := resolveSQL(t, "WITH c AS (SELECT id FROM base) SELECT c.id FROM c", dialect.ANSI, resolve.Options{})

	assert.Equal(t, []string{"base.id", "c.id"}, res.Qualified())
	cte, ok := res.Columns[1].Owner.(*resolve.CTERef)
	require.True(t, ok)
	assert.Equal(t, "c", cte.Name)
	assert.False(t, cte.Recursive)
	assert.Equal(t, resolve.QualifiedExact, res.Columns[1].Confidence)
}

func TestCTEVisibility(t *testing.T) {
	t.Run("later CTE sees earlier", func(t *testing.T) {
		res := resolveSQL(t,
			"WITH a AS (SELECT id FROM base), b AS (SELECT a.id FROM a) SELECT b.id FROM b",
			dialect.ANSI, resolve.Options{})
		assert.Equal(t, []string{"base.id", "a.id", "b.id"}, res.Qualified())
		assert.IsType(t, &resolve.CTERef{}, res.Columns[1].Owner)
	})

	t.Run("forward reference is a physical table", func(t *testing.T) {
		res := resolveSQL(t,
			"WITH b AS (SELECT a.id FROM a), a AS (SELECT id FROM base) SELECT b.id FROM b",
			dialect.ANSI, resolve.Options{})
		assert.Equal(t, []string{"a.id", "base.id", "b.id"}, res.Qualified())
		assert.IsType(t, &resolve.Physical{}, res.Columns[0].Owner)
	})

	t.Run("cte body does not see the outer from list", func(t *testing.T) {
		res := resolveSQL(t,
			"WITH c AS (SELECT o.id FROM base) SELECT c.id FROM c JOIN orders o ON o.id = c.id",
			dialect.ANSI, resolve.Options{})
		assert.Equal(t, []string{"c.id", "orders.id", "c.id"}, res.Qualified())
	})
}

func TestRecursiveCTESelfReference(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		sql     string
	}{
		{
			name:    "with recursive",
			dialect: dialect.Postgres,
			sql: `WITH RECURSIVE r(n) AS (
				SELECT 1 AS n
				UNION ALL
				SELECT r.n + 1 FROM r WHERE r.n < 5
			)
			SELECT n FROM r`,
		},
		{
			name:    "tsql recursion without keyword",
			dialect: dialect.TSQL,
			sql: `WITH r AS (
				SELECT 1 AS n
				UNION ALL
				SELECT n + 1 FROM r WHERE n < 5
			)
			SELECT n FROM r`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolveSQL(t, tt.sql, tt.dialect, resolve.Options{})
			assert.Equal(t, []string{"r.n", "r.n", "r.n"}, res.Qualified())

			self, ok := res.Columns[0].Owner.(*resolve.CTERef)
			require.True(t, ok)
			assert.True(t, self.Recursive)

			outer, ok := res.Columns[2].Owner.(*resolve.CTERef)
			require.True(t, ok)
			assert.False(t, outer.Recursive)

			var recursiveArms int
			for _, s := range res.Tree.Scopes() {
				if s.RecursiveCTEBody {
					recursiveArms++
				}
			}
			assert.Equal(t, 1, recursiveArms)
		})
	}
}

func TestAmbiguity(t *testing.T) {
	const sql = "SELECT id FROM customers, orders"

	tests := []struct {
		policy        resolve.FallbackPolicy
		want          []string
		wantAmbiguous bool
	}{
		{policy: resolve.FallbackNone, want: nil},
		{policy: "", want: nil},
		{policy: resolve.FallbackFirstTable, want: []string{"customers.id"}},
		{policy: resolve.FallbackFirstTableFlagged, want: []string{"customers.id"}, wantAmbiguous: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			res := resolveSQL(t, sql, dialect.ANSI, resolve.Options{Fallback: tt.policy})
			assert.Equal(t, tt.want, res.Qualified())
			if len(res.Columns) > 0 {
				assert.Equal(t, resolve.HeuristicUnqualified, res.Columns[0].Confidence)
				assert.Equal(t, tt.wantAmbiguous, res.Columns[0].Ambiguous)
			}
		})
	}
}

func TestIdempotence(t *testing.T) {
	stmt := parseSQL(t, `WITH c AS (SELECT id, v FROM base)
		SELECT c.id, x.v, name
		FROM c
		JOIN (SELECT id, v FROM other) x ON x.id = c.id
		WHERE name IN (SELECT name FROM people p WHERE p.id = c.id)`, dialect.ANSI)

	opts := resolve.Options{Fallback: resolve.FallbackFirstTable}
	first, err := resolve.Resolve(stmt, opts)
	require.NoError(t, err)
	second, err := resolve.Resolve(stmt, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Qualified(), second.Qualified())
	require.Len(t, second.Columns, len(first.Columns))
	for i := range first.Columns {
		assert.Equal(t, first.Columns[i].Confidence, second.Columns[i].Confidence)
	}
}

func TestCorrelatedSubquery(t *testing.T) {
	res := resolveSQL(t,
		"SELECT o.id FROM orders o WHERE EXISTS (SELECT 1 FROM items i WHERE i.order_id = o.id)",
		dialect.ANSI, resolve.Options{})

	assert.Equal(t, []string{"orders.id", "items.order_id", "orders.id"}, res.Qualified())
	require.Len(t, res.References, 3)
	assert.Equal(t, res.References[1].Scope, res.References[2].Scope, "correlated column belongs to the subquery scope")
	assert.NotEqual(t, res.References[0].Scope, res.References[2].Scope)
}

func TestScalarSubquery(t *testing.T) {
	got := qualified(t, "SELECT (SELECT MAX(b.v) FROM b WHERE b.k = a.k) AS m, a.k FROM a")
	assert.Equal(t, []string{"b.v", "b.k", "a.k", "a.k"}, got)
}

func TestSetOperationBranchesAreSiblings(t *testing.T) {
	res := resolveSQL(t, "SELECT a.x FROM a UNION SELECT a.x FROM b", dialect.ANSI, resolve.Options{})
	assert.Equal(t, []string{"a.x"}, res.Qualified())

	root := res.Tree.Scope(0)
	require.NotNil(t, root)
	assert.Empty(t, root.Bindings())
	branches := res.Tree.Children(0)
	require.Len(t, branches, 2)
	for _, id := range branches {
		assert.Equal(t, resolve.ScopeBranch, res.Tree.Scope(id).Kind)
	}
}

func TestLateralAndApply(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		sql     string
		want    []string
	}{
		{
			name:    "cross apply sees left side",
			dialect: dialect.TSQL,
			sql:     "SELECT x.v FROM t CROSS APPLY (SELECT t.a AS v) x",
			want:    []string{"x.v", "t.a"},
		},
		{
			name:    "unqualified inside apply",
			dialect: dialect.TSQL,
			sql:     "SELECT x.v FROM t CROSS APPLY (SELECT a AS v) x",
			want:    []string{"x.v", "t.a"},
		},
		{
			name:    "lateral sees left side",
			dialect: dialect.Postgres,
			sql:     "SELECT l.n FROM t, LATERAL (SELECT t.a AS n) l",
			want:    []string{"l.n", "t.a"},
		},
		{
			name:    "plain derived table does not see siblings",
			dialect: dialect.Postgres,
			sql:     "SELECT d.v FROM t, (SELECT t.a AS v) d",
			want:    []string{"d.v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSQL(t, tt.sql, tt.dialect, resolve.Options{}).Qualified())
		})
	}
}

func TestDerivedTables(t *testing.T) {
	res := resolveSQL(t, "SELECT v FROM (SELECT a AS v FROM t)", dialect.ANSI, resolve.Options{})
	assert.Equal(t, []string{"derived_1.v", "t.a"}, res.Qualified())
	assert.IsType(t, &resolve.Derived{}, res.Columns[0].Owner)

	res = resolveSQL(t, "SELECT s.v FROM (SELECT a AS v FROM t) AS s", dialect.ANSI, resolve.Options{})
	assert.Equal(t, []string{"s.v", "t.a"}, res.Qualified())
	assert.Equal(t, resolve.AliasResolved, res.Columns[0].Confidence)
}

func TestMultipartQualifiers(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
		conf resolve.Confidence
	}{
		{
			name: "schema qualified column",
			sql:  "SELECT dbo.orders.id FROM dbo.orders",
			want: []string{"dbo.orders.id"},
			conf: resolve.QualifiedExact,
		},
		{
			name: "unbound path",
			sql:  "SELECT sales.items.qty FROM dbo.orders",
			want: []string{"sales.items.qty"},
			conf: resolve.QualifiedExact,
		},
		{
			name: "schema mismatch is a different table",
			sql:  "SELECT hr.orders.id FROM dbo.orders",
			want: []string{"hr.orders.id"},
			conf: resolve.QualifiedExact,
		},
		{
			name: "alias to three part name",
			sql:  "SELECT o.id FROM db1.dbo.orders o",
			want: []string{"db1.dbo.orders.id"},
			conf: resolve.AliasResolved,
		},
		{
			name: "bracketed parts",
			sql:  "SELECT [o].[Order Id] FROM [Sales].[Order Lines] AS [o]",
			want: []string{"Sales.Order Lines.Order Id"},
			conf: resolve.AliasResolved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := resolveSQL(t, tt.sql, dialect.TSQL, resolve.Options{})
			assert.Equal(t, tt.want, res.Qualified())
			require.NotEmpty(t, res.Columns)
			assert.Equal(t, tt.conf, res.Columns[0].Confidence)
		})
	}
}

func TestUnresolvedAliasIsDropped(t *testing.T) {
	assert.Empty(t, qualified(t, "SELECT z.a FROM t"))
}

func TestOrderBySelectAlias(t *testing.T) {
	assert.Equal(t, []string{"t.a", "t.b"}, qualified(t, "SELECT a AS total FROM t ORDER BY total, b"))
}

func TestDuplicateAliasKeepsFirst(t *testing.T) {
	res := resolveSQL(t, "SELECT x.a FROM first_table x, second_table x", dialect.ANSI, resolve.Options{})
	assert.Equal(t, []string{"first_table.a"}, res.Qualified())
	assert.Len(t, res.Tree.Scope(0).Bindings(), 1)
}

func TestStructuralErrors(t *testing.T) {
	stmt := &core.SelectStmt{Body: &core.SelectBody{Left: &core.SelectCore{
		Columns: []core.SelectItem{
			{Expr: &core.ColumnRef{}},
			{Expr: &core.ColumnRef{Parts: []string{"a"}}},
		},
		From: &core.FromClause{Source: &core.TableName{Name: "t"}},
	}}}

	res, err := resolve.Resolve(stmt, resolve.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, resolve.ErrStructural))

	var serr *resolve.StructuralError
	require.True(t, errors.As(err, &serr))
	assert.Contains(t, serr.Error(), "column reference has no name")
	assert.Equal(t, []string{"t.a"}, res.Qualified(), "the rest of the statement still resolves")
}

func TestNilStatement(t *testing.T) {
	_, err := resolve.Resolve(nil, resolve.Options{})
	assert.ErrorIs(t, err, resolve.ErrStructural)
}

func TestParseFallbackPolicy(t *testing.T) {
	for _, p := range resolve.FallbackPolicies() {
		got, err := resolve.ParseFallbackPolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	got, err := resolve.ParseFallbackPolicy("")
	require.NoError(t, err)
	assert.Equal(t, resolve.FallbackNone, got)

	_, err = resolve.ParseFallbackPolicy("guess")
	assert.Error(t, err)
}

func TestConfidenceRank(t *testing.T) {
	assert.Greater(t, resolve.QualifiedExact.Rank(), resolve.AliasResolved.Rank())
	assert.Greater(t, resolve.AliasResolved.Rank(), resolve.HeuristicUnqualified.Rank())
	assert.Greater(t, resolve.HeuristicUnqualified.Rank(), resolve.FallbackDefault.Rank())

	c, ok := resolve.ParseConfidence("Alias-Resolved")
	assert.True(t, ok)
	assert.Equal(t, resolve.AliasResolved, c)

	_, ok = resolve.ParseConfidence("certain")
	assert.False(t, ok)
}
