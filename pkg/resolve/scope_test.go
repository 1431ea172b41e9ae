package resolve_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/colresolve/internal/testutil"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

func TestBuildScopeKinds(t *testing.T) {
	stmt := parseSQL(t, `WITH c AS (SELECT 1 AS x)
		SELECT d.x FROM (SELECT x FROM c) d
		WHERE d.x IN (SELECT y FROM u)`, dialect.ANSI)

	tree, refs, err := resolve.Build(stmt)
	require.NoError(t, err)
	require.Equal(t, 4, tree.Len())

	kinds := make([]resolve.ScopeKind, tree.Len())
	parents := make([]int, tree.Len())
	for i, s := range tree.Scopes() {
		kinds[i] = s.Kind
		parents[i] = s.Parent
	}
	assert.Equal(t, []resolve.ScopeKind{
		resolve.ScopeRoot, resolve.ScopeCTE, resolve.ScopeDerived, resolve.ScopeSubquery,
	}, kinds)
	assert.Equal(t, []int{resolve.NoScope, 0, 0, 0}, parents)

	root := tree.Scope(0)
	require.Len(t, root.CTEs(), 1)
	assert.Equal(t, "c", root.CTEs()[0].Alias)
	require.Len(t, root.Bindings(), 1)
	assert.Equal(t, "d", root.Bindings()[0].Alias)

	assert.Len(t, refs, 4)
	assert.Nil(t, tree.Scope(99))
	assert.Equal(t, "derived", resolve.ScopeDerived.String())
}

func TestResolveAliasFallbacks(t *testing.T) {
	stmt := parseSQL(t, "SELECT 1 FROM Customers AS Cust", dialect.TSQL)
	tree, _, err := resolve.Build(stmt)
	require.NoError(t, err)
	r := resolve.NewResolver(tree, resolve.Options{})

	tests := []struct {
		name       string
		identifier string
		ok         bool
	}{
		{"exact", "Cust", true},
		{"folded", "CUST", true},
		{"lower", "cust", true},
		{"upper bracketed", "[CUST]", true},
		{"bracketed", "[cust]", true},
		{"quoted", `"Cust"`, true},
		{"stray closer", "cust]", true},
		{"unterminated", "[cust", true},
		{"table name is hidden by alias", "Customers", false},
		{"empty", "", false},
		{"unknown", "orders", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := r.ResolveAlias(0, tt.identifier)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				phys, isPhys := ref.(*resolve.Physical)
				require.True(t, isPhys)
				assert.Equal(t, "Customers", phys.Table)
			}
		})
	}
}

func TestResolveUnqualifiedOwnerKinds(t *testing.T) {
	stmt := parseSQL(t, "SELECT 1 FROM a, b", dialect.ANSI)
	tree, _, err := resolve.Build(stmt)
	require.NoError(t, err)

	owner := resolve.NewResolver(tree, resolve.Options{}).ResolveUnqualified(0, "id")
	assert.Equal(t, resolve.Unresolved, owner.Kind)
	assert.Nil(t, owner.Ref)

	owner = resolve.NewResolver(tree, resolve.Options{Fallback: resolve.FallbackFirstTable}).ResolveUnqualified(0, "id")
	assert.Equal(t, resolve.Single, owner.Kind)
	assert.Equal(t, "a", owner.Ref.Path())

	owner = resolve.NewResolver(tree, resolve.Options{Fallback: resolve.FallbackFirstTableFlagged}).ResolveUnqualified(0, "id")
	assert.Equal(t, resolve.Ambiguous, owner.Kind)
	assert.Equal(t, "a", owner.Ref.Path())
	assert.True(t, owner.Heuristic)

	owner = resolve.NewResolver(tree, resolve.Options{}).ResolveUnqualified(0, "")
	assert.Equal(t, resolve.Unresolved, owner.Kind)
}

func TestTableRefPaths(t *testing.T) {
	assert.Equal(t, "db.dbo.t", (&resolve.Physical{Catalog: "db", Schema: "dbo", Table: "t"}).Path())
	assert.Equal(t, "db.t", (&resolve.Physical{Catalog: "db", Table: "t"}).Path())
	assert.Equal(t, "t", (&resolve.Physical{Table: "t"}).Path())
	assert.Equal(t, "c", (&resolve.CTERef{Name: "c"}).Path())
	assert.Equal(t, "derived_1", (&resolve.Derived{Alias: "derived_1"}).Path())

	col := resolve.ResolvedColumn{Owner: &resolve.Physical{Schema: "s", Table: "t"}, Column: "c"}
	assert.Equal(t, "s.t.c", col.Qualified())
}

func TestQualifyLogsDroppedColumns(t *testing.T) {
	stmt := parseSQL(t, "SELECT id, x.y, a.z FROM a, b", dialect.ANSI)
	tree, refs, err := resolve.Build(stmt)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	logger, records := testutil.NewRecordingLogger(t)
	r := resolve.NewResolver(tree, resolve.Options{Logger: logger})

	var kept []string
	for _, ref := range refs {
		if col, ok := r.Qualify(ref); ok {
			kept = append(kept, col.Qualified())
		}
	}
	assert.Equal(t, []string{"a.z"}, kept)
	assert.Equal(t, []string{"unqualified column dropped", "unresolved alias"}, records.Messages(slog.LevelDebug))
}

func TestQualifyWithoutLogger(t *testing.T) {
	stmt := parseSQL(t, "SELECT id FROM a, b", dialect.ANSI)
	tree, refs, err := resolve.Build(stmt)
	require.NoError(t, err)

	r := resolve.NewResolver(tree, resolve.Options{})
	require.Len(t, refs, 1)
	_, ok := r.Qualify(refs[0])
	assert.False(t, ok)
}
