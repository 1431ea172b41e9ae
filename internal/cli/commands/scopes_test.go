package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/colresolve/internal/cli/testutil"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

func TestBuildScopes(t *testing.T) {
	d, ok := dialect.Get(dialect.ANSI)
	require.True(t, ok)

	stmts := BuildScopes("WITH t AS (SELECT id FROM a) SELECT t.id FROM t JOIN (SELECT k FROM b) d ON d.k = t.id; SELECT FROM", d)
	require.Len(t, stmts, 2)

	first := stmts[0]
	assert.Equal(t, 1, first.Statement)
	assert.Empty(t, first.Error)
	require.NotEmpty(t, first.Scopes)

	root := first.Scopes[0]
	assert.Equal(t, resolve.NoScope, root.Parent)
	assert.Equal(t, "root", root.Kind)
	assert.Equal(t, []string{"t"}, root.CTEs)
	assert.Contains(t, root.Bindings, BindingInfo{Alias: "t", Kind: "cte", Target: "t"})
	assert.Contains(t, root.Bindings, BindingInfo{Alias: "d", Kind: "derived", Target: "d"})

	kinds := map[string]bool{}
	for _, s := range first.Scopes {
		kinds[s.Kind] = true
	}
	assert.True(t, kinds["cte"])
	assert.True(t, kinds["derived"])

	assert.Equal(t, 2, stmts[1].Statement)
	assert.NotEmpty(t, stmts[1].Error)
}

func TestDepth(t *testing.T) {
	scopes := []ScopeInfo{
		{ID: 0, Parent: resolve.NoScope},
		{ID: 1, Parent: 0},
		{ID: 2, Parent: 1},
	}
	assert.Equal(t, 0, depth(scopes, scopes[0]))
	assert.Equal(t, 2, depth(scopes, scopes[2]))
}

func TestScopesCommand(t *testing.T) {
	sql := "SELECT o.id FROM dbo.orders o WHERE EXISTS (SELECT 1 FROM dbo.items i WHERE i.order_id = o.id)"

	t.Run("json", func(t *testing.T) {
		stdout, _, err := execute(t, NewScopesCommand(), testConfig("json"), "", sql)
		require.NoError(t, err)

		var got []StatementScopes
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		require.Len(t, got, 1)
		require.Len(t, got[0].Scopes, 2)
		assert.Equal(t, "subquery", got[0].Scopes[1].Kind)
		assert.Equal(t, 0, got[0].Scopes[1].Parent)
		assert.Equal(t, []BindingInfo{{Alias: "i", Kind: "table", Target: "dbo.items"}}, got[0].Scopes[1].Bindings)
	})

	t.Run("text is yaml", func(t *testing.T) {
		stdout, _, err := execute(t, NewScopesCommand(), testConfig("text"), "", sql)
		require.NoError(t, err)

		var got []StatementScopes
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "root", got[0].Scopes[0].Kind)
	})

	t.Run("markdown", func(t *testing.T) {
		stdout, _, err := execute(t, NewScopesCommand(), testConfig("markdown"), "", sql)
		require.NoError(t, err)

		assert.Contains(t, stdout, "# Statement 1")
		assert.Contains(t, stdout, "- **0** root")
		assert.Contains(t, stdout, "  - **1** subquery")
		assert.Contains(t, stdout, "`i` -> table `dbo.items`")
		testutil.AssertValidMarkdown(t, stdout)
	})
}
