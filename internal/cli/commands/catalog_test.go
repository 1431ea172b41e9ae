package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/colresolve/internal/catalog"
	"github.com/leapstack-labs/colresolve/internal/cli/config"
	"github.com/leapstack-labs/colresolve/internal/cli/testutil"
)

// seedCatalog runs extract twice into a fresh catalog.
func seedCatalog(t *testing.T) *config.Config {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	cfg := testConfig("json")
	cfg.Output = filepath.Join(dir, "out")
	cfg.CatalogPath = filepath.Join(dir, "state", "runs.db")

	for range 2 {
		_, _, err := execute(t, NewExtractCommand(), cfg, "", filepath.Join(dir, "reports"))
		require.NoError(t, err)
	}
	return cfg
}

func TestCatalogCommands(t *testing.T) {
	cfg := seedCatalog(t)

	stdout, _, err := execute(t, NewCatalogCommand(), cfg, "", "list")
	require.NoError(t, err)
	var runs []catalog.Run
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].Files)
	assert.Equal(t, "auto", runs[0].Dialect)

	stdout, _, err = execute(t, NewCatalogCommand(), cfg, "", "list", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	assert.Len(t, runs, 1)
	latest := runs[0].ID
	want := runs[0].Columns

	stdout, _, err = execute(t, NewCatalogCommand(), cfg, "", "columns")
	require.NoError(t, err)
	var refs []catalog.ColumnRef
	require.NoError(t, json.Unmarshal([]byte(stdout), &refs))
	require.NotEmpty(t, refs)
	assert.Len(t, refs, want)
	for _, ref := range refs {
		assert.Equal(t, latest, ref.RunID)
	}

	stdout, _, err = execute(t, NewCatalogCommand(), cfg, "", "find", "DBO.ORDERS.TOTAL")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &refs))
	require.Len(t, refs, 2)
	assert.Equal(t, "Sales", refs[0].Report)
	assert.Equal(t, "dbo.orders.total", refs[0].Column)

	_, _, err = execute(t, NewCatalogCommand(), cfg, "", "delete", latest)
	require.NoError(t, err)

	_, _, err = execute(t, NewCatalogCommand(), cfg, "", "columns", latest)
	assert.ErrorIs(t, err, catalog.ErrRunNotFound)
}

func TestCatalogCommands_Markdown(t *testing.T) {
	cfg := seedCatalog(t)
	cfg.Mode = "markdown"

	stdout, _, err := execute(t, NewCatalogCommand(), cfg, "", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Runs (2)")
	testutil.AssertValidMarkdown(t, stdout)

	stdout, _, err = execute(t, NewCatalogCommand(), cfg, "", "find", "dbo.customers.name")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# dbo.customers.name (2)")
	assert.Contains(t, stdout, "| Sales | Finance | dbo.customers.name |")
}

func TestCatalogCommands_NoCatalog(t *testing.T) {
	_, _, err := execute(t, NewCatalogCommand(), testConfig("json"), "", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no catalog configured")
}
