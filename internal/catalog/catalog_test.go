package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/colresolve/internal/extract"
	"github.com/leapstack-labs/colresolve/internal/testutil"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(testutil.NewTestLogger(t))
	require.NoError(t, s.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func col(table, column string, c resolve.Confidence) resolve.ResolvedColumn {
	return resolve.ResolvedColumn{Owner: &resolve.Physical{Schema: "dbo", Table: table}, Column: column, Confidence: c}
}

func sampleResults() []extract.FileResult {
	return []extract.FileResult{
		{
			Path: "Sales__Finance.sql", Report: "Sales", Dataset: "Finance", Dialect: "tsql",
			Columns: []resolve.ResolvedColumn{
				col("Customers", "id", resolve.QualifiedExact),
				col("Orders", "total", resolve.AliasResolved),
			},
		},
		{
			Path: "Ops.sql", Report: "Ops", Dataset: "Default", Dialect: "tsql", Fallback: true,
			Columns: []resolve.ResolvedColumn{col("Customers", "id", resolve.FallbackDefault)},
		},
		{Path: "empty.sql", Report: "empty", Dataset: "Default"},
	}
}

func TestStore_Migrate(t *testing.T) {
	s := setupTestStore(t)
	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	for _, table := range []string{"runs", "files", "column_refs"} {
		rows, err := s.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, table)
		_ = rows.Close()
	}
	// migrating twice is a no-op
	require.NoError(t, s.Migrate(context.Background()))
}

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	run, err := s.SaveRun(ctx, "tsql", sampleResults())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 3, run.Files)
	assert.Equal(t, 2, run.Successful)
	assert.Equal(t, 1, run.ZeroColumns)
	assert.Equal(t, 3, run.Columns)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	latest, err := s.GetRun(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)

	refs, err := s.ColumnsForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, ColumnRef{
		RunID: run.ID, Path: "Sales__Finance.sql", Report: "Sales", Dataset: "Finance",
		Column: "dbo.Customers.id", Confidence: "qualified-exact",
	}, refs[0])
	assert.Equal(t, "dbo.Orders.total", refs[1].Column)
	assert.Equal(t, "fallback-default", refs[2].Confidence)

	second, err := s.SaveRun(ctx, "tsql", sampleResults()[:1])
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	found, err := s.FindColumn(ctx, "DBO.customers.ID")
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, second.ID, found[0].RunID)

	require.NoError(t, s.DeleteRun(ctx, run.ID))
	refs, err = s.ColumnsForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = s.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestStore_EmptyCatalog(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetRun(context.Background(), "")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStore_NotOpen(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	_, err := s.SaveRun(ctx, "", nil)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.GetRun(ctx, "x")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.ListRuns(ctx, 0)
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.ColumnsForRun(ctx, "x")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = s.FindColumn(ctx, "t.a")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.DeleteRun(ctx, "x"), ErrNotOpen)
	assert.ErrorIs(t, s.Migrate(ctx), ErrNotOpen)
	assert.NoError(t, s.Close())
}

func TestStore_SaveRunRollsBack(t *testing.T) {
	errBoom := errors.New("disk full")

	tests := []struct {
		name    string
		results []extract.FileResult
		setup   func(mock sqlmock.Sqlmock)
	}{
		{
			name:    "run insert fails",
			results: sampleResults()[:1],
			setup:   func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO runs").WillReturnError(errBoom)
				mock.ExpectRollback()
			},
		},
		{
			name:    "column insert fails",
			results: sampleResults()[:1],
			setup:   func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("INSERT INTO files").WillReturnResult(sqlmock.NewResult(7, 1))
				mock.ExpectExec("INSERT INTO column_refs").WillReturnError(errBoom)
				mock.ExpectRollback()
			},
		},
		{
			name:  "commit fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit().WillReturnError(errBoom)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setup(mock)

			s := New(nil)
			s.OpenDB(db)
			_, err = s.SaveRun(context.Background(), "tsql", tt.results)
			require.Error(t, err)
			assert.ErrorIs(t, err, errBoom)
		})
	}
}

func TestStore_ListRunsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnError(errors.New("locked"))

	s := New(nil)
	s.OpenDB(db)
	_, err = s.ListRuns(context.Background(), 5)
	assert.ErrorContains(t, err, "failed to list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
