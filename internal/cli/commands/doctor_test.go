package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/colresolve/internal/cli/config"
	"github.com/leapstack-labs/colresolve/internal/cli/testutil"
	"github.com/leapstack-labs/colresolve/internal/extract"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{name: "no checks returns 100", want: 100},
		{
			name: "all passing returns 100",
			checks: []HealthCheck{
				{ID: "parse", Status: checkPass},
				{ID: "columns", Status: checkPass},
			},
			want: 100,
		},
		{
			name: "warnings cost 10 each",
			checks: []HealthCheck{
				{ID: "columns", Status: checkWarn, IssueCount: 3},
				{ID: "token-fallback", Status: checkWarn, IssueCount: 1},
			},
			want: 80,
		},
		{
			name:   "errors cost 25 each",
			checks: []HealthCheck{{ID: "parse", Status: checkFail, IssueCount: 2}},
			want:   75,
		},
		{
			name: "many failures clamp to 0",
			checks: []HealthCheck{
				{Status: checkFail}, {Status: checkFail}, {Status: checkFail},
				{Status: checkFail}, {Status: checkFail},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	checks := []HealthCheck{
		{ID: "parse", IssueCount: 1},
		{ID: "columns", IssueCount: 0},
		{ID: "token-fallback", IssueCount: 2},
		{ID: "unknown", IssueCount: 1},
	}
	recs := generateRecommendations(checks)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "dialect")
	assert.Contains(t, recs[1], "token scan")
}

func TestCheckSources(t *testing.T) {
	results := []extract.FileResult{
		{Path: "ok.sql", Columns: make([]resolve.ResolvedColumn, 1)},
		{Path: "broken.sql", Errors: []extract.ErrorDetail{{Error: "unexpected token\nline 2"}}},
		{Path: "star.sql", Wildcards: 1},
		{Path: "scan.sql", Columns: make([]resolve.ResolvedColumn, 1), Fallback: true},
	}

	checks := checkSources(results)
	require.Len(t, checks, 3)

	parsed, columns, fallback := checks[0], checks[1], checks[2]
	assert.Equal(t, checkFail, parsed.Status)
	assert.Equal(t, []string{"broken.sql: unexpected token"}, parsed.Details)
	assert.Equal(t, checkWarn, columns.Status)
	assert.Equal(t, 1, columns.IssueCount)
	assert.Contains(t, columns.Details[0], "wildcard")
	assert.Equal(t, checkWarn, fallback.Status)
	assert.Equal(t, 1, fallback.IssueCount)
}

func TestProbeWritable(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, probeWritable(dir))
	assert.NoError(t, probeWritable(filepath.Join(dir, "not", "yet")))

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.Error(t, probeWritable(file))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "probe file should be removed")
}

func TestDoctor_JSON(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	cfg := testConfig("json")
	cfg.Output = filepath.Join(dir, "out")
	cfg.CatalogPath = filepath.Join(dir, "runs.db")

	stdout, _, err := execute(t, NewDoctorCommand(), cfg, "", filepath.Join(dir, "reports"))
	require.NoError(t, err)

	var got DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, 3, got.Summary.Files)
	assert.Equal(t, 2, got.Summary.Successful)

	byID := make(map[string]HealthCheck)
	for _, c := range got.HealthChecks {
		byID[c.ID] = c
	}
	assert.Equal(t, checkWarn, byID["config-file"].Status)
	assert.Equal(t, checkPass, byID["config-valid"].Status)
	assert.Equal(t, checkPass, byID["sql-files"].Status)
	assert.Equal(t, checkPass, byID["parse"].Status)
	assert.Equal(t, checkWarn, byID["columns"].Status)
	assert.Equal(t, checkPass, byID["output-writable"].Status)
	assert.Equal(t, checkPass, byID["catalog"].Status)
	assert.Equal(t, 80, got.Score)
	assert.NotEmpty(t, got.Recommendations)

	// doctor never writes the listing
	assert.NoFileExists(t, filepath.Join(dir, "out", "columns.csv"))
}

func TestDoctor_NoFiles(t *testing.T) {
	cfg := testConfig("json")
	cfg.Output = filepath.Join(t.TempDir(), "out")

	stdout, _, err := execute(t, NewDoctorCommand(), cfg, "", t.TempDir())
	require.NoError(t, err)

	var got DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	var found bool
	for _, c := range got.HealthChecks {
		if c.ID == "sql-files" {
			found = true
			assert.Equal(t, checkFail, c.Status)
		}
	}
	assert.True(t, found)
}

func TestDoctor_TextAndMarkdown(t *testing.T) {
	dir := testutil.SetupTestProject(t)

	cfg := testConfig("text")
	cfg.Output = filepath.Join(dir, "out")
	stdout, _, err := execute(t, NewDoctorCommand(), cfg, "", filepath.Join(dir, "reports"))
	require.NoError(t, err)
	testutil.AssertNoANSI(t, stdout)
	assert.Contains(t, stdout, "colresolve Health Report")
	assert.Contains(t, stdout, "Sources")
	assert.Contains(t, stdout, "Health Score: 80/100")

	cfg = testConfig("markdown")
	cfg.Output = filepath.Join(dir, "out")
	stdout, _, err = execute(t, NewDoctorCommand(), cfg, "", filepath.Join(dir, "reports"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "### Configuration")
	assert.Contains(t, stdout, "- **[WARN]** Files yield columns (1 issues)")
	testutil.AssertValidMarkdown(t, stdout)
}

func TestCheckConfiguration_UnknownKeys(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte("dialect: tsql\nmodels_dir: models\n"), 0o600))

	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)

	checks := checkConfiguration(cfg)
	require.Len(t, checks, 2)
	assert.Equal(t, checkPass, checks[0].Status)
	assert.Equal(t, checkWarn, checks[1].Status)
	assert.Contains(t, checks[1].Details, "unknown setting models_dir")
}
