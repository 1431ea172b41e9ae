package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/config"
	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/internal/discover"
	"github.com/leapstack-labs/colresolve/internal/export"
	"github.com/leapstack-labs/colresolve/internal/extract"
)

// Check statuses.
const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "error"
)

// Check groups, in report order.
const (
	groupConfiguration = "configuration"
	groupSources       = "sources"
	groupOutput        = "output"
)

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         extract.Summary `json:"summary"`
	HealthChecks    []HealthCheck   `json:"health_checks"`
	Score           int             `json:"score"`
	Recommendations []string        `json:"recommendations"`
	IssueCount      int             `json:"issue_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor [paths...]",
		Short: "Check configuration and SQL files for problems",
		Long: `Run a health check over the configuration and the SQL files under the
given paths without writing the column listing.

The report covers:
- Configuration: config file and dialect
- Sources: files found, parse failures, files without columns, token fallback
- Output: listing directory and run catalog
- Health score (0-100) and recommendations`,
		Example: `  # Check the current directory
  colresolve doctor

  # Check one folder as JSON
  colresolve doctor reports/ --mode json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, args)
		},
	}
	return cmd
}

func runDoctor(cmd *cobra.Command, args []string) error {
	c := NewCommandContext(cmd)
	out := &DoctorOutput{}

	out.HealthChecks = append(out.HealthChecks, checkConfiguration(c.Cfg)...)

	paths, err := discover.Files(args, c.Logger)
	if err != nil && !errors.Is(err, discover.ErrNoFiles) {
		return err
	}
	found := HealthCheck{ID: "sql-files", Name: "SQL files found", Group: groupSources, Status: checkPass}
	if len(paths) == 0 {
		found.fail(checkFail, "no .sql files under "+strings.Join(orDot(args), ", "))
	} else {
		found.Details = []string{fmt.Sprintf("%d files", len(paths))}
	}
	out.HealthChecks = append(out.HealthChecks, found)

	if len(paths) > 0 {
		results, err := c.Extractor().Files(cmd.Context(), paths)
		if err != nil {
			return err
		}
		out.Summary = extract.Summarize(results)
		out.HealthChecks = append(out.HealthChecks, checkSources(results)...)
	}

	out.HealthChecks = append(out.HealthChecks, checkOutput(cmd.Context(), c)...)

	for _, check := range out.HealthChecks {
		out.IssueCount += check.IssueCount
	}
	out.Score = calculateHealthScore(out.HealthChecks)
	out.Recommendations = generateRecommendations(out.HealthChecks)

	r := c.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// fail records one issue and raises the status to at least status.
func (h *HealthCheck) fail(status, detail string) {
	h.IssueCount++
	h.Details = append(h.Details, detail)
	if h.Status != checkFail {
		h.Status = status
	}
}

func orDot(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

func checkConfiguration(cfg *config.Config) []HealthCheck {
	file := HealthCheck{ID: "config-file", Name: "Config file", Group: groupConfiguration, Status: checkPass}
	if used := config.GetConfigFileUsed(); used != "" {
		file.Details = []string{used}
	} else {
		file.fail(checkWarn, "no "+config.DefaultConfigFile+" found, using defaults")
	}

	valid := HealthCheck{ID: "config-valid", Name: "Settings are valid", Group: groupConfiguration, Status: checkPass}
	if err := cfg.Validate(); err != nil {
		valid.fail(checkFail, err.Error())
	} else {
		valid.Details = []string{"dialect " + dialectName(cfg.Dialect)}
	}
	for _, key := range config.UnknownKeys() {
		valid.fail(checkWarn, "unknown setting "+key)
	}
	return []HealthCheck{file, valid}
}

func checkSources(results []extract.FileResult) []HealthCheck {
	parsed := HealthCheck{ID: "parse", Name: "Files parse", Group: groupSources, Status: checkPass}
	columns := HealthCheck{ID: "columns", Name: "Files yield columns", Group: groupSources, Status: checkPass}
	fallback := HealthCheck{ID: "token-fallback", Name: "Parser handles every file", Group: groupSources, Status: checkPass}

	for _, res := range results {
		switch {
		case res.Err != nil:
			parsed.fail(checkFail, fmt.Sprintf("%s: %v", res.Path, res.Err))
		case res.Status() == extract.StatusZeroColumns && len(res.Errors) > 0:
			parsed.fail(checkFail, fmt.Sprintf("%s: %s", res.Path, firstLine(res.Errors[0].Error)))
		case res.Status() == extract.StatusZeroColumns:
			columns.fail(checkWarn, fmt.Sprintf("%s: %s", res.Path, res.Reason()))
		}
		if res.Fallback {
			fallback.fail(checkWarn, res.Path+": columns found by token scan")
		}
	}
	return []HealthCheck{parsed, columns, fallback}
}

func checkOutput(ctx context.Context, c *CommandContext) []HealthCheck {
	layout := export.ResolveLayout(c.Cfg.Output)
	writable := HealthCheck{ID: "output-writable", Name: "Output directory is writable", Group: groupOutput, Status: checkPass}
	if err := probeWritable(layout.Dir); err != nil {
		writable.fail(checkFail, err.Error())
	} else {
		writable.Details = []string{layout.Output}
	}
	checks := []HealthCheck{writable}

	if c.Cfg.CatalogPath == "" {
		return checks
	}
	cat := HealthCheck{ID: "catalog", Name: "Run catalog opens", Group: groupOutput, Status: checkPass}
	store, cleanup, err := c.OpenCatalog(ctx, c.Cfg.CatalogPath)
	if err != nil {
		cat.fail(checkFail, err.Error())
		return append(checks, cat)
	}
	defer cleanup()
	version, err := store.Version(ctx)
	if err != nil {
		cat.fail(checkFail, err.Error())
	} else {
		cat.Details = []string{fmt.Sprintf("%s (schema version %d)", c.Cfg.CatalogPath, version)}
	}
	return append(checks, cat)
}

// probeWritable creates and removes a temp file in dir, or in its
// nearest existing parent when dir does not exist yet.
func probeWritable(dir string) error {
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return err
		}
		dir = parent
	}
	f, err := os.CreateTemp(dir, ".colresolve-doctor-*")
	if err != nil {
		return fmt.Errorf("cannot write to %s: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// calculateHealthScore computes a health score from 0-100.
// Each warning costs 10 points and each error 25.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case checkFail:
			score -= 25
		case checkWarn:
			score -= 10
		}
	}
	return max(score, 0)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" {
			recommendations = append(recommendations, rec)
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "config-file":
		return "Run 'colresolve init' to create a colresolve.yaml"
	case "config-valid":
		return "Fix the settings reported above in colresolve.yaml or the COLRESOLVE_ environment"
	case "sql-files":
		return "Pass the folder holding your .sql report files"
	case "parse":
		return "Set the dialect in the file's frontmatter, or enable tolerant_fallback"
	case "columns":
		return "Replace SELECT * with explicit columns so they can be listed"
	case "token-fallback":
		return "Columns found by token scan are unqualified; set the right dialect for those files"
	case "output-writable":
		return "Point --output at a writable location"
	case "catalog":
		return "Check catalog_path, or remove it to disable the run catalog"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Title.Render("colresolve Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header.Render("Summary"))
	r.Printf("   Files: %d | Successful: %d | Zero columns: %d | Failed: %d\n",
		out.Summary.Files, out.Summary.Successful, out.Summary.ZeroColumns, out.Summary.Failed)
	r.Printf("   Columns: %d (%d unique)\n", out.Summary.Total, out.Summary.Unique)
	r.Println("")

	r.Println(styles.Header.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("ok")
		switch check.Status {
		case checkWarn:
			icon = styles.Warning.Render("!")
		case checkFail:
			icon = styles.Error.Render("x")
		}

		status := fmt.Sprintf("%s %s", icon, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		// Show first 3 details
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# colresolve Health Report")
	r.Println("")

	r.Println("## Summary")
	r.Println("")
	r.Printf("- **Files**: %d\n", out.Summary.Files)
	r.Printf("- **Successful**: %d\n", out.Summary.Successful)
	r.Printf("- **Zero columns**: %d\n", out.Summary.ZeroColumns)
	r.Printf("- **Failed**: %d\n", out.Summary.Failed)
	r.Printf("- **Columns**: %d (%d unique)\n", out.Summary.Total, out.Summary.Unique)
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s", strings.ToUpper(check.Status), check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
