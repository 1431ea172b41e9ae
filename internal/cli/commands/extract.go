package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/config"
	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/internal/discover"
	"github.com/leapstack-labs/colresolve/internal/export"
	"github.com/leapstack-labs/colresolve/internal/extract"
)

// watchDebounce groups bursts of file events into one re-run.
const watchDebounce = 200 * time.Millisecond

// ExtractOptions holds options for the extract command.
type ExtractOptions struct {
	Watch bool
}

// ExtractReport is the JSON form of one extraction run.
type ExtractReport struct {
	Output  string              `json:"output"`
	Errors  string              `json:"errors,omitempty"`
	RunID   string              `json:"run_id,omitempty"`
	Summary extract.Summary     `json:"summary"`
	Files   []ExtractFileReport `json:"files"`
}

// ExtractFileReport is one file in an ExtractReport.
type ExtractFileReport struct {
	Path     string                `json:"path"`
	Report   string                `json:"report"`
	Dataset  string                `json:"dataset"`
	Status   extract.Status        `json:"status"`
	Dialect  string                `json:"dialect,omitempty"`
	Columns  int                   `json:"columns"`
	Fallback bool                  `json:"fallback,omitempty"`
	Reason   string                `json:"reason,omitempty"`
	Error    string                `json:"error,omitempty"`
	Details  []extract.ErrorDetail `json:"details,omitempty"`
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [paths...]",
		Short: "Extract fully qualified columns from SQL files",
		Long: `Extract every column referenced by the SQL files under the given paths.

Each file is parsed with the configured dialect, or with each dialect in turn
when none is set. Every column reference is resolved to the table that owns
it and written to the column listing (one row per report, dataset and column).

Files are named Report__Dataset.sql; files without a dataset are listed
under "Default". Files that fail or yield no columns are described in
errors.txt and copied to Error_Reports/ next to the listing.`,
		Example: `  # Extract from the current directory into ./output/columns.csv
  colresolve extract

  # Extract one folder as T-SQL into a JSON listing
  colresolve extract reports/ --dialect tsql --output out/columns.json

  # Keep the listing up to date while editing
  colresolve extract reports/ --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when .sql files change")

	return cmd
}

func runExtract(cmd *cobra.Command, paths []string, opts *ExtractOptions) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	layout := export.ResolveLayout(cmdCtx.Cfg.Output)
	if err := layout.Prepare(); err != nil {
		return err
	}

	closeLog, err := cmdCtx.attachRunLog(layout)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := extractOnce(ctx, cmdCtx, paths, layout); err != nil {
		return err
	}
	if !opts.Watch {
		return nil
	}
	return watch(ctx, cmdCtx, paths, layout)
}

// attachRunLog sends extraction logs to the run log file. The default
// file sits next to the listing; "-" disables it.
func (c *CommandContext) attachRunLog(layout export.Layout) (func(), error) {
	cfg := c.Cfg
	path := cfg.LogFile
	if path == config.DisabledLogFile {
		return func() {}, nil
	}
	if path == "" {
		path = layout.Log
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // G304: path is user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	c.Logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return func() { _ = f.Close() }, nil
}

// extractOnce runs one full pass: discover, extract, write outputs and
// render the summary.
func extractOnce(ctx context.Context, c *CommandContext, paths []string, layout export.Layout) error {
	started := time.Now()
	files, err := discover.Files(paths, c.Logger)
	if err != nil {
		return err
	}
	c.Logger.Info("extraction started", "files", len(files), "dialect", dialectName(c.Cfg.Dialect))

	results, err := c.Extractor().Files(ctx, files)
	if err != nil {
		return err
	}

	report := ExtractReport{Output: layout.Output, Summary: extract.Summarize(results)}
	if err := writeListing(layout.Output, c.Cfg.ListingFormat(), results, c.Cfg.WithConfidence); err != nil {
		return err
	}

	if export.NeedsReport(results) {
		if err := export.WriteErrorReportFile(layout.Errors, results, started); err != nil {
			return err
		}
		copied, err := export.CopyErrorReports(layout.ErrorReports, results)
		if err != nil {
			c.Logger.Warn("failed to copy error reports", "error", err)
		}
		c.Logger.Info("error reports copied", "files", len(copied), "dir", layout.ErrorReports)
		report.Errors = layout.Errors
	}

	if c.Cfg.CatalogPath != "" {
		store, closeStore, err := c.OpenCatalog(ctx, c.Cfg.CatalogPath)
		if err != nil {
			return err
		}
		run, err := store.SaveRun(ctx, dialectName(c.Cfg.Dialect), results)
		closeStore()
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		report.RunID = run.ID
	}

	for _, res := range results {
		report.Files = append(report.Files, fileReport(res))
	}
	c.Logger.Info("extraction finished",
		"files", report.Summary.Files,
		"columns", report.Summary.Total,
		"failed", report.Summary.Failed,
		"elapsed", time.Since(started).Round(time.Millisecond))

	return renderExtract(c.Renderer, report, time.Since(started))
}

func writeListing(path string, format export.Format, results []extract.FileResult, withConfidence bool) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is user configuration
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return export.Write(f, format, export.Rows(results, withConfidence), withConfidence)
}

func fileReport(res extract.FileResult) ExtractFileReport {
	fr := ExtractFileReport{
		Path:     res.Path,
		Report:   res.Report,
		Dataset:  res.Dataset,
		Status:   res.Status(),
		Dialect:  res.Dialect,
		Columns:  len(res.Columns),
		Fallback: res.Fallback,
		Details:  res.Errors,
	}
	switch fr.Status {
	case extract.StatusError:
		fr.Error = res.Err.Error()
	case extract.StatusZeroColumns:
		fr.Reason = res.Reason()
	}
	return fr
}

func dialectName(name string) string {
	if name == "" {
		return extract.AutoDialect
	}
	return name
}

func renderExtract(r *output.Renderer, report ExtractReport, elapsed time.Duration) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(report)
	case output.ModeMarkdown:
		extractMarkdown(r, report)
	default:
		extractText(r, report, elapsed)
	}
	return nil
}

func extractText(r *output.Renderer, report ExtractReport, elapsed time.Duration) {
	r.Header(1, fmt.Sprintf("Extracted %d files", report.Summary.Files))
	for _, f := range report.Files {
		switch f.Status {
		case extract.StatusOK:
			detail := fmt.Sprintf("(%d columns, %s)", f.Columns, f.Dialect)
			if f.Fallback {
				detail = fmt.Sprintf("(%d columns, token fallback)", f.Columns)
			}
			r.StatusLine(f.Path, "success", detail)
		case extract.StatusZeroColumns:
			r.StatusLine(f.Path, "warning", f.Reason)
		case extract.StatusError:
			r.StatusLine(f.Path, "error", f.Error)
		default:
			r.StatusLine(f.Path, string(f.Status), "")
		}
	}
	r.Println("")
	summaryText(r, report)
	r.Muted(fmt.Sprintf("Completed in %s", elapsed.Round(time.Millisecond)))
}

func summaryText(r *output.Renderer, report ExtractReport) {
	s := report.Summary
	r.Header(2, "Summary")
	r.KeyValue("Successful", fmt.Sprint(s.Successful))
	r.KeyValue("Zero columns", fmt.Sprint(s.ZeroColumns))
	r.KeyValue("Failed", fmt.Sprint(s.Failed))
	if s.Skipped > 0 {
		r.KeyValue("Skipped", fmt.Sprint(s.Skipped))
	}
	if s.Fallback > 0 {
		r.KeyValue("Token fallback", fmt.Sprint(s.Fallback))
	}
	r.KeyValue("Columns", fmt.Sprintf("%d (%d unique)", s.Total, s.Unique))
	r.KeyValue("Output", report.Output)
	if report.Errors != "" {
		r.KeyValue("Error report", report.Errors)
	}
	if report.RunID != "" {
		r.KeyValue("Run", report.RunID)
	}
}

func extractMarkdown(r *output.Renderer, report ExtractReport) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Extracted %d files", report.Summary.Files)))
	r.Println("")
	r.Println("| File | Report | Dataset | Status | Columns |")
	r.Println("|------|--------|---------|--------|---------|")
	for _, f := range report.Files {
		r.Printf("| %s | %s | %s | %s | %d |\n", f.Path, f.Report, f.Dataset, f.Status, f.Columns)
	}
	r.Println("")
	summaryText(r, report)
}

// watch re-runs the extraction whenever a .sql file under paths is
// written or created, until ctx is cancelled.
func watch(ctx context.Context, c *CommandContext, paths []string, layout export.Layout) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range discover.Dirs(paths) {
		if err := watchDir(watcher, dir, layout.Dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	_, _ = fmt.Fprintln(c.Renderer.ErrWriter(), "Watching for changes (Ctrl+C to stop)...")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !discover.IsSQL(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				select {
				case rerun <- name:
				default:
				}
			})
		case name := <-rerun:
			_, _ = fmt.Fprintln(c.Renderer.ErrWriter(), "Change detected: "+filepath.Base(name))
			if err := extractOnce(ctx, c, paths, layout); err != nil {
				c.Renderer.Error(err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.Logger.Warn("watcher error", "error", err)
		}
	}
}

// watchDir adds dir and its subdirectories, skipping hidden ones and
// the output directory.
func watchDir(watcher *fsnotify.Watcher, dir, outputDir string) error {
	skip, _ := filepath.Abs(outputDir)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == skip {
			return filepath.SkipDir
		}
		if path != dir && len(d.Name()) > 0 && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
