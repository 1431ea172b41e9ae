// Package extract runs the column extraction pipeline over SQL files.
//
// Per file: read, strip frontmatter, preprocess, parse (retrying each
// dialect in turn when none is configured), resolve every statement
// under a time budget, filter by confidence and deduplicate. When no
// dialect yields a column and tolerant fallback is enabled the token
// scanner in internal/fallback gets the last word.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/colresolve/internal/discover"
	"github.com/leapstack-labs/colresolve/internal/fallback"
	"github.com/leapstack-labs/colresolve/internal/preprocess"
	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/parser"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

// AutoDialect selects the retry order.
const AutoDialect = "auto"

// ErrNoStatements is reported for input that is empty after
// preprocessing.
var ErrNoStatements = errors.New("no query statements")

// ErrStatementTimeout is reported when resolving one statement exceeds
// Options.StatementTimeout.
var ErrStatementTimeout = errors.New("statement timeout exceeded")

// Options configures an Extractor.
type Options struct {
	// Dialect is a dialect name, or "" / AutoDialect for the retry order.
	Dialect          string
	Fallback         resolve.FallbackPolicy
	Preprocess       bool
	TolerantFallback bool
	StatementTimeout time.Duration // zero disables the budget
	Concurrency      int           // files in flight; values below 1 mean 1
	MinConfidence    resolve.Confidence
	Logger           *slog.Logger
}

// ErrorDetail describes one failed parse or resolution attempt.
type ErrorDetail struct {
	Statement     string `json:"statement" yaml:"statement"` // 1-based number, or "all"
	Dialect       string `json:"dialect" yaml:"dialect"`
	Error         string `json:"error" yaml:"error"`
	Formatted     string `json:"formatted" yaml:"formatted"`
	DialectsTried string `json:"dialects_tried,omitempty" yaml:"dialects_tried,omitempty"`
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path    string
	Report  string
	Dataset string
	Dialect string // dialect that produced Columns
	// Columns are unique per file, in first-occurrence order.
	Columns   []resolve.ResolvedColumn
	Extracted int // columns before deduplication
	Wildcards int // wildcard references skipped
	Fallback  bool
	Skipped   bool // frontmatter asked to skip the file
	Errors    []ErrorDetail
	// Err is a failure that stopped processing, such as an unreadable
	// file or an invalid frontmatter block.
	Err error
}

// Extractor runs the pipeline with fixed options.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Extractor{opts: opts, logger: logger}
}

// Files processes paths concurrently. Results keep the order of paths.
// The error is non-nil only when ctx was cancelled.
func (e *Extractor) Files(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.File(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// File processes one file.
func (e *Extractor) File(ctx context.Context, path string) FileResult {
	report, dataset := discover.ParseFilename(path)
	res := FileResult{Path: path, Report: report, Dataset: dataset}
	logger := e.logger.With("file", path)

	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from discover.Files
	if err != nil {
		res.Err = fmt.Errorf("read %s: %w", path, err)
		return res
	}

	fm, err := discover.ExtractFrontmatter(string(content))
	if err != nil {
		res.Err = fmt.Errorf("frontmatter in %s: %w", path, err)
		return res
	}
	fm.Config.ApplyDefaults(path)
	res.Report, res.Dataset = fm.Config.Report, fm.Config.Dataset
	if fm.Config.Skip {
		logger.Info("skipped by frontmatter")
		res.Skipped = true
		return res
	}

	name := e.opts.Dialect
	if fm.Config.Dialect != "" {
		name = fm.Config.Dialect
	}
	out, err := e.extract(ctx, fm.SQL, name, logger)
	res.Dialect = out.dialect
	res.Columns = Dedup(out.columns)
	res.Extracted = len(out.columns)
	res.Wildcards = out.wildcards
	res.Fallback = out.fallback
	res.Errors = out.errors
	if err != nil && !errors.Is(err, ErrNoStatements) {
		res.Err = err
	}
	if errors.Is(err, ErrNoStatements) {
		logger.Warn("file contains no query statements")
	}
	logger.Debug("extracted", "columns", len(res.Columns), "dialect", res.Dialect, "errors", len(res.Errors))
	return res
}

// SQL runs the pipeline over one script and returns the undeduplicated
// columns. dialectName overrides Options.Dialect when non-empty.
func (e *Extractor) SQL(ctx context.Context, sql, dialectName string) ([]resolve.ResolvedColumn, []ErrorDetail, error) {
	if dialectName == "" {
		dialectName = e.opts.Dialect
	}
	out, err := e.extract(ctx, sql, dialectName, e.logger)
	return out.columns, out.errors, err
}

type outcome struct {
	dialect   string
	columns   []resolve.ResolvedColumn
	wildcards int
	fallback  bool
	errors    []ErrorDetail
}

func (e *Extractor) extract(ctx context.Context, sql, dialectName string, logger *slog.Logger) (outcome, error) {
	var out outcome
	if e.opts.Preprocess {
		sql = preprocess.Clean(sql)
	}
	if strings.TrimSpace(sql) == "" {
		return out, ErrNoStatements
	}

	candidates, configured, err := e.dialects(dialectName)
	if err != nil {
		return out, err
	}

	var tried []string
	for _, d := range candidates {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		tried = append(tried, d.Name)
		label := d.Name
		if !configured && d.Name == dialect.ANSI {
			label = ""
		}

		attempt, err := e.attempt(ctx, sql, d, label)
		out.errors = append(out.errors, attempt.errors...)
		if err != nil {
			return out, err
		}
		if len(attempt.columns) > 0 {
			out.dialect = d.Name
			out.columns = attempt.columns
			out.wildcards = attempt.wildcards
			if len(attempt.errors) > 0 {
				logger.Info("columns extracted despite failed statements", "dialect", d.Name, "failed", len(attempt.errors))
			}
			return out, nil
		}
		out.wildcards = max(out.wildcards, attempt.wildcards)
		if len(attempt.errors) == 0 {
			// a clean parse with nothing to report; other dialects
			// would read the same text
			out.dialect = d.Name
			return out, nil
		}
		logger.Debug("dialect produced no columns", "dialect", d.Name)
	}

	if len(out.errors) == 0 {
		return out, nil
	}
	summarize(&out, strings.Join(tried, ", "))
	logger.Warn("failed to parse SQL", "dialects_tried", strings.Join(tried, ", "), "error", out.errors[len(out.errors)-1].Error)

	if e.opts.TolerantFallback {
		fd := candidates[0]
		if !configured {
			fd, _ = dialect.Get(dialect.Default)
		}
		if cols := e.filter(fallback.Extract(sql, fd)); len(cols) > 0 {
			logger.Info("tolerant fallback recovered columns", "columns", len(cols))
			out.columns = cols
			out.fallback = true
			out.dialect = fd.Name
		}
	}
	return out, nil
}

// summarize records the dialects tried on the whole-input failure of
// the last dialect, adding one when that dialect failed per statement.
func summarize(out *outcome, tried string) {
	last := out.errors[len(out.errors)-1]
	for i := range out.errors {
		if out.errors[i].Statement == "all" && out.errors[i].Dialect == last.Dialect {
			out.errors[i].DialectsTried = tried
			return
		}
	}
	out.errors = append(out.errors, ErrorDetail{
		Statement:     "all",
		Dialect:       last.Dialect,
		Error:         last.Error,
		Formatted:     last.Formatted,
		DialectsTried: tried,
	})
}

// dialects returns the candidates for name and whether the user chose one.
func (e *Extractor) dialects(name string) ([]*dialect.Dialect, bool, error) {
	if name == "" || strings.EqualFold(name, AutoDialect) {
		return dialect.RetryOrder(), false, nil
	}
	d, err := dialect.Lookup(name)
	if err != nil {
		return nil, true, err
	}
	return []*dialect.Dialect{d}, true, nil
}

// attempt parses sql with d and resolves each statement.
func (e *Extractor) attempt(ctx context.Context, sql string, d *dialect.Dialect, label string) (outcome, error) {
	var out outcome
	stmts := parser.ParseScript(sql, d)

	failed := 0
	for _, s := range stmts {
		if s.Err != nil {
			failed++
		}
	}
	if failed == len(stmts) && len(stmts) > 0 {
		first := stmts[0].Err
		out.errors = append(out.errors, ErrorDetail{
			Statement: "all",
			Dialect:   d.Name,
			Error:     first.Error(),
			Formatted: FormatParseError(first, sql, ErrorContext{Dialect: label}),
		})
		return out, nil
	}

	for _, s := range stmts {
		num := s.Index + 1
		if s.Err != nil {
			out.errors = append(out.errors, ErrorDetail{
				Statement: strconv.Itoa(num),
				Dialect:   d.Name,
				Error:     s.Err.Error(),
				Formatted: FormatParseError(s.Err, sql, ErrorContext{Dialect: label, Statement: num}),
			})
			continue
		}

		res, err := e.resolve(ctx, s.Stmt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			out.errors = append(out.errors, ErrorDetail{
				Statement: strconv.Itoa(num),
				Dialect:   d.Name,
				Error:     err.Error(),
				Formatted: FormatParseError(err, sql, ErrorContext{Dialect: label, Statement: num}),
			})
			if errors.Is(err, ErrStatementTimeout) {
				continue
			}
		}
		for _, ref := range res.References {
			if ref.Wildcard() {
				out.wildcards++
			}
		}
		out.columns = append(out.columns, e.filter(res.Columns)...)
	}
	return out, nil
}

// resolve runs resolve.Resolve bounded by the statement timeout. A
// statement that overruns is abandoned; resolution is pure, so the
// goroutine finishes on its own.
func (e *Extractor) resolve(ctx context.Context, stmt *core.SelectStmt) (resolve.Result, error) {
	opts := resolve.Options{Fallback: e.opts.Fallback, Logger: e.logger}
	if e.opts.StatementTimeout <= 0 {
		return resolve.Resolve(stmt, opts)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.StatementTimeout)
	defer cancel()

	type result struct {
		res resolve.Result
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := resolve.Resolve(stmt, opts)
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		return resolve.Result{}, fmt.Errorf("%w (%s)", ErrStatementTimeout, e.opts.StatementTimeout)
	}
}

func (e *Extractor) filter(cols []resolve.ResolvedColumn) []resolve.ResolvedColumn {
	if e.opts.MinConfidence == "" {
		return cols
	}
	floor := e.opts.MinConfidence.Rank()
	var out []resolve.ResolvedColumn
	for _, c := range cols {
		if c.Confidence.Rank() >= floor {
			out = append(out, c)
		}
	}
	return out
}

// Dedup keeps the first occurrence of each qualified column.
func Dedup(cols []resolve.ResolvedColumn) []resolve.ResolvedColumn {
	seen := make(map[string]bool, len(cols))
	var out []resolve.ResolvedColumn
	for _, c := range cols {
		q := c.Qualified()
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, c)
	}
	return out
}
