package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/colresolve/internal/extract"
)

var (
	rule     = strings.Repeat("=", 80)
	thinRule = strings.Repeat("-", 80)
)

// NeedsReport reports whether any result failed or produced no columns.
func NeedsReport(results []extract.FileResult) bool {
	for _, r := range results {
		switch r.Status() {
		case extract.StatusError, extract.StatusZeroColumns:
			return true
		}
	}
	return false
}

// WriteErrorReport writes the errors.txt report: counts, then every
// failed file, then every zero-column file, each with its parse error
// details.
func WriteErrorReport(w io.Writer, results []extract.FileResult, generated time.Time) error {
	var failed, zero []extract.FileResult
	for _, r := range results {
		switch r.Status() {
		case extract.StatusError:
			failed = append(failed, r)
		case extract.StatusZeroColumns:
			zero = append(zero, r)
		}
	}
	s := extract.Summarize(results)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\nERROR REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(bw, "Generated: %s\n", generated.Format(time.DateTime))
	fmt.Fprintf(bw, "Total files processed: %d\n", s.Files)
	fmt.Fprintf(bw, "Files with errors: %d\n", s.Failed)
	fmt.Fprintf(bw, "Files with 0 columns: %d\n", s.ZeroColumns)
	fmt.Fprintf(bw, "Files successfully processed: %d\n\n", s.Successful)

	if len(failed) > 0 {
		fmt.Fprintf(bw, "FILES WITH PROCESSING ERRORS (%d):\n%s\n", len(failed), thinRule)
		for _, r := range failed {
			fmt.Fprintf(bw, "\nFile: %s\n", r.Path)
			fmt.Fprintf(bw, "Error: %v\n", r.Err)
			writeDetails(bw, r.Errors)
			fmt.Fprintln(bw, thinRule)
		}
		fmt.Fprintln(bw)
	}

	if len(zero) > 0 {
		fmt.Fprintf(bw, "FILES WITH 0 COLUMNS FOUND (%d):\n%s\n", len(zero), thinRule)
		for _, r := range zero {
			fmt.Fprintf(bw, "\nFile: %s\n", r.Path)
			fmt.Fprintf(bw, "Report: %s (%s)\n", r.Report, r.Dataset)
			fmt.Fprintf(bw, "Reason: %s\n", r.Reason())
			writeDetails(bw, r.Errors)
			fmt.Fprintln(bw, thinRule)
		}
	}
	return bw.Flush()
}

func writeDetails(w io.Writer, details []extract.ErrorDetail) {
	if len(details) == 0 {
		return
	}
	fmt.Fprint(w, "\nDetailed Parse Errors:\n")
	for _, d := range details {
		fmt.Fprintf(w, "\n  Statement #%s\n", d.Statement)
		fmt.Fprintf(w, "  Dialect: %s\n", dialectLabel(d.Dialect))
		if d.DialectsTried != "" {
			fmt.Fprintf(w, "  Dialects tried: %s\n", d.DialectsTried)
		}
		fmt.Fprintf(w, "  Error: %s\n", d.Error)
		fmt.Fprint(w, "\n  Detailed Error Information:\n")
		for _, line := range strings.Split(d.Formatted, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// dialectLabel names the generic parse attempt.
func dialectLabel(s string) string {
	if s == "" {
		return "generic"
	}
	return s
}

// WriteErrorReportFile writes the report to path.
func WriteErrorReportFile(path string, results []extract.FileResult, generated time.Time) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create error report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteErrorReport(f, results, generated)
}

// CopyErrorReports copies every failed or zero-column source file into
// dir, keeping its base name, and returns the copied paths. A file that
// cannot be copied is reported in the joined error and the rest are still
// attempted.
func CopyErrorReports(dir string, results []extract.FileResult) ([]string, error) {
	var copied []string
	var errs []error
	for _, r := range results {
		switch r.Status() {
		case extract.StatusError, extract.StatusZeroColumns:
		default:
			continue
		}
		dst := filepath.Join(dir, filepath.Base(r.Path))
		if err := copyFile(r.Path, dst); err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", r.Path, err))
			continue
		}
		copied = append(copied, dst)
	}
	return copied, errors.Join(errs...)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
