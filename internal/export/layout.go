package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Output layout defaults.
const (
	DefaultDir      = "output"
	DefaultFile     = "columns.csv"
	ErrorsFile      = "errors.txt"
	ErrorReportsDir = "Error_Reports"
)

// Layout names every file an extraction run writes.
type Layout struct {
	Dir          string
	Output       string // column listing
	Log          string // Output with a .log extension
	Errors       string
	ErrorReports string
}

// ResolveLayout interprets an --output value. A path with an extension is
// the listing file itself; any other path is a directory that receives
// columns.csv. Empty means DefaultDir.
func ResolveLayout(output string) Layout {
	dir, file := DefaultDir, DefaultFile
	if output != "" {
		if filepath.Ext(output) != "" {
			dir, file = filepath.Dir(output), filepath.Base(output)
		} else {
			dir = output
		}
	}
	out := filepath.Join(dir, file)
	return Layout{
		Dir:          dir,
		Output:       out,
		Log:          strings.TrimSuffix(out, filepath.Ext(out)) + ".log",
		Errors:       filepath.Join(dir, ErrorsFile),
		ErrorReports: filepath.Join(dir, ErrorReportsDir),
	}
}

// Format infers the listing format from the output extension.
func (l Layout) Format() Format {
	f, err := ParseFormat(filepath.Ext(l.Output))
	if err != nil {
		return FormatCSV
	}
	return f
}

// Prepare creates the output and Error_Reports directories.
func (l Layout) Prepare() error {
	if err := os.MkdirAll(l.ErrorReports, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
