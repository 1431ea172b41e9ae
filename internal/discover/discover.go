// Package discover finds the SQL files to process and derives the report
// and dataset each one belongs to.
package discover

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDataset is used when a filename carries no dataset segment.
const DefaultDataset = "Default"

// ErrNoFiles is returned when no SQL files were found.
var ErrNoFiles = errors.New("no SQL files found to process")

// Files expands paths into a list of SQL files. Directories are searched
// recursively and their files sorted. Missing paths and non-SQL files are
// skipped with a warning. An empty paths list means the current
// directory. A file reachable through two arguments is listed once.
func Files(paths []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, p)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			logger.Warn("path not found", "path", p, "error", err)
			continue
		}
		if !info.IsDir() {
			if !IsSQL(p) {
				logger.Warn("skipping non-SQL file", "path", p)
				continue
			}
			add(p)
			continue
		}

		found, err := walkSQL(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		logger.Info("found SQL files", "dir", p, "count", len(found))
		for _, f := range found {
			add(f)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoFiles
	}
	return out, nil
}

// Dirs returns the directories among paths, or "." when paths is empty.
func Dirs(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	var out []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			out = append(out, p)
		}
	}
	return out
}

func walkSQL(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSQL(d.Name()) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// IsSQL reports whether name has a .sql extension, in any case.
func IsSQL(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".sql")
}

// ParseFilename splits a file's base name, without its .sql extension,
// into report and dataset at the first double underscore:
//
//	Sales_Report__Finance.sql  ->  ("Sales_Report", "Finance")
//	orders.sql                 ->  ("orders", "Default")
func ParseFilename(path string) (report, dataset string) {
	name := filepath.Base(path)
	if IsSQL(name) {
		name = name[:len(name)-len(filepath.Ext(name))]
	}
	report, dataset, ok := strings.Cut(name, "__")
	if !ok || dataset == "" {
		return report, DefaultDataset
	}
	return report, dataset
}
