package extract

import "fmt"

// Status classifies a FileResult.
type Status string

// File statuses.
const (
	StatusOK          Status = "ok"
	StatusZeroColumns Status = "zero-columns"
	StatusError       Status = "error"
	StatusSkipped     Status = "skipped"
)

// Status reports how processing of the file ended.
func (r FileResult) Status() Status {
	switch {
	case r.Err != nil:
		return StatusError
	case r.Skipped:
		return StatusSkipped
	case len(r.Columns) == 0:
		return StatusZeroColumns
	default:
		return StatusOK
	}
}

// Reason explains a zero-column result.
func (r FileResult) Reason() string {
	switch {
	case len(r.Errors) > 0:
		return "Parse error(s) prevented column extraction"
	case r.Wildcards > 0:
		return fmt.Sprintf("Only wildcard references found (wildcards: %d)", r.Wildcards)
	default:
		return "No columns extracted (may be DDL-only, empty file, or parse error)"
	}
}

// Summary aggregates a batch.
type Summary struct {
	Files       int `json:"files" yaml:"files"`
	Successful  int `json:"successful" yaml:"successful"`
	ZeroColumns int `json:"zero_columns" yaml:"zero_columns"`
	Failed      int `json:"failed" yaml:"failed"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Fallback    int `json:"fallback" yaml:"fallback"`
	// Total counts emitted rows; Unique counts distinct qualified
	// columns across all files.
	Total  int `json:"total" yaml:"total"`
	Unique int `json:"unique" yaml:"unique"`
}

// Summarize counts results by status and columns.
func Summarize(results []FileResult) Summary {
	s := Summary{Files: len(results)}
	seen := make(map[string]bool)
	for _, r := range results {
		switch r.Status() {
		case StatusOK:
			s.Successful++
		case StatusZeroColumns:
			s.ZeroColumns++
		case StatusError:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
		if r.Fallback {
			s.Fallback++
		}
		for _, c := range r.Columns {
			s.Total++
			q := c.Qualified()
			if !seen[q] {
				seen[q] = true
				s.Unique++
			}
		}
	}
	return s
}
