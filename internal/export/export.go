// Package export writes extraction results: the column listing in one of
// several formats, the errors.txt report and the Error_Reports copies.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/colresolve/internal/extract"
)

// Format selects the column listing encoding.
type Format string

// Supported formats.
const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON, FormatYAML, FormatTable, FormatMarkdown}
}

// ParseFormat accepts a format name or a file extension such as ".yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "table", "txt":
		return FormatTable, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv, json, yaml, table or markdown)", s)
	}
}

// Row is one emitted column of one file.
type Row struct {
	ReportName string `json:"report_name" yaml:"report_name"`
	Dataset    string `json:"dataset" yaml:"dataset"`
	ColumnName string `json:"column_name" yaml:"column_name"`
	Confidence string `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Ambiguous  bool   `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
}

// Rows flattens results into rows, file by file. Confidence and the
// ambiguity flag are filled only when withConfidence is set.
func Rows(results []extract.FileResult, withConfidence bool) []Row {
	var rows []Row
	for _, r := range results {
		if r.Status() != extract.StatusOK {
			continue
		}
		for _, c := range r.Columns {
			row := Row{ReportName: r.Report, Dataset: r.Dataset, ColumnName: c.Qualified()}
			if withConfidence {
				row.Confidence = string(c.Confidence)
				row.Ambiguous = c.Ambiguous
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func header(withConfidence bool) []string {
	h := []string{"ReportName", "Dataset", "ColumnName"}
	if withConfidence {
		h = append(h, "Confidence")
	}
	return h
}

func (r Row) cells(withConfidence bool) []string {
	c := []string{r.ReportName, r.Dataset, r.ColumnName}
	if withConfidence {
		conf := r.Confidence
		if r.Ambiguous {
			conf += " (ambiguous)"
		}
		c = append(c, conf)
	}
	return c
}

// Write encodes rows to w. The confidence column appears in tabular
// formats when withConfidence is set; JSON and YAML carry it whenever
// the rows do.
func Write(w io.Writer, format Format, rows []Row, withConfidence bool) error {
	switch format {
	case FormatCSV, "":
		return writeCSV(w, rows, withConfidence)
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	case FormatTable:
		return writeTable(w, rows, withConfidence)
	case FormatMarkdown:
		return writeMarkdown(w, rows, withConfidence)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeCSV(w io.Writer, rows []Row, withConfidence bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(withConfidence)); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.cells(withConfidence)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeYAML(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return enc.Close()
}

func newTable(w io.Writer, rows []Row, withConfidence bool) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	// keep headers identical to the CSV header
	t.Style().Format.Header = text.FormatDefault

	h := header(withConfidence)
	headerRow := make(table.Row, len(h))
	for i, col := range h {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range rows {
		cells := r.cells(withConfidence)
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}
	return t
}

func writeTable(w io.Writer, rows []Row, withConfidence bool) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	newTable(w, rows, withConfidence).Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func writeMarkdown(w io.Writer, rows []Row, withConfidence bool) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	newTable(w, rows, withConfidence).RenderMarkdown()
	_, _ = fmt.Fprintf(w, "\n(%d rows)\n", len(rows))
	return nil
}
