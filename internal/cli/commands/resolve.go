package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/internal/extract"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

// ResolveOptions holds options for the resolve command.
type ResolveOptions struct {
	File   string
	Unique bool
}

// ResolvedColumnJSON is the JSON form of one resolved column.
type ResolvedColumnJSON struct {
	Column     string             `json:"column"`
	Owner      string             `json:"owner"`
	Name       string             `json:"name"`
	Confidence resolve.Confidence `json:"confidence"`
	Ambiguous  bool               `json:"ambiguous,omitempty"`
}

// ResolveOutput is the JSON form of the resolve command.
type ResolveOutput struct {
	Columns []ResolvedColumnJSON  `json:"columns"`
	Errors  []extract.ErrorDetail `json:"errors,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	opts := &ResolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve [sql]",
		Short: "Resolve the columns of one SQL script",
		Long: `Parse a SQL script and print every column it references, qualified by the
table that owns it, with the confidence of each resolution.

The script is read from the argument, from --file, or from stdin.`,
		Example: `  # Resolve an inline query
  colresolve resolve "SELECT o.id, name FROM dbo.orders o"

  # Resolve a file as T-SQL, one row per distinct column
  colresolve resolve --file report.sql --dialect tsql --unique

  # Pipe SQL in and get JSON
  cat report.sql | colresolve resolve --mode json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Read SQL from a file")
	cmd.Flags().BoolVarP(&opts.Unique, "unique", "u", false, "Drop duplicate columns")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string, opts *ResolveOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	sql, err := readSQL(cmd.InOrStdin(), args, opts.File)
	if err != nil {
		return err
	}

	cols, details, err := cmdCtx.Extractor().SQL(cmd.Context(), sql, "")
	if err != nil {
		return err
	}
	if opts.Unique {
		cols = extract.Dedup(cols)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(resolveJSON(cols, details))
	case output.ModeMarkdown:
		resolveMarkdown(r, cols, details)
	default:
		resolveText(r, cols, details)
	}
	return nil
}

// readSQL returns the script from the argument, the file, or stdin.
func readSQL(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", fmt.Errorf("pass SQL as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file != "":
		data, err := os.ReadFile(file) //nolint:gosec // G304: path is a user argument
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no SQL given")
	}
	return string(data), nil
}

func resolveJSON(cols []resolve.ResolvedColumn, details []extract.ErrorDetail) ResolveOutput {
	out := ResolveOutput{Columns: []ResolvedColumnJSON{}, Errors: details}
	for _, c := range cols {
		out.Columns = append(out.Columns, ResolvedColumnJSON{
			Column:     c.Qualified(),
			Owner:      c.Owner.Path(),
			Name:       c.Column,
			Confidence: c.Confidence,
			Ambiguous:  c.Ambiguous,
		})
	}
	return out
}

func resolveText(r *output.Renderer, cols []resolve.ResolvedColumn, details []extract.ErrorDetail) {
	for _, d := range details {
		r.Warning(fmt.Sprintf("statement %s (%s): %s", d.Statement, d.Dialect, d.Error))
	}
	if len(cols) == 0 {
		r.Muted("No columns resolved.")
		return
	}

	styles := r.Styles()
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column", "Confidence"})
	for i, c := range cols {
		conf := string(c.Confidence)
		if c.Ambiguous {
			conf += " (ambiguous)"
		}
		t.AppendRow(table.Row{i + 1, c.Qualified(), styles.Confidence(c.Confidence).Render(conf)})
	}
	t.Render()
	r.Muted(fmt.Sprintf("(%d columns)", len(cols)))
}

func resolveMarkdown(r *output.Renderer, cols []resolve.ResolvedColumn, details []extract.ErrorDetail) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Columns (%d)", len(cols))))
	r.Println("")
	if len(cols) > 0 {
		r.Println("| Column | Confidence | Ambiguous |")
		r.Println("|--------|------------|-----------|")
		for _, c := range cols {
			amb := ""
			if c.Ambiguous {
				amb = "yes"
			}
			r.Printf("| %s | %s | %s |\n", c.Qualified(), c.Confidence, amb)
		}
	}
	if len(details) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Errors"))
		for _, d := range details {
			r.Println(output.FormatKeyValue("Statement "+d.Statement, d.Dialect+": "+d.Error))
		}
	}
}
