package commands

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
)

// DialectInfo describes one registered dialect.
type DialectInfo struct {
	Name     string   `json:"name"`
	Default  bool     `json:"default,omitempty"`
	Retry    int      `json:"retry_order,omitempty"` // 1-based position, 0 when never tried
	Quotes   []string `json:"quotes"`
	Features []string `json:"features"`
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List supported SQL dialects",
		Long: `List every SQL dialect the parser accepts, with its identifier quoting and
syntax extensions. Without --dialect, files are tried against each dialect in
retry order until one parses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := NewCommandContext(cmd).Renderer
			infos := Dialects()
			switch r.EffectiveMode() {
			case output.ModeJSON:
				return r.JSON(infos)
			case output.ModeMarkdown:
				dialectsMarkdown(r, infos)
			default:
				dialectsText(r, infos)
			}
			return nil
		},
	}
}

// Dialects describes the registered dialects in name order.
func Dialects() []DialectInfo {
	retry := make(map[string]int)
	for i, d := range dialect.RetryOrder() {
		retry[d.Name] = i + 1
	}

	var out []DialectInfo
	for _, name := range dialect.List() {
		d, ok := dialect.Get(name)
		if !ok {
			continue
		}
		info := DialectInfo{
			Name:     d.Name,
			Default:  d.Name == dialect.Default,
			Retry:    retry[d.Name],
			Quotes:   []string{},
			Features: features(d),
		}
		for _, q := range d.Quotes() {
			info.Quotes = append(info.Quotes, string(q.Open)+string(q.Close))
		}
		out = append(out, info)
	}
	return out
}

func features(d *dialect.Dialect) []string {
	out := []string{}
	for _, f := range []struct {
		name string
		on   bool
	}{
		{"TOP", d.SupportsTop()},
		{"APPLY", d.SupportsApply()},
		{"QUALIFY", d.SupportsQualify()},
		{"::", d.SupportsDoubleColonCast()},
		{"#temp", d.AllowsHashIdentifiers()},
		{"MINUS", d.SupportsMinus()},
		{"alias =", d.SupportsAssignmentAlias()},
		{"table hints", d.SupportsTableHints()},
	} {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}

func dialectsText(r *output.Renderer, infos []DialectInfo) {
	r.Header(1, "Dialects")
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Quotes", "Features", "Retry"})
	for _, d := range infos {
		name := d.Name
		if d.Default {
			name += " (default)"
		}
		retry := "-"
		if d.Retry > 0 {
			retry = strconv.Itoa(d.Retry)
		}
		t.AppendRow(table.Row{name, strings.Join(d.Quotes, " "), strings.Join(d.Features, ", "), retry})
	}
	t.Render()
}

func dialectsMarkdown(r *output.Renderer, infos []DialectInfo) {
	r.Println(output.FormatHeader(1, "Dialects"))
	r.Println("")
	r.Println("| Name | Quotes | Features | Retry |")
	r.Println("|------|--------|----------|-------|")
	for _, d := range infos {
		name := d.Name
		if d.Default {
			name += " (default)"
		}
		retry := "-"
		if d.Retry > 0 {
			retry = strconv.Itoa(d.Retry)
		}
		r.Printf("| %s | %s | %s | %s |\n", name, "`"+strings.Join(d.Quotes, " ")+"`", strings.Join(d.Features, ", "), retry)
	}
}
