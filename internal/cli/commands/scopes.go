package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/internal/preprocess"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/parser"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

// StatementScopes is the scope tree of one statement.
type StatementScopes struct {
	Statement  int         `json:"statement" yaml:"statement"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	References int         `json:"references" yaml:"references"`
	Scopes     []ScopeInfo `json:"scopes" yaml:"scopes"`
}

// ScopeInfo describes one scope.
type ScopeInfo struct {
	ID        int           `json:"id" yaml:"id"`
	Parent    int           `json:"parent" yaml:"parent"`
	Kind      string        `json:"kind" yaml:"kind"`
	Recursive bool          `json:"recursive,omitempty" yaml:"recursive,omitempty"`
	Bindings  []BindingInfo `json:"bindings,omitempty" yaml:"bindings,omitempty"`
	CTEs      []string      `json:"ctes,omitempty" yaml:"ctes,omitempty"`
}

// BindingInfo describes one alias visible in a scope.
type BindingInfo struct {
	Alias  string `json:"alias" yaml:"alias"`
	Kind   string `json:"kind" yaml:"kind"`
	Target string `json:"target" yaml:"target"`
}

// NewScopesCommand creates the scopes command.
func NewScopesCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "scopes [sql]",
		Short: "Show the scope tree of a SQL script",
		Long: `Parse a SQL script and print, per statement, the scopes the resolver builds:
the root query, set-operation branches, CTE bodies, derived tables and
subqueries, together with the aliases each one declares.

Useful to see why a column was attributed to a table.`,
		Example: `  # Show scopes for an inline query
  colresolve scopes "WITH t AS (SELECT id FROM a) SELECT t.id FROM t"

  # Show scopes of a file as JSON
  colresolve scopes --file report.sql --mode json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)

			sql, err := readSQL(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}
			d, err := dialect.Lookup(dialect.Normalize(cmdCtx.Cfg.Dialect))
			if err != nil {
				return err
			}
			if cmdCtx.Cfg.Preprocess {
				sql = preprocess.Clean(sql)
			}
			return renderScopes(cmdCtx.Renderer, BuildScopes(sql, d))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read SQL from a file")

	return cmd
}

// BuildScopes parses sql and describes the scope tree of every statement.
func BuildScopes(sql string, d *dialect.Dialect) []StatementScopes {
	var out []StatementScopes
	for _, st := range parser.ParseScript(sql, d) {
		entry := StatementScopes{Statement: st.Index + 1, Scopes: []ScopeInfo{}}
		if st.Err != nil {
			entry.Error = st.Err.Error()
			out = append(out, entry)
			continue
		}
		tree, refs, err := resolve.Build(st.Stmt)
		if err != nil {
			entry.Error = err.Error()
		}
		entry.References = len(refs)
		if tree != nil {
			for _, s := range tree.Scopes() {
				entry.Scopes = append(entry.Scopes, scopeInfo(s))
			}
		}
		out = append(out, entry)
	}
	return out
}

func scopeInfo(s *resolve.Scope) ScopeInfo {
	info := ScopeInfo{
		ID:        s.ID,
		Parent:    s.Parent,
		Kind:      s.Kind.String(),
		Recursive: s.RecursiveCTEBody,
	}
	for _, b := range s.Bindings() {
		info.Bindings = append(info.Bindings, BindingInfo{
			Alias:  b.Alias,
			Kind:   refKind(b.Ref),
			Target: b.Ref.Path(),
		})
	}
	for _, c := range s.CTEs() {
		info.CTEs = append(info.CTEs, c.Alias)
	}
	return info
}

func refKind(ref resolve.TableRef) string {
	switch r := ref.(type) {
	case *resolve.Physical:
		return "table"
	case *resolve.CTERef:
		if r.Recursive {
			return "cte (recursive)"
		}
		return "cte"
	case *resolve.Derived:
		return "derived"
	default:
		return "unknown"
	}
}

func renderScopes(r *output.Renderer, stmts []StatementScopes) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if stmts == nil {
			stmts = []StatementScopes{}
		}
		return r.JSON(stmts)
	case output.ModeMarkdown:
		scopesMarkdown(r, stmts)
		return nil
	default:
		enc := yaml.NewEncoder(r.Writer())
		enc.SetIndent(2)
		if err := enc.Encode(stmts); err != nil {
			return fmt.Errorf("failed to encode scopes: %w", err)
		}
		return enc.Close()
	}
}

func scopesMarkdown(r *output.Renderer, stmts []StatementScopes) {
	for _, st := range stmts {
		r.Println(output.FormatHeader(1, fmt.Sprintf("Statement %d", st.Statement)))
		r.Println("")
		if st.Error != "" {
			r.Println(output.FormatKeyValue("Error", st.Error))
		}
		for _, s := range st.Scopes {
			indent := strings.Repeat("  ", depth(st.Scopes, s))
			line := fmt.Sprintf("%s- **%d** %s", indent, s.ID, s.Kind)
			if s.Recursive {
				line += " (recursive arm)"
			}
			r.Println(line)
			for _, b := range s.Bindings {
				r.Printf("%s  - `%s` -> %s `%s`\n", indent, b.Alias, b.Kind, b.Target)
			}
			if len(s.CTEs) > 0 {
				r.Printf("%s  - CTEs: %s\n", indent, strings.Join(s.CTEs, ", "))
			}
		}
		r.Println("")
	}
}

// depth counts the ancestors of s. Parents always precede children.
func depth(scopes []ScopeInfo, s ScopeInfo) int {
	n := 0
	for p := s.Parent; p != resolve.NoScope && p >= 0 && p < len(scopes); p = scopes[p].Parent {
		n++
	}
	return n
}
