package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/catalog"
	"github.com/leapstack-labs/colresolve/internal/cli/output"
)

// NewCatalogCommand creates the catalog command and its subcommands.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect saved extraction runs",
		Long: `Inspect the SQLite run catalog. Every extract run is saved there when
catalog_path is configured or --catalog is passed.`,
		Example: `  # List recent runs
  colresolve catalog list --catalog runs.db

  # Columns of the latest run
  colresolve catalog columns

  # Which reports use a column
  colresolve catalog find dbo.orders.total`,
	}

	cmd.AddCommand(newCatalogListCommand())
	cmd.AddCommand(newCatalogColumnsCommand())
	cmd.AddCommand(newCatalogFindCommand())
	cmd.AddCommand(newCatalogDeleteCommand())

	return cmd
}

// withStore opens the configured catalog for the duration of fn.
func withStore(cmd *cobra.Command, fn func(c *CommandContext, store *catalog.Store) error) error {
	c := NewCommandContext(cmd)
	store, cleanup, err := c.OpenCatalog(cmd.Context(), c.Cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(c, store)
}

func newCatalogListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(c *CommandContext, store *catalog.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return renderRuns(c.Renderer, runs)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func newCatalogColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns [run-id]",
		Short: "List the columns recorded by a run (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(c *CommandContext, store *catalog.Store) error {
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				refs, err := store.ColumnsForRun(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				return renderRefs(c.Renderer, fmt.Sprintf("Run %s", run.ID), refs)
			})
		},
	}
}

func newCatalogFindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "find <column>",
		Short: "Find the reports that reference a qualified column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(c *CommandContext, store *catalog.Store) error {
				refs, err := store.FindColumn(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderRefs(c.Renderer, args[0], refs)
			})
		},
	}
}

func newCatalogDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(c *CommandContext, store *catalog.Store) error {
				if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
					return err
				}
				if c.Renderer.EffectiveMode() == output.ModeJSON {
					return c.Renderer.JSON(map[string]string{"deleted": args[0]})
				}
				c.Renderer.Success("Deleted run " + args[0])
				return nil
			})
		},
	}
}

func renderRuns(r *output.Renderer, runs []*catalog.Run) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if runs == nil {
			runs = []*catalog.Run{}
		}
		return r.JSON(runs)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Runs (%d)", len(runs))))
		r.Println("")
		if len(runs) == 0 {
			return nil
		}
		r.Println("| Run | Started | Dialect | Files | OK | Zero | Failed | Columns |")
		r.Println("|-----|---------|---------|-------|----|------|--------|---------|")
		for _, run := range runs {
			r.Printf("| %s | %s | %s | %d | %d | %d | %d | %d |\n",
				run.ID, run.StartedAt.Format(time.DateTime), run.Dialect,
				run.Files, run.Successful, run.ZeroColumns, run.Failed, run.Columns)
		}
		return nil
	}

	if len(runs) == 0 {
		r.Muted("No runs saved.")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Dialect", "Files", "OK", "Zero", "Failed", "Columns"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID, run.StartedAt.Local().Format(time.DateTime), run.Dialect,
			run.Files, run.Successful, run.ZeroColumns, run.Failed, run.Columns,
		})
	}
	t.Render()
	return nil
}

func renderRefs(r *output.Renderer, title string, refs []catalog.ColumnRef) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if refs == nil {
			refs = []catalog.ColumnRef{}
		}
		return r.JSON(refs)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("%s (%d)", title, len(refs))))
		r.Println("")
		if len(refs) == 0 {
			return nil
		}
		r.Println("| Report | Dataset | Column | Confidence | Path |")
		r.Println("|--------|---------|--------|------------|------|")
		for _, ref := range refs {
			r.Printf("| %s | %s | %s | %s | %s |\n", ref.Report, ref.Dataset, ref.Column, ref.Confidence, ref.Path)
		}
		return nil
	}

	r.Header(1, title)
	if len(refs) == 0 {
		r.Muted("No columns found.")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Report", "Dataset", "Column", "Confidence"})
	for _, ref := range refs {
		t.AppendRow(table.Row{ref.Report, ref.Dataset, ref.Column, ref.Confidence})
	}
	t.Render()
	r.Muted(fmt.Sprintf("(%d columns)", len(refs)))
	return nil
}
