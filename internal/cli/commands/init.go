package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a colresolve project",
		Long: `Initialize a directory for colresolve.

This creates:
  - colresolve.yaml with the default settings
  - reports/ with an example Report__Dataset.sql query
  - .gitignore entries for the output and catalog`,
		Example: `  # Initialize in current directory
  colresolve init

  # Initialize in a new directory
  colresolve init my-reports

  # Force overwrite existing files
  colresolve init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(NewCommandContext(cmd), dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(c *CommandContext, dir string, force bool) error {
	r := c.Renderer
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.DefaultConfigFile)
	}

	files, err := copyTemplate("minimal", dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("colresolve project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Put your report queries in reports/ as Report__Dataset.sql")
	r.Println("  2. Run 'colresolve extract reports' to build output/columns.csv")
	r.Println("  3. Run 'colresolve doctor reports' if a file yields no columns")

	return nil
}
