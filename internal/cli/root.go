// Package cli provides the command-line interface for colresolve.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/cli/commands"
	"github.com/leapstack-labs/colresolve/internal/cli/config"
	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/internal/export"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

var (
	cfgFile string
	cfg     *config.Config
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// rendererKey is used to store renderer in context.
type rendererKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "colresolve",
		Short: "colresolve - scope-aware SQL column resolution",
		Long: `colresolve reads SQL report queries and lists every column they use,
qualified by the table that owns it.

Aliases are resolved through CTEs, derived tables, subqueries, joins and set
operations, across the T-SQL, ANSI, PostgreSQL, MySQL, Snowflake, Oracle and
BigQuery dialects.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), newLogger(cmd.ErrOrStderr(), cfg))

			mode, _ := output.ParseMode(cfg.Mode)
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
			ctx = context.WithValue(ctx, rendererKey{}, renderer)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Scope-aware SQL column resolution
`)

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./colresolve.yaml)")
	pf.StringP("dialect", "d", "", "SQL dialect (empty or auto tries each dialect)")
	pf.StringP("output", "o", "", "Column listing file, or a directory for columns.csv (default: ./output)")
	pf.String("format", "", "Listing format (csv|json|yaml|table|markdown), default from --output extension")
	pf.String("mode", "", "Console output mode (auto|text|markdown|json)")
	pf.String("fallback", "", "Unqualified column fallback (none|first-table|first-table-flag-ambiguous)")
	pf.Duration("timeout", 0, "Resolution time budget per statement (0 disables it)")
	pf.Int("concurrency", 0, "Files processed in parallel")
	pf.Bool("preprocess", true, "Clean up SQL before parsing")
	pf.Bool("tolerant-fallback", false, "Scan tokens for columns when no dialect parses a file")
	pf.String("min-confidence", "", "Drop columns resolved with less confidence")
	pf.Bool("with-confidence", false, "Add a Confidence column to the listing")
	pf.String("catalog", "", "SQLite run catalog (empty disables it)")
	pf.String("log-file", "", "Run log file (default: next to the listing, - disables it)")
	pf.BoolP("verbose", "v", false, "Verbose output")

	registerCompletions(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(commands.VersionInfo{Version: Version, Commit: GitCommit, BuildDate: BuildDate}))
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewResolveCommand())
	rootCmd.AddCommand(commands.NewScopesCommand())
	rootCmd.AddCommand(commands.NewDialectsCommand())
	rootCmd.AddCommand(commands.NewCatalogCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewShellCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

func registerCompletions(rootCmd *cobra.Command) {
	fixed := func(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		}
	}

	_ = rootCmd.RegisterFlagCompletionFunc("mode", fixed("auto", "text", "markdown", "json"))
	_ = rootCmd.RegisterFlagCompletionFunc("dialect", fixed(append([]string{"auto"}, dialect.List()...)...))

	var formats []string
	for _, f := range export.Formats() {
		formats = append(formats, string(f))
	}
	_ = rootCmd.RegisterFlagCompletionFunc("format", fixed(formats...))

	var policies []string
	for _, p := range resolve.FallbackPolicies() {
		policies = append(policies, string(p))
	}
	_ = rootCmd.RegisterFlagCompletionFunc("fallback", fixed(policies...))

	_ = rootCmd.RegisterFlagCompletionFunc("min-confidence", fixed(
		string(resolve.QualifiedExact),
		string(resolve.AliasResolved),
		string(resolve.HeuristicUnqualified),
		string(resolve.FallbackDefault),
	))
}

// newLogger writes warnings to w, or everything with --verbose.
func newLogger(w io.Writer, c *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	// Return default config if none in context
	return &config.Config{
		Output:           config.DefaultOutput,
		Mode:             config.DefaultMode,
		FallbackPolicy:   config.DefaultFallbackPolicy,
		Concurrency:      config.DefaultConcurrency,
		StatementTimeout: config.DefaultStatementTimeout,
		Preprocess:       true,
	}
}

// GetRenderer retrieves the renderer from the command context.
func GetRenderer(ctx context.Context) *output.Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	// Return default renderer if none in context
	return output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto)
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for colresolve.

To load completions:

Bash:
  $ source <(colresolve completion bash)

Zsh:
  $ colresolve completion zsh > "${fpath[1]}/_colresolve"

Fish:
  $ colresolve completion fish | source

PowerShell:
  PS> colresolve completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
