package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/colresolve/internal/catalog"
	"github.com/leapstack-labs/colresolve/internal/cli/config"
	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/internal/extract"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded config.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode, _ := output.ParseMode(cfg.Mode)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Extractor builds an extractor from the configuration.
func (c *CommandContext) Extractor() *extract.Extractor {
	return extract.New(extract.Options{
		Dialect:          c.Cfg.Dialect,
		Fallback:         c.Cfg.Policy(),
		Preprocess:       c.Cfg.Preprocess,
		TolerantFallback: c.Cfg.TolerantFallback,
		StatementTimeout: c.Cfg.StatementTimeout,
		Concurrency:      c.Cfg.Concurrency,
		MinConfidence:    c.Cfg.Confidence(),
		Logger:           c.Logger,
	})
}

// OpenCatalog opens the run catalog at path, creating its directory.
// The returned cleanup closes the store.
func (c *CommandContext) OpenCatalog(ctx context.Context, path string) (*catalog.Store, func(), error) {
	if path == "" {
		return nil, nil, fmt.Errorf("no catalog configured (set catalog_path or pass --catalog)")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" && path != ":memory:" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	store := catalog.New(c.Logger)
	if err := store.Open(ctx, path); err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise the defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Output:           config.DefaultOutput,
		Mode:             config.DefaultMode,
		FallbackPolicy:   config.DefaultFallbackPolicy,
		Concurrency:      config.DefaultConcurrency,
		StatementTimeout: config.DefaultStatementTimeout,
		Preprocess:       true,
	}
}
