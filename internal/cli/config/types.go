// Package config loads colresolve CLI configuration from defaults, a
// colresolve.yaml file, COLRESOLVE_ environment variables and flags.
package config

import (
	"time"

	"github.com/leapstack-labs/colresolve/internal/export"
)

// Config holds all CLI configuration options.
type Config struct {
	// Dialect is a dialect name; empty or "auto" tries every dialect.
	Dialect string `koanf:"dialect"`
	// Output is the listing file, or a directory receiving columns.csv.
	Output string `koanf:"output"`
	// Format overrides the listing format inferred from Output.
	Format string `koanf:"format"`
	// Mode is the console rendering mode (auto|text|markdown|json).
	Mode             string        `koanf:"mode"`
	FallbackPolicy   string        `koanf:"fallback_policy"`
	Concurrency      int           `koanf:"concurrency"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
	Preprocess       bool          `koanf:"preprocess"`
	TolerantFallback bool          `koanf:"tolerant_fallback"`
	MinConfidence    string        `koanf:"min_confidence"`
	WithConfidence   bool          `koanf:"with_confidence"`
	// CatalogPath enables the SQLite run catalog when set.
	CatalogPath string `koanf:"catalog_path"`
	// LogFile overrides the log written next to the listing. "-" disables it.
	LogFile string `koanf:"log_file"`
	Verbose bool   `koanf:"verbose"`

	// ProjectRoot is the directory holding the config file, or the
	// working directory.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultConfigFile       = "colresolve.yaml"
	DefaultMode             = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultFallbackPolicy   = "none"
	DefaultConcurrency      = 4
	DefaultStatementTimeout = 30 * time.Second
	DefaultOutput           = export.DefaultDir
	// DisabledLogFile turns the run log off.
	DisabledLogFile = "-"
)

// configFileNames are searched in order.
var configFileNames = []string{"colresolve.yaml", "colresolve.yml", ".colresolve.yaml"}
