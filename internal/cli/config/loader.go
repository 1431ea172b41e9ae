package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// envPrefix prefixes every environment variable the loader reads.
const envPrefix = "COLRESOLVE_"

// flagKeys maps short flag names to their config keys.
var flagKeys = map[string]string{
	"catalog":  "catalog_path",
	"timeout":  "statement_timeout",
	"fallback": "fallback_policy",
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
	unknownKeys    []string
)

// configIn returns the config file in dir, if any.
func configIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
	unknownKeys = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Without an explicit cfgFile the working directory and its parents are
// searched.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""
	unknownKeys = nil

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"dialect":           "",
		"output":            DefaultOutput,
		"format":            "",
		"mode":              DefaultMode,
		"fallback_policy":   DefaultFallbackPolicy,
		"concurrency":       DefaultConcurrency,
		"statement_timeout": DefaultStatementTimeout.String(),
		"preprocess":        true,
		"tolerant_fallback": false,
		"min_confidence":    "",
		"with_confidence":   false,
		"catalog_path":      "",
		"log_file":          "",
		"verbose":           false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	cwd, _ := os.Getwd()
	if cfgFile == "" && cwd != "" {
		cfgFile = findConfigUpward(cwd)
	}
	projectRoot := cwd
	fileK := koanf.New(".")
	if cfgFile != "" {
		if err := fileK.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if err := k.Merge(fileK); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment variables
	// Transform: COLRESOLVE_FALLBACK_POLICY -> fallback_policy
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[f.Name]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	var md mapstructure.Metadata
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Metadata:         &md,
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	unknownKeys = md.Unused
	sort.Strings(unknownKeys)
	if cfg.Dialect == "auto" {
		cfg.Dialect = ""
	}

	// Paths from the config file are relative to the file's directory;
	// flag and env values stay relative to the working directory.
	cfg.ProjectRoot = projectRoot
	fromFile := func(key, path string) string {
		if !fileK.Exists(key) || overridden(key, flags) {
			return path
		}
		return resolvePathRelativeTo(path, projectRoot)
	}
	cfg.Output = fromFile("output", cfg.Output)
	cfg.CatalogPath = fromFile("catalog_path", cfg.CatalogPath)
	if cfg.LogFile != DisabledLogFile {
		cfg.LogFile = fromFile("log_file", cfg.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	currentConfig = &cfg
	return &cfg, nil
}

// overridden reports whether an env var or a changed flag supplied key.
func overridden(key string, flags *pflag.FlagSet) bool {
	if _, ok := os.LookupEnv(envPrefix + strings.ToUpper(key)); ok {
		return true
	}
	if flags == nil {
		return false
	}
	for name, mapped := range flagKeys {
		if mapped == key && flags.Changed(name) {
			return true
		}
	}
	return flags.Changed(strings.ReplaceAll(key, "_", "-"))
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// GetCurrentConfig returns the configuration loaded by the last
// successful LoadConfig, or nil.
func GetCurrentConfig() *Config {
	return currentConfig
}

// SetCurrentConfig replaces the current configuration. Used for testing.
func SetCurrentConfig(cfg *Config) {
	currentConfig = cfg
}

// UnknownKeys lists the settings from the config file or environment
// that no configuration field uses, as of the last LoadConfig.
func UnknownKeys() []string {
	return append([]string(nil), unknownKeys...)
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
