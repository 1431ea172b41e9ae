package config

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/colresolve/internal/cli/output"
	"github.com/leapstack-labs/colresolve/internal/export"
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

// Validate checks every option and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Dialect != "" {
		if _, err := dialect.Lookup(c.Dialect); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Format != "" {
		if _, err := export.ParseFormat(c.Format); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := output.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := resolve.ParseFallbackPolicy(c.FallbackPolicy); err != nil {
		errs = append(errs, err)
	}
	if _, ok := resolve.ParseConfidence(c.MinConfidence); !ok {
		errs = append(errs, fmt.Errorf("unknown confidence %q (want qualified-exact, alias-resolved, heuristic-unqualified or fallback-default)", c.MinConfidence))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.StatementTimeout < 0 {
		errs = append(errs, fmt.Errorf("statement_timeout must not be negative, got %s", c.StatementTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ListingFormat is the explicit format, or the one implied by Output.
func (c *Config) ListingFormat() export.Format {
	if c.Format != "" {
		if f, err := export.ParseFormat(c.Format); err == nil {
			return f
		}
	}
	return export.ResolveLayout(c.Output).Format()
}

// Policy returns the parsed fallback policy.
func (c *Config) Policy() resolve.FallbackPolicy {
	p, _ := resolve.ParseFallbackPolicy(c.FallbackPolicy)
	return p
}

// Confidence returns the parsed minimum confidence.
func (c *Config) Confidence() resolve.Confidence {
	conf, _ := resolve.ParseConfidence(c.MinConfidence)
	return conf
}
