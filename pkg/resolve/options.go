package resolve

import (
	"fmt"
	"log/slog"
	"strings"
)

// FallbackPolicy decides what happens to an unqualified column that no
// heuristic could attribute to one of several FROM items.
type FallbackPolicy string

// Fallback policies.
const (
	// FallbackNone omits the column.
	FallbackNone FallbackPolicy = "none"
	// FallbackFirstTable attributes it to the first FROM item.
	FallbackFirstTable FallbackPolicy = "first-table"
	// FallbackFirstTableFlagged attributes it to the first FROM item and
	// sets ResolvedColumn.Ambiguous so exporters can mark the row.
	FallbackFirstTableFlagged FallbackPolicy = "first-table-flag-ambiguous"
)

// FallbackPolicies lists every policy in documentation order.
func FallbackPolicies() []FallbackPolicy {
	return []FallbackPolicy{FallbackNone, FallbackFirstTable, FallbackFirstTableFlagged}
}

// ParseFallbackPolicy parses a policy name. Empty means FallbackNone.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FallbackNone, nil
	}
	for _, p := range FallbackPolicies() {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown fallback policy %q (want none, first-table or first-table-flag-ambiguous)", s)
}

// Options configures resolution.
type Options struct {
	Fallback FallbackPolicy
	// Logger receives debug records for columns that were dropped.
	// Nil discards them.
	Logger *slog.Logger
}

func (o Options) fallback() FallbackPolicy {
	if o.Fallback == "" {
		return FallbackNone
	}
	return o.Fallback
}
