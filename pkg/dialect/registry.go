package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Dialect registry
var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
)

// ErrUnknownDialect is returned by Lookup for names with no registered dialect.
var ErrUnknownDialect = errors.New("unknown dialect")

// aliases maps alternative spellings to registered dialect names.
var aliases = map[string]string{
	"mssql":      TSQL,
	"sqlserver":  TSQL,
	"sql_server": TSQL,
	"sql-server": TSQL,
	"t-sql":      TSQL,
	"postgresql": Postgres,
	"pg":         Postgres,
	"big_query":  BigQuery,
	"generic":    ANSI,
}

// retryOrder is the sequence tried when no dialect is configured.
var retryOrder = []string{ANSI, TSQL, Postgres, MySQL, Snowflake, Oracle, BigQuery}

// Normalize maps a user-supplied dialect name to its canonical form.
// An empty name normalizes to Default; unknown names are returned
// lower-cased and trimmed.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Default
	}
	if canonical, ok := aliases[n]; ok {
		return canonical
	}
	return n
}

// Get returns a dialect by name. Aliases are accepted.
func Get(name string) (*Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[Normalize(name)]
	return d, ok
}

// Lookup is Get with an error for unknown names.
func Lookup(name string) (*Dialect, error) {
	d, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownDialect, name, strings.Join(List(), ", "))
	}
	return d, nil
}

// Register registers a dialect in the global registry.
func Register(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(d.Name)] = d
}

// List returns all registered dialect names (sorted).
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RetryOrder returns the dialects to attempt, in order, when the caller
// has no preference.
func RetryOrder() []*Dialect {
	out := make([]*Dialect, 0, len(retryOrder))
	for _, name := range retryOrder {
		if d, ok := Get(name); ok {
			out = append(out, d)
		}
	}
	return out
}
