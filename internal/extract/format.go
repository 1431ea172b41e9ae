package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/parser"
)

// ErrorContext locates a parse failure for FormatParseError.
type ErrorContext struct {
	Dialect   string // empty means no dialect was configured
	Statement int    // 1-based; 0 when the failure covers the whole input
}

var (
	lineInMessage   = regexp.MustCompile(`(?i)line\s+(\d+)`)
	columnInMessage = regexp.MustCompile(`(?i)col(?:umn)?\s+(\d+)`)
	sgrInMessage    = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// FormatParseError renders err as a multi-line report: error type,
// statement, dialect, message, position, up to two lines of context on
// either side of the failing line, and suggestions.
func FormatParseError(err error, sql string, ec ErrorContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Parse Error (%s)\n", errorTypeName(err))
	if ec.Statement > 0 {
		fmt.Fprintf(&b, "Statement #%d\n", ec.Statement)
	}
	if ec.Dialect != "" {
		fmt.Fprintf(&b, "Dialect: %s\n", ec.Dialect)
	} else {
		b.WriteString("Dialect: Generic SQL\n")
	}
	b.WriteString("\n")

	description := sgrInMessage.ReplaceAllString(err.Error(), "")
	line, col := 0, 0
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		description = pe.Message
		line, col = pe.Pos.Line, pe.Pos.Column
	} else {
		if m := lineInMessage.FindStringSubmatch(description); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
		if m := columnInMessage.FindStringSubmatch(description); m != nil {
			col, _ = strconv.Atoi(m[1])
		}
	}

	fmt.Fprintf(&b, "Error: %s\n", description)
	if line > 0 {
		fmt.Fprintf(&b, "Line: %d\n", line)
	}
	if col > 0 {
		fmt.Fprintf(&b, "Column: %d\n", col)
	}

	if lines := strings.Split(sql, "\n"); line >= 1 && line <= len(lines) {
		b.WriteString("\nContext:\n")
		for i := max(0, line-3); i < min(len(lines), line+2); i++ {
			prefix := "    "
			if i == line-1 {
				prefix = ">>> "
			}
			fmt.Fprintf(&b, "%s%4d: %s\n", prefix, i+1, lines[i])
		}
	}

	b.WriteString("\nSuggestions:")
	lower := strings.ToLower(description)
	if strings.Contains(lower, "unexpected") || strings.Contains(lower, "syntax") {
		b.WriteString("\n  - Check for missing commas, parentheses, or quotes")
		b.WriteString("\n  - Verify SQL syntax matches the specified dialect")
		b.WriteString("\n  - Check for unclosed quotes or parentheses")
	}
	if strings.Contains(lower, "unknown") || strings.Contains(lower, "invalid") ||
		strings.Contains(lower, "not supported") {
		b.WriteString("\n  - Verify table/column names are correct")
		b.WriteString("\n  - Check for reserved keywords that need quoting")
		b.WriteString("\n  - Ensure dialect-specific syntax is correct")
	}
	if ec.Dialect == "" {
		fmt.Fprintf(&b, "\n  - Try specifying a dialect: --dialect %s", strings.Join(dialect.List(), "|"))
		b.WriteString("\n    (mssql, sqlserver and t-sql are accepted as tsql)")
	}
	return b.String()
}

// errorTypeName is the bare type name of err, ParseError for parser
// failures.
func errorTypeName(err error) string {
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return "ParseError"
	}
	name := fmt.Sprintf("%T", err)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(name, "*")
}
