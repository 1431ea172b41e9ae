// Package preprocess cleans raw SQL files before parsing.
//
// Report exports routinely carry batch separators, session settings,
// DDL, table hints and terminal escape codes that have nothing to do
// with the query being resolved. Clean removes them in a fixed order so
// that the parser sees only query text.
package preprocess

import (
	"html"
	"regexp"
	"strings"
)

// Step is one named rewrite applied by Clean.
type Step struct {
	Name  string
	Apply func(string) string
}

// Steps returns the rewrite pipeline in the order Clean applies it.
func Steps() []Step {
	return []Step{
		{"html-entities", html.UnescapeString},
		{"line-endings", normalizeLineEndings},
		{"comments", StripComments},
		{"batch-separators", stripBatchLines},
		{"set-nocount", replace(setNocountPattern, "")},
		{"set-isolation", replace(isolationPattern, "")},
		{"set-statements", dropSetStatements},
		{"declare", replace(declarePattern, "")},
		{"ddl", replace(ddlPattern, "")},
		{"nolock", stripNolock},
		{"top", stripTop},
		{"ansi-escapes", stripANSI},
		{"escape-literals", stripEscapeLiterals},
		{"control-characters", stripControl},
		{"whitespace", normalizeWhitespace},
	}
}

// Clean runs every step of the pipeline over sql.
func Clean(sql string) string {
	for _, s := range Steps() {
		sql = s.Apply(sql)
	}
	return sql
}

func replace(re *regexp.Regexp, with string) func(string) string {
	return func(s string) string { return re.ReplaceAllString(s, with) }
}

var (
	setNocountPattern = regexp.MustCompile(`(?i)\bSET\s+NOCOUNT\s+(ON|OFF)\s*;?`)
	isolationPattern  = regexp.MustCompile(`(?i)\bSET\s+TRANSACTION\s+ISOLATION\s+LEVEL\s+[^;]+;?`)
	setPrefixPattern  = regexp.MustCompile(`(?i)^\s*SET\s+`)
	updateSetPattern  = regexp.MustCompile(`(?is)\bUPDATE\s+.*\bSET\b`)
	declarePattern    = regexp.MustCompile(`(?i)\bDECLARE\s+[^;]+;?`)
	ddlPattern        = regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP)\s+[^;]+;?`)

	goLinePattern  = regexp.MustCompile(`(?i)^\s*GO(\s+\d+)?\s*;?\s*$`)
	useLinePattern = regexp.MustCompile(`(?i)^\s*USE\s+[^\s;]+\s*;?\s*$`)

	withNolockPattern  = regexp.MustCompile(`(?i)\s+WITH\s*\(\s*NOLOCK\s*\)`)
	bareNolockPattern  = regexp.MustCompile(`(?i)\s*\(\s*NOLOCK\s*\)`)
	topParenPattern    = regexp.MustCompile(`(?i)\bTOP\s*\(\s*\d+\s*\)\s+`)
	topPattern         = regexp.MustCompile(`(?i)\bTOP\s+\d+\s+`)
	ansiPattern        = regexp.MustCompile(`\x1b(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	csiPattern         = regexp.MustCompile(`\x{9b}[0-?]*[ -/]*[@-~]`)
	bareSGRPattern     = regexp.MustCompile(`\[[0-9][0-9;]*m`)
	escapeCharPattern  = regexp.MustCompile(`[\x1b\x{9b}]`)
	hexEscapePattern   = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)
	octalEscapePattern = regexp.MustCompile(`\\0[0-7]{0,2}|\\[1-3][0-7]{2}`)
	controlPattern     = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	zeroWidthPattern   = regexp.MustCompile(`[\x{200b}-\x{200f}\x{feff}]`)
	nonASCIIPattern    = regexp.MustCompile(`[^\x20-\x7e\n\r\t]`)
	blankRunPattern    = regexp.MustCompile(`[ \t]+`)
	newlineRunPattern  = regexp.MustCompile(`\n{2,}`)
	trailingPattern    = regexp.MustCompile(`(?m)[ \t]+$`)
)

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// StripComments removes -- line comments and /* */ block comments that
// occur outside string literals and quoted identifiers. A line comment
// keeps its terminating newline.
func StripComments(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isQuote(c):
			j := skipQuoted(s, i)
			sb.WriteString(s[i:j])
			i = j
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return sb.String()
			}
			i += end + 4
			sb.WriteByte(' ')
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String()
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"' || c == '`' || c == '['
}

// skipQuoted returns the index just past the quoted section opening at
// s[i]. A doubled closer is an escaped closer. An unterminated section
// runs to the end of s.
func skipQuoted(s string, i int) int {
	closer := s[i]
	if closer == '[' {
		closer = ']'
	}
	j := i + 1
	for j < len(s) {
		if s[j] == closer {
			if j+1 < len(s) && s[j+1] == closer {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return j
}

// splitStatements splits s on semicolons outside quoted sections.
func splitStatements(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); {
		switch {
		case isQuote(s[i]):
			i = skipQuoted(s, i)
		case s[i] == ';':
			out = append(out, s[start:i])
			i++
			start = i
		default:
			i++
		}
	}
	return append(out, s[start:])
}

// stripBatchLines drops lines holding only a GO separator or a USE
// statement.
func stripBatchLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if goLinePattern.MatchString(line) || useLinePattern.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// dropSetStatements removes standalone SET statements. The script is
// re-joined with "; " so statement boundaries survive.
func dropSetStatements(s string) string {
	var kept []string
	for _, stmt := range splitStatements(s) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if setPrefixPattern.MatchString(stmt) && !updateSetPattern.MatchString(stmt) {
			continue
		}
		kept = append(kept, stmt)
	}
	return strings.Join(kept, "; ")
}

func stripNolock(s string) string {
	s = withNolockPattern.ReplaceAllString(s, "")
	return bareNolockPattern.ReplaceAllString(s, "")
}

func stripTop(s string) string {
	s = topParenPattern.ReplaceAllString(s, "")
	return topPattern.ReplaceAllString(s, "")
}

// stripANSI removes terminal escape sequences. Sequences that lost their
// ESC byte are only recognised in SGR form ([0;31m) so bracketed
// identifiers such as [Order] survive.
func stripANSI(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = csiPattern.ReplaceAllString(s, "")
	s = bareSGRPattern.ReplaceAllString(s, "")
	return escapeCharPattern.ReplaceAllString(s, "")
}

// stripEscapeLiterals removes backslash escapes (\x1b, \033) copied from
// terminal output.
func stripEscapeLiterals(s string) string {
	s = hexEscapePattern.ReplaceAllString(s, "")
	return octalEscapePattern.ReplaceAllString(s, "")
}

func stripControl(s string) string {
	s = controlPattern.ReplaceAllString(s, "")
	s = zeroWidthPattern.ReplaceAllString(s, "")
	return nonASCIIPattern.ReplaceAllString(s, "")
}

func normalizeWhitespace(s string) string {
	s = blankRunPattern.ReplaceAllString(s, " ")
	s = newlineRunPattern.ReplaceAllString(s, "\n")
	s = trailingPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
