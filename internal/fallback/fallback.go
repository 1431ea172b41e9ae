// Package fallback recovers qualified column references from SQL the
// parser rejected.
//
// Extract works on the token stream alone. It records the tables named
// after FROM, JOIN and APPLY together with their aliases, then reports
// every dotted name outside those table positions as owner.column.
// Unqualified columns are never reported: without a tree there is no
// scope to attribute them to.
package fallback

import (
	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/ident"
	"github.com/leapstack-labs/colresolve/pkg/parser"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
	"github.com/leapstack-labs/colresolve/pkg/token"
)

// Extract returns every qualified column reference found in sql, in
// source order, with confidence resolve.FallbackDefault. A nil dialect
// means dialect.Default.
func Extract(sql string, d *dialect.Dialect) []resolve.ResolvedColumn {
	if d == nil {
		d, _ = dialect.Get(dialect.Default)
	}
	s := &scanner{toks: parser.Tokenize(sql, d), aliases: make(map[string]*resolve.Physical)}
	s.collectTables()
	return s.columns()
}

type scanner struct {
	toks []token.Token
	// table marks token indexes that belong to a FROM item name
	table   map[int]bool
	aliases map[string]*resolve.Physical
}

func (s *scanner) at(i int) token.Token {
	if i < 0 || i >= len(s.toks) {
		return token.Token{Type: token.EOF}
	}
	return s.toks[i]
}

// name reads a dotted name starting at i and returns the raw parts and
// the index after the name. A name ending in .* stops before the dot.
func (s *scanner) name(i int) ([]string, int) {
	if !isNamePart(s.at(i), true) {
		return nil, i
	}
	parts := []string{s.at(i).Literal}
	i++
	for s.at(i).Type == token.DOT && isNamePart(s.at(i+1), false) {
		parts = append(parts, s.at(i+1).Literal)
		i += 2
	}
	return parts, i
}

// isNamePart accepts identifiers, and keywords after a dot where any
// word can be a column name.
func isNamePart(t token.Token, first bool) bool {
	if t.Type == token.IDENT {
		return true
	}
	return !first && token.IsKeyword(t.Type)
}

// collectTables binds the names after FROM, JOIN and APPLY. A FROM
// inside call parentheses, as in EXTRACT(YEAR FROM d), is not a clause.
func (s *scanner) collectTables() {
	s.table = make(map[int]bool)
	var calls []bool
	for i := 0; i < len(s.toks); i++ {
		switch s.toks[i].Type {
		case token.LPAREN:
			calls = append(calls, s.at(i-1).Type == token.IDENT)
			continue
		case token.RPAREN:
			if len(calls) > 0 {
				calls = calls[:len(calls)-1]
			}
			continue
		case token.FROM:
			if len(calls) > 0 && calls[len(calls)-1] {
				continue
			}
		case token.JOIN, token.APPLY:
		default:
			continue
		}
		for j := i + 1; ; {
			next := s.tableItem(j)
			if s.at(next).Type != token.COMMA || next == j {
				break
			}
			j = next + 1
		}
	}
}

// tableItem reads table [AS] alias at i and returns the index after it.
func (s *scanner) tableItem(i int) int {
	parts, end := s.name(i)
	if len(parts) == 0 || s.at(end).Type == token.LPAREN {
		return i
	}
	for k := i; k < end; k++ {
		s.table[k] = true
	}

	names := make([]string, len(parts))
	for k, p := range parts {
		names[k], _ = ident.Part(p)
		if names[k] == "" {
			return end
		}
	}
	phys := resolve.PhysicalFromParts(names)
	s.bind(names[len(names)-1], phys)

	j := end
	if s.at(j).Type == token.AS {
		j++
	}
	if s.at(j).Type == token.IDENT {
		if alias, _ := ident.Part(s.at(j).Literal); alias != "" {
			s.bind(alias, phys)
			s.table[j] = true
			return j + 1
		}
	}
	return end
}

// bind keeps the first table bound to a name.
func (s *scanner) bind(name string, p *resolve.Physical) {
	key := ident.Key(name)
	if _, dup := s.aliases[key]; !dup {
		s.aliases[key] = p
	}
}

func (s *scanner) columns() []resolve.ResolvedColumn {
	var out []resolve.ResolvedColumn
	for i := 0; i < len(s.toks); {
		if s.table[i] || (i > 0 && s.toks[i-1].Type == token.DOT) {
			i++
			continue
		}
		parts, end := s.name(i)
		if len(parts) < 2 {
			i++
			continue
		}
		i = end
		// wildcards and function calls
		if s.at(end).Type == token.LPAREN || (s.at(end).Type == token.DOT && s.at(end+1).Type == token.STAR) {
			continue
		}
		if col, ok := s.column(parts); ok {
			out = append(out, col)
		}
	}
	return out
}

func (s *scanner) column(parts []string) (resolve.ResolvedColumn, bool) {
	names := make([]string, len(parts))
	for k, p := range parts {
		names[k], _ = ident.Part(p)
		if names[k] == "" {
			return resolve.ResolvedColumn{}, false
		}
	}
	column := names[len(names)-1]
	qualifier := names[:len(names)-1]

	owner, ok := s.aliases[ident.Key(qualifier[len(qualifier)-1])]
	if !ok || len(qualifier) > 1 {
		owner = resolve.PhysicalFromParts(qualifier)
	}
	return resolve.ResolvedColumn{
		Owner:      owner,
		Column:     column,
		Confidence: resolve.FallbackDefault,
	}, true
}
