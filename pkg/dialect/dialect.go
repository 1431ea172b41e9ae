// Package dialect describes the lexical and syntactic differences between the
// SQL dialects the parser accepts.
//
// A Dialect only carries the switches the lexer and parser consult:
// identifier quoting, T-SQL extensions (TOP, APPLY, #temp names) and
// dialect operators such as the :: cast. Concrete dialects are registered
// from builtin.go.
package dialect

import "strings"

// Quote is one identifier delimiter pair.
type Quote struct {
	Open  byte
	Close byte
}

// Dialect is an immutable set of parser switches.
type Dialect struct {
	Name string

	quotes          []Quote
	top             bool
	apply           bool
	qualify         bool
	doubleColonCast bool
	hashIdentifiers bool
	minusSetOp      bool
	assignAlias     bool
	tableHints      bool
}

// QuoteFor returns the closing delimiter when ch opens a quoted identifier.
func (d *Dialect) QuoteFor(ch byte) (byte, bool) {
	for _, q := range d.quotes {
		if q.Open == ch {
			return q.Close, true
		}
	}
	return 0, false
}

// Quotes returns the identifier delimiters in declaration order.
func (d *Dialect) Quotes() []Quote {
	out := make([]Quote, len(d.quotes))
	copy(out, d.quotes)
	return out
}

// SupportsTop reports whether SELECT TOP n is accepted.
func (d *Dialect) SupportsTop() bool { return d.top }

// SupportsApply reports whether CROSS APPLY / OUTER APPLY are accepted.
func (d *Dialect) SupportsApply() bool { return d.apply }

// SupportsQualify reports whether a QUALIFY clause is accepted.
func (d *Dialect) SupportsQualify() bool { return d.qualify }

// SupportsDoubleColonCast reports whether expr::type is accepted.
func (d *Dialect) SupportsDoubleColonCast() bool { return d.doubleColonCast }

// AllowsHashIdentifiers reports whether identifiers may start with '#'
// (T-SQL temp tables).
func (d *Dialect) AllowsHashIdentifiers() bool { return d.hashIdentifiers }

// SupportsMinus reports whether MINUS is a synonym for EXCEPT.
func (d *Dialect) SupportsMinus() bool { return d.minusSetOp }

// SupportsAssignmentAlias reports whether "SELECT alias = expr" names a
// projection (T-SQL).
func (d *Dialect) SupportsAssignmentAlias() bool { return d.assignAlias }

// SupportsTableHints reports whether WITH (NOLOCK)-style hints may follow
// a table name.
func (d *Dialect) SupportsTableHints() bool { return d.tableHints }

// ---------- Builder ----------

// Builder assembles a Dialect.
type Builder struct {
	d *Dialect
}

// NewDialect starts a dialect definition. Names are stored lower-case.
func NewDialect(name string) *Builder {
	return &Builder{d: &Dialect{Name: strings.ToLower(name)}}
}

// Identifiers adds an identifier delimiter pair, e.g. `[` and `]`.
func (b *Builder) Identifiers(open, closing string) *Builder {
	if len(open) == 1 && len(closing) == 1 {
		b.d.quotes = append(b.d.quotes, Quote{Open: open[0], Close: closing[0]})
	}
	return b
}

// Top enables SELECT TOP n.
func (b *Builder) Top() *Builder {
	b.d.top = true
	return b
}

// Apply enables CROSS/OUTER APPLY.
func (b *Builder) Apply() *Builder {
	b.d.apply = true
	return b
}

// Qualify enables the QUALIFY clause.
func (b *Builder) Qualify() *Builder {
	b.d.qualify = true
	return b
}

// DoubleColonCast enables the :: cast operator.
func (b *Builder) DoubleColonCast() *Builder {
	b.d.doubleColonCast = true
	return b
}

// HashIdentifiers allows #name identifiers.
func (b *Builder) HashIdentifiers() *Builder {
	b.d.hashIdentifiers = true
	return b
}

// Minus enables MINUS as a set operator.
func (b *Builder) Minus() *Builder {
	b.d.minusSetOp = true
	return b
}

// AssignmentAlias enables "SELECT alias = expr".
func (b *Builder) AssignmentAlias() *Builder {
	b.d.assignAlias = true
	return b
}

// TableHints enables WITH (...) table hints.
func (b *Builder) TableHints() *Builder {
	b.d.tableHints = true
	return b
}

// Build returns the finished dialect. A dialect with no delimiters
// gets ANSI double quotes.
func (b *Builder) Build() *Dialect {
	if len(b.d.quotes) == 0 {
		b.d.quotes = []Quote{{Open: '"', Close: '"'}}
	}
	return b.d
}
