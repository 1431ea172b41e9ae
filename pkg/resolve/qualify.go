package resolve

import (
	"strings"

	"github.com/leapstack-labs/colresolve/pkg/ident"
)

// Confidence tags how an owner was determined.
type Confidence string

// Confidence levels, strongest first.
const (
	// QualifiedExact: the qualifier named the table itself, or a path
	// that is not bound in any scope.
	QualifiedExact Confidence = "qualified-exact"
	// AliasResolved: the qualifier was an alias, or the column was
	// unqualified with a single FROM item in scope.
	AliasResolved Confidence = "alias-resolved"
	// HeuristicUnqualified: an unqualified column attributed through a
	// predicate scan or a fallback policy.
	HeuristicUnqualified Confidence = "heuristic-unqualified"
	// FallbackDefault: produced by the tolerant extractor after the
	// parser failed.
	FallbackDefault Confidence = "fallback-default"
)

var confidenceRank = map[Confidence]int{
	QualifiedExact:       3,
	AliasResolved:        2,
	HeuristicUnqualified: 1,
	FallbackDefault:      0,
}

// Rank orders confidence levels; higher is stronger. Unknown levels
// rank below FallbackDefault.
func (c Confidence) Rank() int {
	if r, ok := confidenceRank[c]; ok {
		return r
	}
	return -1
}

// ParseConfidence parses a confidence name. Empty means FallbackDefault,
// the level that admits everything.
func ParseConfidence(s string) (Confidence, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FallbackDefault, true
	}
	c := Confidence(s)
	_, ok := confidenceRank[c]
	return c, ok
}

// ResolvedColumn is one emitted column.
type ResolvedColumn struct {
	Owner      TableRef // never nil for emitted columns
	Column     string   // display case, delimiters removed
	Confidence Confidence
	// Ambiguous is set by FallbackFirstTableFlagged when Owner is a guess.
	Ambiguous bool
}

// Qualified returns owner.column, skipping empty owner parts.
func (c ResolvedColumn) Qualified() string {
	if c.Owner == nil {
		return c.Column
	}
	if path := c.Owner.Path(); path != "" {
		return path + "." + c.Column
	}
	return c.Column
}

// Qualify resolves one reference. It reports false for wildcards, for
// qualifiers that name no visible alias, and for unqualified columns
// that stay Unresolved or Ambiguous under the fallback policy.
func (r *Resolver) Qualify(ref ColumnReference) (ResolvedColumn, bool) {
	if ref.Wildcard() {
		return ResolvedColumn{}, false
	}
	column, key := ident.Part(ref.Column)
	if key == "" || column == "*" {
		return ResolvedColumn{}, false
	}

	if len(ref.Qualifier) == 0 {
		owner := r.ResolveUnqualified(ref.Scope, ref.Column)
		if owner.Ref == nil {
			r.logger.Debug("unqualified column dropped",
				"column", column, "scope", ref.Scope, "owner", owner.Kind.String())
			return ResolvedColumn{}, false
		}
		conf := AliasResolved
		if owner.Heuristic {
			conf = HeuristicUnqualified
		}
		return ResolvedColumn{
			Owner:      owner.Ref,
			Column:     column,
			Confidence: conf,
			Ambiguous:  owner.Kind == Ambiguous,
		}, true
	}

	owner, conf, ok := r.qualifiedOwner(ref.Scope, ref.Qualifier)
	if !ok {
		r.logger.Debug("unresolved alias",
			"qualifier", strings.Join(ref.Qualifier, "."), "column", column, "scope", ref.Scope)
		return ResolvedColumn{}, false
	}
	return ResolvedColumn{Owner: owner, Column: column, Confidence: conf}, true
}

// qualifiedOwner resolves a qualifier. The last part is the alias
// candidate. Leading parts must agree with a physical binding's schema
// and catalog; a multipart qualifier that matches no binding is taken
// as a physical path.
func (r *Resolver) qualifiedOwner(scope int, qualifier []string) (TableRef, Confidence, bool) {
	parts := make([]string, len(qualifier))
	for i, q := range qualifier {
		parts[i], _ = ident.Part(q)
	}
	last := qualifier[len(qualifier)-1]

	b, ok := r.resolveBinding(scope, last)
	if ok && len(qualifier) == 1 {
		return b.Ref, bindingConfidence(b), true
	}
	if ok {
		if p, phys := b.Ref.(*Physical); phys && pathMatches(p, parts[:len(parts)-1]) {
			return p, QualifiedExact, true
		}
	}
	if len(qualifier) == 1 {
		return nil, "", false
	}
	return PhysicalFromParts(parts), QualifiedExact, true
}

// bindingConfidence is QualifiedExact when the alias is the bound name
// itself and AliasResolved when a distinct alias was declared.
func bindingConfidence(b Binding) Confidence {
	var name string
	switch t := b.Ref.(type) {
	case *Physical:
		name = t.Table
	case *CTERef:
		name = t.Name
	case *Derived:
		// a derived table is only reachable through its alias
		return AliasResolved
	}
	if ident.Key(name) == b.Key {
		return QualifiedExact
	}
	return AliasResolved
}

// pathMatches reports whether leading (schema, or catalog and schema)
// agrees with p, case-insensitively. Parts p does not carry are not
// checked.
func pathMatches(p *Physical, leading []string) bool {
	want := []string{p.Catalog, p.Schema}
	for i := range leading {
		got := leading[len(leading)-1-i]
		if i >= len(want) {
			return false
		}
		w := want[len(want)-1-i]
		if w != "" && ident.Key(w) != ident.Key(got) {
			return false
		}
	}
	return true
}

// PhysicalFromParts builds a Physical from unquoted name parts, table
// last. A fourth leading part (linked server) is dropped.
func PhysicalFromParts(parts []string) *Physical {
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	switch len(parts) {
	case 0:
		return &Physical{}
	case 1:
		return &Physical{Table: parts[0]}
	case 2:
		return &Physical{Schema: parts[0], Table: parts[1]}
	default:
		return &Physical{Catalog: parts[0], Schema: parts[1], Table: parts[2]}
	}
}
