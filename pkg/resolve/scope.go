package resolve

import (
	"strings"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/ident"
)

// NoScope is the parent index of a root scope.
const NoScope = -1

// ScopeKind tells what introduced a scope.
type ScopeKind int

// Scope kinds.
const (
	ScopeRoot     ScopeKind = iota // outermost scope of a statement
	ScopeBranch                    // one operand of UNION / INTERSECT / EXCEPT
	ScopeCTE                       // body of a common table expression
	ScopeDerived                   // subquery in FROM
	ScopeLateral                   // LATERAL subquery or APPLY right side
	ScopeSubquery                  // scalar, IN or EXISTS subquery
)

var scopeKindNames = [...]string{"root", "branch", "cte", "derived", "lateral", "subquery"}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return "unknown"
}

// ---------- Table references ----------

// TableRef is the target an alias is bound to. The set of implementations
// is closed: *Physical, *CTERef and *Derived.
type TableRef interface {
	// Path is the dotted owner path used as the prefix of a qualified
	// column, in display case.
	Path() string
	tableRef()
}

// Physical is a base table, optionally qualified by schema and catalog.
type Physical struct {
	Catalog string
	Schema  string
	Table   string
}

// Path joins the non-empty parts.
func (p *Physical) Path() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Catalog, p.Schema, p.Table} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ".")
}

func (*Physical) tableRef() {}

// CTERef is a reference to a common table expression. Recursive is set
// when the reference occurs inside the CTE's own body.
type CTERef struct {
	Name      string
	Recursive bool
}

// Path returns the CTE name.
func (c *CTERef) Path() string { return c.Name }

func (*CTERef) tableRef() {}

// Derived is a subquery or table function in FROM. It has no physical
// backing; Alias is the declared alias or a synthetic derived_N.
type Derived struct {
	Alias string
}

// Path returns the alias.
func (d *Derived) Path() string { return d.Alias }

func (*Derived) tableRef() {}

// ---------- Scopes ----------

// Binding is one alias visible in a scope.
type Binding struct {
	Alias string // original case, delimiters removed
	Key   string // case-folded
	Ref   TableRef
}

// usingClause records a JOIN ... USING column list and the binding on
// its left side.
type usingClause struct {
	keys []string
	left int // index into Scope.bindings
}

// Scope is one name-resolution context.
type Scope struct {
	ID     int
	Parent int
	Kind   ScopeKind

	// RecursiveCTEBody marks the recursive arm of a recursive CTE: the
	// branch whose FROM list references the CTE being defined.
	RecursiveCTEBody bool

	bindings []Binding
	index    map[string]int

	// ctes holds CTE names declared by a WITH clause attached here.
	// They are looked up by FROM items, never by column qualifiers.
	ctes     []Binding
	cteIndex map[string]int

	// parentVisible limits how many of the parent's bindings this scope
	// sees: a FROM subquery only sees items declared to its left. -1
	// means all of them.
	parentVisible int

	// Predicates consulted by the unqualified resolver.
	joinConds []core.Expr
	usings    []usingClause
	filters   []core.Expr // WHERE, then HAVING
}

// Bindings returns the scope's bindings in declaration order.
func (s *Scope) Bindings() []Binding {
	return s.bindings
}

// CTEs returns the CTE names declared in this scope.
func (s *Scope) CTEs() []Binding {
	return s.ctes
}

// bind adds an alias. The first declaration of a key wins; later ones
// are dropped. It returns the index of the binding that owns the key.
func (s *Scope) bind(alias string, ref TableRef) int {
	display, key := ident.Part(alias)
	if key == "" {
		display, key = alias, ident.Key(alias)
	}
	if i, dup := s.index[key]; dup {
		return i
	}
	s.index[key] = len(s.bindings)
	s.bindings = append(s.bindings, Binding{Alias: display, Key: key, Ref: ref})
	return len(s.bindings) - 1
}

// declareCTE registers a CTE name, first declaration wins.
func (s *Scope) declareCTE(name string, ref *CTERef) {
	_, key := ident.Part(name)
	if _, dup := s.cteIndex[key]; dup {
		return
	}
	s.cteIndex[key] = len(s.ctes)
	s.ctes = append(s.ctes, Binding{Alias: ref.Name, Key: key, Ref: ref})
}

// find looks key up among the first limit bindings (all when limit < 0).
func (s *Scope) find(key string, limit int) (Binding, bool) {
	i, ok := s.index[key]
	if !ok || (limit >= 0 && i >= limit) {
		return Binding{}, false
	}
	return s.bindings[i], true
}

// visible returns the first limit bindings (all when limit < 0).
func (s *Scope) visible(limit int) []Binding {
	if limit < 0 || limit > len(s.bindings) {
		return s.bindings
	}
	return s.bindings[:limit]
}

// Tree is the arena of scopes built for one statement.
type Tree struct {
	scopes []*Scope
}

// Len returns the number of scopes.
func (t *Tree) Len() int { return len(t.scopes) }

// Scope returns the scope with the given ID, or nil.
func (t *Tree) Scope(id int) *Scope {
	if id < 0 || id >= len(t.scopes) {
		return nil
	}
	return t.scopes[id]
}

// Scopes returns all scopes in creation (document) order.
func (t *Tree) Scopes() []*Scope { return t.scopes }

// Children returns the IDs of the scopes whose parent is id.
func (t *Tree) Children(id int) []int {
	var out []int
	for _, s := range t.scopes {
		if s.Parent == id {
			out = append(out, s.ID)
		}
	}
	return out
}

func (t *Tree) newScope(parent int, kind ScopeKind, parentVisible int) *Scope {
	s := &Scope{
		ID:            len(t.scopes),
		Parent:        parent,
		Kind:          kind,
		index:         make(map[string]int),
		cteIndex:      make(map[string]int),
		parentVisible: parentVisible,
	}
	t.scopes = append(t.scopes, s)
	return s
}

// lookup walks from scope id outward and returns the innermost binding
// for key.
func (t *Tree) lookup(id int, key string) (Binding, bool) {
	limit := -1
	for s := t.Scope(id); s != nil; s = t.Scope(s.Parent) {
		if b, ok := s.find(key, limit); ok {
			return b, true
		}
		limit = s.parentVisible
	}
	return Binding{}, false
}

// lookupCTE finds a visible CTE declaration by key.
func (t *Tree) lookupCTE(id int, key string) (*CTERef, int, bool) {
	for s := t.Scope(id); s != nil; s = t.Scope(s.Parent) {
		if i, ok := s.cteIndex[key]; ok {
			return s.ctes[i].Ref.(*CTERef), s.ID, true
		}
	}
	return nil, NoScope, false
}
