package resolve

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/ident"
)

// ColumnReference is one occurrence of a column token together with the
// scope it appears in. A correlated column inside a subquery belongs to
// the subquery's scope even when it names an outer table.
type ColumnReference struct {
	Qualifier []string // raw leading parts, delimiters kept
	Column    string   // raw column part; "*" for wildcards
	Scope     int
	Node      core.Node
}

// Wildcard reports whether the reference is * or alias.*.
func (r ColumnReference) Wildcard() bool {
	return r.Column == "*"
}

// cteFrame is a CTE whose body is being built.
type cteFrame struct {
	key   string
	owner int // scope holding the declaration
}

// builder walks one statement and fills the scope arena.
type builder struct {
	tree    *Tree
	refs    []ColumnReference
	errs    []error
	derived int
	frames  []cteFrame
}

// Build builds the scope tree for stmt in one traversal and collects
// every column reference with its origin scope, in document order.
// Malformed nodes are reported as StructuralErrors joined into the
// returned error; everything else is still built.
func Build(stmt *core.SelectStmt) (*Tree, []ColumnReference, error) {
	b := &builder{tree: &Tree{}}
	if stmt == nil {
		return b.tree, nil, &StructuralError{Scope: NoScope, Reason: "nil statement"}
	}
	b.statement(stmt, NoScope, ScopeRoot, -1)

	slices.SortStableFunc(b.refs, func(x, y ColumnReference) int {
		return cmp.Compare(x.Node.Pos().Offset, y.Node.Pos().Offset)
	})
	return b.tree, b.refs, errors.Join(b.errs...)
}

func (b *builder) fail(node core.Node, scope int, format string, args ...any) {
	b.errs = append(b.errs, &StructuralError{Node: node, Scope: scope, Reason: fmt.Sprintf(format, args...)})
}

// statement creates a scope for stmt and builds its WITH clause and body.
func (b *builder) statement(stmt *core.SelectStmt, parent int, kind ScopeKind, parentVisible int) int {
	s := b.tree.newScope(parent, kind, parentVisible)
	if stmt.With != nil {
		b.with(s, stmt.With)
	}
	if stmt.Body == nil {
		b.fail(stmt, s.ID, "query has no body")
		return s.ID
	}
	b.body(s, stmt.Body)
	return s.ID
}

// body builds a query body. A lone SELECT binds into s directly; each
// operand of a set operation gets its own sibling scope under s.
func (b *builder) body(s *Scope, body *core.SelectBody) {
	if body.Right == nil && body.Left != nil {
		b.selectCore(s, body.Left)
		return
	}
	for op := body; op != nil; op = op.Right {
		switch {
		case op.Left != nil:
			b.selectCore(b.tree.newScope(s.ID, ScopeBranch, -1), op.Left)
		case op.Nested != nil:
			b.statement(op.Nested, s.ID, ScopeBranch, -1)
		default:
			b.fail(op, s.ID, "set operation operand is empty")
		}
	}
}

// with registers CTE names and builds their bodies. Under RECURSIVE all
// names are declared before any body, so bodies may reference each
// other. Otherwise a CTE sees the ones declared before it, plus itself
// when its body is a set operation (T-SQL recursion needs no keyword).
func (b *builder) with(s *Scope, w *core.WithClause) {
	type pending struct {
		cte *core.CTE
		ref *CTERef
		key string
	}
	var ctes []pending
	for _, cte := range w.CTEs {
		if cte == nil {
			b.fail(w, s.ID, "nil CTE")
			continue
		}
		display, key := ident.Part(cte.Name)
		if key == "" {
			b.fail(cte, s.ID, "CTE has no name")
			continue
		}
		ctes = append(ctes, pending{cte: cte, ref: &CTERef{Name: display}, key: key})
	}

	if w.Recursive {
		for _, p := range ctes {
			s.declareCTE(p.cte.Name, p.ref)
		}
	}

	for _, p := range ctes {
		selfVisible := w.Recursive || isSetOperation(p.cte.Select)
		if !w.Recursive && selfVisible {
			s.declareCTE(p.cte.Name, p.ref)
		}

		if p.cte.Select == nil {
			b.fail(p.cte, s.ID, "CTE %s has no query", p.ref.Name)
		} else {
			b.frames = append(b.frames, cteFrame{key: p.key, owner: s.ID})
			// A CTE body is not correlated with the query that owns the
			// WITH clause, so it sees none of that query's FROM items.
			b.statement(p.cte.Select, s.ID, ScopeCTE, 0)
			b.frames = b.frames[:len(b.frames)-1]
		}

		if !selfVisible {
			s.declareCTE(p.cte.Name, p.ref)
		}
	}
}

func isSetOperation(stmt *core.SelectStmt) bool {
	return stmt != nil && stmt.Body != nil && stmt.Body.Right != nil
}

// selfReference reports whether a CTE name resolved in scope owner is
// the CTE currently being defined.
func (b *builder) selfReference(key string, owner int) bool {
	for _, f := range b.frames {
		if f.key == key && f.owner == owner {
			return true
		}
	}
	return false
}

// selectCore binds the FROM items of sc into s, then collects the column
// references of every clause.
func (b *builder) selectCore(s *Scope, sc *core.SelectCore) {
	if sc.From != nil {
		b.from(s, sc.From)
	}

	b.expr(s, sc.Top)
	aliases := make(map[string]bool, len(sc.Columns))
	for _, item := range sc.Columns {
		if item.Expr == nil {
			b.fail(sc, s.ID, "select item has no expression")
			continue
		}
		b.expr(s, item.Expr)
		if item.Alias != "" {
			_, key := ident.Part(item.Alias)
			aliases[key] = true
		}
	}

	if sc.Where != nil {
		s.filters = append(s.filters, sc.Where)
		b.expr(s, sc.Where)
	}
	for _, g := range sc.GroupBy {
		b.expr(s, g)
	}
	if sc.Having != nil {
		s.filters = append(s.filters, sc.Having)
		b.expr(s, sc.Having)
	}
	for _, w := range sc.Windows {
		b.window(s, w)
	}
	b.expr(s, sc.Qualify)

	// ORDER BY may name select-list aliases; those are not columns.
	for _, o := range sc.OrderBy {
		if c, ok := o.Expr.(*core.ColumnRef); ok && len(c.Parts) == 1 {
			if _, key := ident.Part(c.Parts[0]); aliases[key] {
				continue
			}
		}
		b.expr(s, o.Expr)
	}
	b.expr(s, sc.Limit)
	b.expr(s, sc.Offset)
}

func (b *builder) window(s *Scope, w *core.WindowSpec) {
	if w == nil {
		return
	}
	for _, p := range w.PartitionBy {
		b.expr(s, p)
	}
	for _, o := range w.OrderBy {
		b.expr(s, o.Expr)
	}
}

// from binds the FROM source and each JOIN item in document order and
// records the join predicates for the unqualified resolver.
func (b *builder) from(s *Scope, f *core.FromClause) {
	if f.Source == nil {
		b.fail(f, s.ID, "FROM clause has no source")
		return
	}
	first := b.tableRef(s, f.Source)

	for _, j := range f.Joins {
		if j == nil || j.Right == nil {
			b.fail(f, s.ID, "join has no table")
			continue
		}
		b.tableRef(s, j.Right)
		if j.Condition != nil {
			s.joinConds = append(s.joinConds, j.Condition)
			b.expr(s, j.Condition)
		}
		// USING columns are merged into the leftmost item of the chain.
		if len(j.Using) > 0 && first >= 0 {
			u := usingClause{left: first}
			for _, col := range j.Using {
				_, key := ident.Part(col)
				u.keys = append(u.keys, key)
			}
			s.usings = append(s.usings, u)
		}
	}
}

// tableRef binds one FROM item into s and returns its binding index, or
// -1 when the item is malformed.
func (b *builder) tableRef(s *Scope, ref core.TableRef) int {
	switch t := ref.(type) {
	case *core.TableName:
		display, key := ident.Part(t.Name)
		if key == "" {
			b.fail(t, s.ID, "table reference has no name")
			return -1
		}
		alias := t.Alias
		if alias == "" {
			alias = t.Name
		}
		if t.Schema == "" && t.Catalog == "" {
			if cte, owner, ok := b.tree.lookupCTE(s.ID, key); ok {
				self := b.selfReference(key, owner)
				if self {
					s.RecursiveCTEBody = true
				}
				return s.bind(alias, &CTERef{Name: cte.Name, Recursive: self})
			}
		}
		schema, _ := ident.Part(t.Schema)
		catalog, _ := ident.Part(t.Catalog)
		return s.bind(alias, &Physical{Catalog: catalog, Schema: schema, Table: display})

	case *core.DerivedTable:
		alias := b.aliasOrSynthetic(t.Alias)
		if t.Select == nil {
			b.fail(t, s.ID, "derived table %s has no query", alias)
		} else {
			kind, visible := ScopeDerived, 0
			if t.Lateral {
				kind, visible = ScopeLateral, len(s.bindings)
			}
			b.statement(t.Select, s.ID, kind, visible)
		}
		display, _ := ident.Part(alias)
		return s.bind(alias, &Derived{Alias: display})

	case *core.FuncTable:
		alias := b.aliasOrSynthetic(t.Alias)
		if t.Func != nil {
			b.expr(s, t.Func)
		}
		display, _ := ident.Part(alias)
		return s.bind(alias, &Derived{Alias: display})

	case nil:
		b.fail(nil, s.ID, "nil table reference")
	default:
		b.fail(ref, s.ID, "unsupported table reference %T", ref)
	}
	return -1
}

func (b *builder) aliasOrSynthetic(alias string) string {
	if alias != "" {
		return alias
	}
	b.derived++
	return "derived_" + strconv.Itoa(b.derived)
}

// expr collects column references in e and builds a child scope for
// every subquery boundary inside it.
func (b *builder) expr(s *Scope, e core.Expr) {
	core.WalkExpr(e, func(n core.Expr) bool {
		switch x := n.(type) {
		case *core.ColumnRef:
			if x.Column() == "" {
				b.fail(x, s.ID, "column reference has no name")
				return true
			}
			b.refs = append(b.refs, ColumnReference{
				Qualifier: x.Qualifier(),
				Column:    x.Column(),
				Scope:     s.ID,
				Node:      x,
			})
		case *core.StarExpr:
			b.refs = append(b.refs, ColumnReference{Qualifier: x.Table, Column: "*", Scope: s.ID, Node: x})
		}
		if sub := core.Subquery(n); sub != nil {
			b.statement(sub, s.ID, ScopeSubquery, -1)
		}
		return true
	})
}
