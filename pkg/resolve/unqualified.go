package resolve

import (
	"github.com/leapstack-labs/colresolve/pkg/core"
	"github.com/leapstack-labs/colresolve/pkg/ident"
)

// OwnerKind classifies the outcome of unqualified resolution.
type OwnerKind int

// Owner kinds.
const (
	Unresolved OwnerKind = iota
	Single
	Ambiguous
)

func (k OwnerKind) String() string {
	switch k {
	case Single:
		return "single"
	case Ambiguous:
		return "ambiguous"
	default:
		return "unresolved"
	}
}

// Owner is the table an unqualified column was attributed to.
type Owner struct {
	Kind OwnerKind
	// Ref is set for Single, and for Ambiguous when the flagging fallback
	// policy picked the first FROM item.
	Ref TableRef
	// Heuristic is set when the owner came from a predicate scan or a
	// fallback policy rather than from a lone FROM item.
	Heuristic bool
}

// ResolveUnqualified picks the owning table for a bare column name.
//
// Each step runs only when the previous one did not decide:
//  1. exactly one FROM item in scope: that item
//  2. a JOIN ON predicate of the scope qualifies the column with one of
//     the scope's aliases, or a USING list names it: that item
//  3. a WHERE or HAVING predicate qualifies it: that item
//  4. otherwise Unresolved, unless the fallback policy picks the first
//     FROM item; FallbackFirstTableFlagged reports that pick as Ambiguous
//
// A scope with no FROM items of its own, such as SELECT x inside a
// correlated subquery, defers to its enclosing scope.
func (r *Resolver) ResolveUnqualified(scope int, column string) Owner {
	_, key := ident.Part(column)
	if key == "" {
		return Owner{Kind: Unresolved}
	}

	s, bindings := r.owningScope(scope)
	if s == nil {
		return Owner{Kind: Unresolved}
	}
	if len(bindings) == 1 {
		return Owner{Kind: Single, Ref: bindings[0].Ref}
	}

	if ref, ok := r.scanPredicates(s, key, s.joinConds); ok {
		return Owner{Kind: Single, Ref: ref, Heuristic: true}
	}
	for _, u := range s.usings {
		for _, k := range u.keys {
			if k == key {
				return Owner{Kind: Single, Ref: s.bindings[u.left].Ref, Heuristic: true}
			}
		}
	}
	if ref, ok := r.scanPredicates(s, key, s.filters); ok {
		return Owner{Kind: Single, Ref: ref, Heuristic: true}
	}

	switch r.opts.fallback() {
	case FallbackFirstTable:
		return Owner{Kind: Single, Ref: bindings[0].Ref, Heuristic: true}
	case FallbackFirstTableFlagged:
		return Owner{Kind: Ambiguous, Ref: bindings[0].Ref, Heuristic: true}
	}
	return Owner{Kind: Unresolved}
}

// owningScope walks outward from id to the first scope with visible
// FROM items and returns it with those items.
func (r *Resolver) owningScope(id int) (*Scope, []Binding) {
	limit := -1
	for s := r.tree.Scope(id); s != nil; s = r.tree.Scope(s.Parent) {
		if bindings := s.visible(limit); len(bindings) > 0 {
			return s, bindings
		}
		limit = s.parentVisible
	}
	return nil, nil
}

// scanPredicates looks in exprs for key qualified by one of scope s's
// own aliases. Subqueries inside the predicates are not searched.
func (r *Resolver) scanPredicates(s *Scope, key string, exprs []core.Expr) (TableRef, bool) {
	var found TableRef
	for _, e := range exprs {
		core.WalkExpr(e, func(n core.Expr) bool {
			if found != nil {
				return false
			}
			c, ok := n.(*core.ColumnRef)
			if !ok || len(c.Parts) < 2 {
				return true
			}
			if _, k := ident.Part(c.Column()); k != key {
				return true
			}
			qualifier := c.Parts[len(c.Parts)-2]
			_, qk := ident.Part(qualifier)
			if b, ok := s.find(qk, -1); ok {
				found = b.Ref
			}
			return true
		})
		if found != nil {
			return found, true
		}
	}
	return nil, false
}
