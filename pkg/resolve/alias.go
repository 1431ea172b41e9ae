package resolve

import (
	"github.com/leapstack-labs/colresolve/pkg/ident"
)

// ResolveAlias returns the target bound to identifier as seen from scope.
//
// Lookup order:
//  1. the case-folded key in scope, then in each enclosing scope
//  2. the same walk with residual delimiter characters stripped
//
// Keys are case-folded, so upper-case and title-case spellings of an
// alias already match in step 1.
//
// The literal key is tried first so that real shadowing is never masked
// by a looser match at an outer scope. An identifier that fails every
// step is an unresolved alias; callers must not emit it.
func (r *Resolver) ResolveAlias(scope int, identifier string) (TableRef, bool) {
	b, ok := r.resolveBinding(scope, identifier)
	if !ok {
		return nil, false
	}
	return b.Ref, true
}

func (r *Resolver) resolveBinding(scope int, identifier string) (Binding, bool) {
	if _, key := ident.Part(identifier); key != "" {
		if b, ok := r.tree.lookup(scope, key); ok {
			return b, true
		}
	}

	stripped := ident.StripDelimiters(identifier)
	if stripped == "" {
		return Binding{}, false
	}
	if stripped != identifier {
		if b, ok := r.tree.lookup(scope, ident.Key(stripped)); ok {
			return b, true
		}
	}
	return Binding{}, false
}
