// Package resolve attributes every column reference in a SELECT statement
// to the table that owns it.
//
// Resolution runs in two phases. Build walks the statement once and
// produces an arena of scopes, one per SELECT body, set-operation
// operand, CTE body and subquery, each holding the aliases it declares
// and the index of its lexical parent. Every column reference is
// recorded together with the scope it occurs in. A Resolver then maps
// each reference to an owner: qualified references through the alias
// chain, bare ones through the heuristics of ResolveUnqualified.
//
// The package is pure. A Resolve call owns its tree and shares nothing,
// so statements may be resolved concurrently.
package resolve

import (
	"errors"
	"io"
	"log/slog"

	"github.com/leapstack-labs/colresolve/pkg/core"
)

// Resolver answers alias, unqualified and qualification queries against
// one scope tree.
type Resolver struct {
	tree   *Tree
	opts   Options
	logger *slog.Logger
}

// NewResolver returns a resolver over tree.
func NewResolver(tree *Tree, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{tree: tree, opts: opts, logger: logger}
}

// Tree returns the scope tree the resolver reads.
func (r *Resolver) Tree() *Tree { return r.tree }

// Result is the outcome of resolving one statement.
type Result struct {
	Tree       *Tree
	References []ColumnReference
	Columns    []ResolvedColumn // document order, duplicates kept
}

// Qualified returns the qualified string of every column.
func (r Result) Qualified() []string {
	var out []string
	for _, c := range r.Columns {
		out = append(out, c.Qualified())
	}
	return out
}

// Resolve builds the scope tree for stmt and qualifies every column
// reference in it. Unresolvable references are dropped. The error, when
// non-nil, joins one StructuralError per malformed node; Result still
// holds everything that could be resolved.
func Resolve(stmt *core.SelectStmt, opts Options) (Result, error) {
	tree, refs, err := Build(stmt)
	errs := []error{err}

	r := NewResolver(tree, opts)
	res := Result{Tree: tree, References: refs}
	for _, ref := range refs {
		if tree.Scope(ref.Scope) == nil {
			errs = append(errs, &StructuralError{Node: ref.Node, Scope: ref.Scope, Reason: "column reference has no enclosing scope"})
			continue
		}
		if col, ok := r.Qualify(ref); ok {
			res.Columns = append(res.Columns, col)
		}
	}
	return res, errors.Join(errs...)
}
