package core

// WalkExpr traverses an expression tree depth-first and calls fn for each
// expression node. If fn returns false, the node's children are skipped.
//
// WalkExpr stops at query boundaries: the bodies of SubqueryExpr,
// ExistsExpr and InExpr.Query are not entered, since they open their
// own name-resolution scope. The boundary node itself is still visited.
func WalkExpr(e Expr, fn func(Expr) bool) {
	if e == nil {
		return
	}
	if !fn(e) {
		return
	}
	switch n := e.(type) {
	case *BinaryExpr:
		WalkExpr(n.Left, fn)
		WalkExpr(n.Right, fn)
	case *UnaryExpr:
		WalkExpr(n.Expr, fn)
	case *FuncCall:
		for _, arg := range n.Args {
			WalkExpr(arg, fn)
		}
		WalkExpr(n.Filter, fn)
		walkOrderBy(n.WithinGroup, fn)
		if n.Window != nil {
			for _, p := range n.Window.PartitionBy {
				WalkExpr(p, fn)
			}
			walkOrderBy(n.Window.OrderBy, fn)
			if f := n.Window.Frame; f != nil {
				if f.Start != nil {
					WalkExpr(f.Start.Offset, fn)
				}
				if f.End != nil {
					WalkExpr(f.End.Offset, fn)
				}
			}
		}
	case *CaseExpr:
		WalkExpr(n.Operand, fn)
		for _, w := range n.Whens {
			WalkExpr(w.Condition, fn)
			WalkExpr(w.Result, fn)
		}
		WalkExpr(n.Else, fn)
	case *CastExpr:
		WalkExpr(n.Expr, fn)
	case *InExpr:
		WalkExpr(n.Expr, fn)
		for _, v := range n.Values {
			WalkExpr(v, fn)
		}
	case *BetweenExpr:
		WalkExpr(n.Expr, fn)
		WalkExpr(n.Low, fn)
		WalkExpr(n.High, fn)
	case *IsNullExpr:
		WalkExpr(n.Expr, fn)
	case *LikeExpr:
		WalkExpr(n.Expr, fn)
		WalkExpr(n.Pattern, fn)
		WalkExpr(n.Escape, fn)
	case *ParenExpr:
		WalkExpr(n.Expr, fn)
	case *TupleExpr:
		for _, item := range n.Items {
			WalkExpr(item, fn)
		}
	case *ColumnRef, *StarExpr, *Literal, *Param, *SubqueryExpr, *ExistsExpr:
		// leaves, or query boundaries
	}
}

func walkOrderBy(items []OrderByItem, fn func(Expr) bool) {
	for _, item := range items {
		WalkExpr(item.Expr, fn)
	}
}

// Subquery returns the query a boundary expression opens, if any.
func Subquery(e Expr) *SelectStmt {
	switch n := e.(type) {
	case *SubqueryExpr:
		return n.Select
	case *ExistsExpr:
		return n.Select
	case *InExpr:
		return n.Query
	}
	return nil
}
