package core

// ---------- Statement Types ----------

// SelectStmt represents a complete SELECT statement with optional WITH clause.
type SelectStmt struct {
	NodeInfo
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) stmtNode() {}

// WithClause represents WITH [RECURSIVE] cte, cte, ...
type WithClause struct {
	NodeInfo
	Recursive bool
	CTEs      []*CTE
}

// CTE represents one common table expression.
type CTE struct {
	NodeInfo
	Name    string   // raw identifier, delimiters kept
	Columns []string // optional column list: name(a, b)
	Select  *SelectStmt
}

// SetOpType is the kind of set operation joining two query bodies.
type SetOpType string

// Set operation types.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectBody is a query operand optionally chained to another by a set
// operation. Exactly one of Left and Nested is set.
type SelectBody struct {
	NodeInfo
	Left   *SelectCore
	Nested *SelectStmt // parenthesized operand: (SELECT ...) UNION ...
	Op     SetOpType
	All    bool
	Right  *SelectBody
}

// SelectCore is a single SELECT ... FROM ... block.
type SelectCore struct {
	NodeInfo
	Distinct bool
	Top      Expr // T-SQL TOP n
	Columns  []SelectItem
	From     *FromClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	Windows  []*WindowSpec // WINDOW w AS (...)
	Qualify  Expr
	OrderBy  []OrderByItem
	Limit    Expr
	Offset   Expr
}

// SelectItem is one projection. Wildcards are carried as *StarExpr.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderByItem is one ORDER BY key.
type OrderByItem struct {
	Expr       Expr
	Desc       bool
	NullsFirst *bool
}

// ---------- FROM / JOIN ----------

// FromClause is the FROM source followed by its joins, in document order.
type FromClause struct {
	NodeInfo
	Source TableRef
	Joins  []*Join
}

// JoinType identifies the join operator.
type JoinType string

// Join types.
const (
	JoinInner      JoinType = "INNER"
	JoinLeft       JoinType = "LEFT"
	JoinRight      JoinType = "RIGHT"
	JoinFull       JoinType = "FULL"
	JoinCross      JoinType = "CROSS"
	JoinComma      JoinType = ","
	JoinCrossApply JoinType = "CROSS APPLY"
	JoinOuterApply JoinType = "OUTER APPLY"
)

// IsApply reports whether the join is a T-SQL APPLY, whose right side
// sees the left side's aliases.
func (t JoinType) IsApply() bool {
	return t == JoinCrossApply || t == JoinOuterApply
}

// Join represents one JOIN item.
type Join struct {
	NodeInfo
	Type      JoinType
	Natural   bool
	Right     TableRef
	Condition Expr     // ON expr
	Using     []string // USING (a, b), raw identifiers
}
