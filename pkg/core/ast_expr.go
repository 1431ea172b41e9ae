package core

import "github.com/leapstack-labs/colresolve/pkg/token"

// ---------- Expression Types ----------

// ColumnRef is a possibly qualified column reference: col, t.col,
// schema.t.col or catalog.schema.t.col. Parts are raw identifiers.
type ColumnRef struct {
	NodeInfo
	Parts []string
}

func (*ColumnRef) exprNode() {}

// Column returns the final part.
func (c *ColumnRef) Column() string {
	if len(c.Parts) == 0 {
		return ""
	}
	return c.Parts[len(c.Parts)-1]
}

// Qualifier returns every part before the column name.
func (c *ColumnRef) Qualifier() []string {
	if len(c.Parts) < 2 {
		return nil
	}
	return c.Parts[:len(c.Parts)-1]
}

// StarExpr is * or qualifier.* in a select list.
type StarExpr struct {
	NodeInfo
	Table []string // qualifier parts for t.*; empty for bare *
}

func (*StarExpr) exprNode() {}

// LiteralType tags a Literal.
type LiteralType int

// Literal types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal is a constant value.
type Literal struct {
	NodeInfo
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// Param is a bind parameter or variable: @p, ?, $1.
type Param struct {
	NodeInfo
	Name string
}

func (*Param) exprNode() {}

// BinaryExpr is left op right.
type BinaryExpr struct {
	NodeInfo
	Left  Expr
	Op    token.TokenType
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is op expr (NOT, -, +).
type UnaryExpr struct {
	NodeInfo
	Op   token.TokenType
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall is a function invocation, including aggregates and window calls.
type FuncCall struct {
	NodeInfo
	Name        string
	Distinct    bool
	Args        []Expr
	Star        bool // COUNT(*)
	Filter      Expr // FILTER (WHERE ...)
	WithinGroup []OrderByItem
	Window      *WindowSpec
}

func (*FuncCall) exprNode() {}

// WindowSpec is the OVER clause of a window call.
type WindowSpec struct {
	Name        string // OVER w
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec is ROWS|RANGE BETWEEN start AND end.
type FrameSpec struct {
	Type  string
	Start *FrameBound
	End   *FrameBound
}

// FrameBound is one end of a window frame.
type FrameBound struct {
	Type   string // UNBOUNDED PRECEDING, CURRENT ROW, EXPR PRECEDING, ...
	Offset Expr
}

// CaseExpr is CASE [operand] WHEN ... THEN ... [ELSE ...] END.
type CaseExpr struct {
	NodeInfo
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause is one WHEN ... THEN ... arm.
type WhenClause struct {
	Condition Expr
	Result    Expr
}

// CastExpr is CAST(expr AS type) or expr::type.
type CastExpr struct {
	NodeInfo
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr is expr [NOT] IN (values) or expr [NOT] IN (subquery).
type InExpr struct {
	NodeInfo
	Expr   Expr
	Not    bool
	Values []Expr
	Query  *SelectStmt
}

func (*InExpr) exprNode() {}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
}

func (*IsNullExpr) exprNode() {}

// LikeExpr is expr [NOT] LIKE|ILIKE pattern [ESCAPE e].
type LikeExpr struct {
	NodeInfo
	Expr    Expr
	Not     bool
	Op      token.TokenType
	Pattern Expr
	Escape  Expr
}

func (*LikeExpr) exprNode() {}

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	NodeInfo
	Expr Expr
}

func (*ParenExpr) exprNode() {}

// TupleExpr is (a, b, ...) outside an IN list.
type TupleExpr struct {
	NodeInfo
	Items []Expr
}

func (*TupleExpr) exprNode() {}

// SubqueryExpr is a scalar subquery.
type SubqueryExpr struct {
	NodeInfo
	Select *SelectStmt
}

func (*SubqueryExpr) exprNode() {}

// ExistsExpr is [NOT] EXISTS (subquery).
type ExistsExpr struct {
	NodeInfo
	Not    bool
	Select *SelectStmt
}

func (*ExistsExpr) exprNode() {}
