package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/colresolve/pkg/token"
)

func col(parts ...string) *ColumnRef { return &ColumnRef{Parts: parts} }

func TestColumnRefParts(t *testing.T) {
	c := col("s", "t", "id")
	assert.Equal(t, "id", c.Column())
	assert.Equal(t, []string{"s", "t"}, c.Qualifier())

	bare := col("id")
	assert.Equal(t, "id", bare.Column())
	assert.Nil(t, bare.Qualifier())

	assert.Equal(t, "", (&ColumnRef{}).Column())
}

func TestWalkExprVisitsNestedColumns(t *testing.T) {
	expr := &BinaryExpr{
		Left: &FuncCall{
			Name: "sum",
			Args: []Expr{col("a", "x")},
			Window: &WindowSpec{
				PartitionBy: []Expr{col("b", "y")},
				OrderBy:     []OrderByItem{{Expr: col("z")}},
			},
		},
		Op: token.GT,
		Right: &CaseExpr{
			Whens: []WhenClause{{Condition: &IsNullExpr{Expr: col("w")}, Result: &Literal{Value: "1"}}},
			Else:  &CastExpr{Expr: col("v"), TypeName: "int"},
		},
	}

	var got []string
	WalkExpr(expr, func(e Expr) bool {
		if c, ok := e.(*ColumnRef); ok {
			got = append(got, c.Column())
		}
		return true
	})
	assert.Equal(t, []string{"x", "y", "z", "w", "v"}, got)
}

func TestWalkExprStopsAtSubquery(t *testing.T) {
	inner := &SelectStmt{Body: &SelectBody{Left: &SelectCore{
		Columns: []SelectItem{{Expr: col("hidden")}},
	}}}
	expr := &InExpr{Expr: col("id"), Query: inner}

	var cols []string
	var boundaries int
	WalkExpr(expr, func(e Expr) bool {
		switch n := e.(type) {
		case *ColumnRef:
			cols = append(cols, n.Column())
		case *InExpr:
			if Subquery(n) != nil {
				boundaries++
			}
		}
		return true
	})
	assert.Equal(t, []string{"id"}, cols)
	assert.Equal(t, 1, boundaries)
	assert.Same(t, inner, Subquery(expr))
	assert.Nil(t, Subquery(col("x")))
}

func TestWalkExprSkipChildren(t *testing.T) {
	expr := &ParenExpr{Expr: col("x")}
	var visited int
	WalkExpr(expr, func(Expr) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestJoinTypeIsApply(t *testing.T) {
	assert.True(t, JoinCrossApply.IsApply())
	assert.True(t, JoinOuterApply.IsApply())
	assert.False(t, JoinLeft.IsApply())
}
