// Package core defines the SQL syntax tree consumed by the column resolver.
//
// The node set is closed: every expression, statement and table reference
// type lives in this package and carries an unexported marker method, so
// consumers can switch exhaustively over it.
package core

import "github.com/leapstack-labs/colresolve/pkg/token"

// Node is the base interface for all AST nodes.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
	// End returns the position of the character immediately after the node.
	End() token.Position
}

// Expr is a marker interface for expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// TableRef is a marker interface for FROM items.
type TableRef interface {
	Node
	tableRefNode()
}

// NodeInfo holds the source span shared by every node.
type NodeInfo struct {
	Span token.Span
}

// Pos implements Node.
func (n *NodeInfo) Pos() token.Position { return n.Span.Start }

// End implements Node.
func (n *NodeInfo) End() token.Position { return n.Span.End }
