package parser

import (
	"fmt"

	"github.com/leapstack-labs/colresolve/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken      = "unexpected token %s, expected %s"
	ErrUnterminated         = "unterminated %s starting with %q"
	ErrIllegalCharacter     = "illegal character %q"
	ErrUnsupportedClause    = "%s is not supported in %s dialect"
	ErrUnsupportedStatement = "unsupported statement starting with %s"
	ErrNaturalWithCondition = "NATURAL JOIN cannot have ON or USING"
	ErrParenthesizedJoin    = "parenthesized join trees are not supported"
)
