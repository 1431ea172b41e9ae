package resolve

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/colresolve/pkg/core"
)

// ErrStructural is matched by every StructuralError.
var ErrStructural = errors.New("malformed statement tree")

// StructuralError reports a malformed node. Only that node is skipped;
// the rest of the statement is still resolved.
type StructuralError struct {
	Node   core.Node // nil when the node itself is missing
	Scope  int
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Node != nil && e.Node.Pos().IsValid() {
		return fmt.Sprintf("structural error at %s: %s", e.Node.Pos(), e.Reason)
	}
	return "structural error: " + e.Reason
}

// Is makes errors.Is(err, ErrStructural) match.
func (e *StructuralError) Is(target error) bool {
	return target == ErrStructural
}
