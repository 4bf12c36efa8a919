package graph

import "fmt"

// GraphSyntaxError reports a malformed or semantically impossible trigger
// expression. It is fatal at parse time.
type GraphSyntaxError struct {
	Expr   string
	Pos    int
	Reason string
}

// Error implements the error interface for GraphSyntaxError.
func (e *GraphSyntaxError) Error() string {
	return fmt.Sprintf("bad graph line %q at col %d: %s", e.Expr, e.Pos+1, e.Reason)
}
