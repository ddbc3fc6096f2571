package ops

import (
	"errors"
	"fmt"
)

// ConstructionError reports an expression that cannot be built: unknown
// operation, wrong arity, a non-assignable input or a non-literal where a
// literal is required. Construction errors surface when the node is built,
// never during execution.
type ConstructionError struct {
	Op      string
	Arg     string
	Message string
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("construct %s: argument %q: %s", e.Op, e.Arg, e.Message)
	}
	return fmt.Sprintf("construct %s: %s", e.Op, e.Message)
}

// IsConstructionError returns true if err is or wraps a ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}
