package migrate

import (
	"errors"
	"fmt"

	"github.com/tordrt/schemasync/internal/ddl"
)

// ErrUnsupported is returned before any write when the dialect cannot apply
// an element the schema declares
var ErrUnsupported = errors.New("not supported by dialect")

// DDLExecutionError reports the statement that failed. Statements applied
// earlier in the same pass stay applied.
type DDLExecutionError struct {
	Statement ddl.Statement
	Err       error
}

func (e *DDLExecutionError) Error() string {
	return fmt.Sprintf("failed to %s %s on %s: %v", e.Statement.Kind, e.Statement.Element, e.Statement.Table, e.Err)
}

func (e *DDLExecutionError) Unwrap() error {
	return e.Err
}
