package registerer

import "fmt"

// InvalidSchemaError is returned when a writer procedure has a dangling
// name reference or its execution-dependency graph contains a cycle.
type InvalidSchemaError struct {
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid schema: %s", e.Reason)
}

// InternalError wraps a failure writing to the content store or the name
// table.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) Unwrap() error { return e.Cause }
