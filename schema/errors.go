package schema

import (
	"errors"
	"fmt"
)

// Error reports an invalid schema declaration. It is raised at
// registration or validation time and is fatal to startup — runtime
// mapping operations never re-validate and therefore never raise it.
type Error struct {
	Type string // type being declared
	Elem string // field or edge name, empty for type-level problems
	Msg  string
}

// Error returns the error string.
func (e *Error) Error() string {
	if e.Elem != "" {
		return fmt.Sprintf("schema: %s.%s: %s", e.Type, e.Elem, e.Msg)
	}
	if e.Type != "" {
		return fmt.Sprintf("schema: %s: %s", e.Type, e.Msg)
	}
	return "schema: " + e.Msg
}

func newError(typ, elem, format string, args ...any) *Error {
	return &Error{Type: typ, Elem: elem, Msg: fmt.Sprintf(format, args...)}
}

// IsError returns true if the error is a schema *Error.
func IsError(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	return errors.As(err, &e)
}
