package grafo

import (
	"errors"
	"fmt"

	"github.com/syssam/grafo/schema"
	"github.com/syssam/grafo/store"
)

// Standard sentinel errors for common operations.
var (
	// ErrDetached is returned when mutating an entity that was
	// deleted or evicted from its session.
	ErrDetached = errors.New("grafo: entity is detached")

	// ErrClosed is returned when operating on a closed session.
	ErrClosed = errors.New("grafo: session is closed")

	// ErrDuplicate is returned when appending an entity already held
	// by an ordered list that forbids duplicates.
	ErrDuplicate = errors.New("grafo: duplicate member in ordered list")

	// ErrNotFound is re-exported from the store package: a handle or
	// a find query did not resolve to a live entity.
	ErrNotFound = store.ErrNotFound

	// ErrStoreUnavailable is re-exported from the store package: the
	// backing store cannot be reached. Transient; a later Commit may
	// succeed without re-deriving changes.
	ErrStoreUnavailable = store.ErrUnavailable

	// ErrStoreTimeout is re-exported from the store package: a store
	// operation exceeded its deadline. Transient, like
	// ErrStoreUnavailable.
	ErrStoreTimeout = store.ErrTimeout
)

// SchemaError reports an invalid schema declaration. It is raised at
// registration time and is fatal to startup.
type SchemaError = schema.Error

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool { return schema.IsError(err) }

// ReferentialError reports a node deletion refused because
// relationships still reference the node.
type ReferentialError = store.ReferentialError

// IsReferential returns true if the error is a ReferentialError.
func IsReferential(err error) bool { return store.IsReferential(err) }

// NotFoundError reports a handle that does not resolve to a live node
// or relationship.
type NotFoundError = store.NotFoundError

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool { return store.IsNotFound(err) }

// TypeMismatchError reports a value or entity incompatible with the
// declared attribute. It is raised at mutation time, before any state
// is altered, so the caller may correct the value and retry.
type TypeMismatchError struct {
	Name string // Attribute name
	Want string // Declared kind or target type
	Got  string // Actual kind or type
}

// Error returns the error string.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("grafo: attribute %q expects %s, got %s", e.Name, e.Want, e.Got)
}

// NewTypeMismatchError returns a new TypeMismatchError.
func NewTypeMismatchError(name, want, got string) *TypeMismatchError {
	return &TypeMismatchError{Name: name, Want: want, Got: got}
}

// IsTypeMismatch returns true if the error is a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	if err == nil {
		return false
	}
	var e *TypeMismatchError
	return errors.As(err, &e)
}

// DetachedError reports a mutation of an entity that was deleted or
// evicted from its session.
type DetachedError struct {
	label  string
	handle store.Handle
}

// NewDetachedError returns a new DetachedError for the given entity.
func NewDetachedError(label string, h store.Handle) *DetachedError {
	return &DetachedError{label: label, handle: h}
}

// Error returns the error string.
func (e *DetachedError) Error() string {
	if !e.handle.IsZero() {
		return fmt.Sprintf("grafo: %s (handle=%s) is detached", e.label, e.handle)
	}
	return fmt.Sprintf("grafo: %s is detached", e.label)
}

// Is reports whether the target error matches DetachedError.
// This allows errors.Is(detachedErr, ErrDetached) to return true.
func (e *DetachedError) Is(err error) bool {
	return err == ErrDetached
}

// Handle returns the handle of the detached entity, if it had one.
func (e *DetachedError) Handle() store.Handle {
	return e.handle
}

// IsDetached returns true if the error is a DetachedError.
func IsDetached(err error) bool {
	if err == nil {
		return false
	}
	var e *DetachedError
	return errors.As(err, &e) || errors.Is(err, ErrDetached)
}

// CommitError wraps a store failure that aborted a commit. The dirty
// records of every entity whose operations had not yet applied are
// left intact, so a later Commit retries exactly the remaining work.
type CommitError struct {
	Entity string // Entity type being synchronized
	Op     string // Operation (e.g., "create", "update", "link")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *CommitError) Error() string {
	return fmt.Sprintf("grafo: commit: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommitError) Unwrap() error {
	return e.Err
}

// NewCommitError returns a new CommitError.
func NewCommitError(entity, op string, err error) *CommitError {
	return &CommitError{Entity: entity, Op: op, Err: err}
}

// IsCommitError returns true if the error is a CommitError.
func IsCommitError(err error) bool {
	if err == nil {
		return false
	}
	var e *CommitError
	return errors.As(err, &e)
}
