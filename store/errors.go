package store

import (
	"errors"
	"fmt"
)

// Standard sentinel errors surfaced by store implementations.
var (
	// ErrUnavailable is returned when the backing store cannot be
	// reached. The failure is transient: the caller may retry the
	// whole operation later.
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrTimeout is returned when an operation exceeds the
	// caller-supplied or configured deadline.
	ErrTimeout = errors.New("store: operation timed out")

	// ErrNotFound is returned when a handle does not resolve to a
	// live node or relationship.
	ErrNotFound = errors.New("store: not found")
)

// NotFoundError reports a handle that does not resolve to a live node
// or relationship.
type NotFoundError struct {
	kind   string // "node" or "relationship"
	handle Handle
}

// NewNotFoundError returns a new NotFoundError for the given kind and handle.
func NewNotFoundError(kind string, h Handle) *NotFoundError {
	return &NotFoundError{kind: kind, handle: h}
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s %q not found", e.kind, e.handle)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Handle returns the handle that failed to resolve.
func (e *NotFoundError) Handle() Handle {
	return e.handle
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ReferentialError reports an attempt to delete a node that is still
// referenced by one or more relationships. The caller must unlink the
// node first, or configure a cascade policy on the relationship.
type ReferentialError struct {
	handle Handle
	rels   int // Number of referencing relationships (-1 if unknown)
}

// NewReferentialError returns a new ReferentialError for the given node.
func NewReferentialError(h Handle, rels int) *ReferentialError {
	return &ReferentialError{handle: h, rels: rels}
}

// Error returns the error string.
func (e *ReferentialError) Error() string {
	if e.rels >= 0 {
		return fmt.Sprintf("store: node %q still referenced by %d relationship(s)", e.handle, e.rels)
	}
	return fmt.Sprintf("store: node %q still referenced", e.handle)
}

// Handle returns the node handle whose deletion was refused.
func (e *ReferentialError) Handle() Handle {
	return e.handle
}

// Rels returns the number of referencing relationships, or -1 if unknown.
func (e *ReferentialError) Rels() int {
	return e.rels
}

// IsReferential returns true if the error is a ReferentialError.
func IsReferential(err error) bool {
	if err == nil {
		return false
	}
	var e *ReferentialError
	return errors.As(err, &e)
}
