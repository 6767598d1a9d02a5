package store

import (
	"context"
)

// Handle is an opaque, store-assigned reference to a node or a
// relationship. The zero value means "not yet assigned".
type Handle string

// IsZero reports whether the handle has not been assigned yet.
func (h Handle) IsZero() bool { return h == "" }

// Props holds the scalar properties of a node or a relationship,
// keyed by storage key.
type Props map[string]any

// Clone returns a shallow copy of the property map.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	c := make(Props, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Direction selects which relationships FetchRels enumerates,
// relative to the node it is called on.
type Direction int

const (
	// Outgoing enumerates relationships where the node is the source.
	Outgoing Direction = iota + 1
	// Incoming enumerates relationships where the node is the target.
	Incoming
	// Both enumerates relationships in either direction.
	Both
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Both:
		return "both"
	default:
		return "invalid"
	}
}

// Rel describes one relationship as returned by FetchRels.
type Rel struct {
	Handle Handle
	Type   string
	From   Handle
	To     Handle
	// Ord is the explicit ordinal persisted for ordered collections.
	Ord   int
	Props Props
}

// Other returns the endpoint of r opposite to h. For self-loops it
// returns h itself.
func (r Rel) Other(h Handle) Handle {
	if r.From == h {
		return r.To
	}
	return r.From
}

// Store is the backing-graph contract the mapping layer is written
// against. The in-memory variant (memstore) always succeeds unless a
// referential-integrity check fails; an external variant (sqlstore, or
// any remote backend) may additionally fail with ErrUnavailable or
// ErrTimeout, which callers must treat as retryable.
//
// All mutating operations must be applied atomically with respect to
// each other; concurrent sessions may share one Store.
type Store interface {
	// CreateNode creates a node and returns its new handle.
	CreateNode(ctx context.Context, label string, props Props) (Handle, error)

	// UpdateNode merges props into the node. A nil value removes
	// the property.
	UpdateNode(ctx context.Context, h Handle, props Props) error

	// DeleteNode removes the node. It fails with a *ReferentialError
	// while any relationship still references the node.
	DeleteNode(ctx context.Context, h Handle) error

	// FetchNode returns the node's label and properties.
	FetchNode(ctx context.Context, h Handle) (string, Props, error)

	// CreateRel creates a typed relationship between two nodes and
	// returns its new handle. ord is the explicit ordinal persisted
	// for ordered collections; stores with no native edge ordering
	// must keep it.
	CreateRel(ctx context.Context, typ string, from, to Handle, ord int, props Props) (Handle, error)

	// DeleteRel removes the relationship.
	DeleteRel(ctx context.Context, h Handle) error

	// FetchRels enumerates the relationships of the given type
	// incident to h in the given direction, ordered by (Ord, Handle).
	// An empty type matches all relationship types.
	FetchRels(ctx context.Context, h Handle, typ string, dir Direction) ([]Rel, error)

	// Close releases the resources held by the store.
	Close() error
}

// Scanner is an optional capability for stores that can enumerate
// nodes by label. The session find helpers require it.
type Scanner interface {
	// NodesByLabel returns the handles of all nodes carrying the
	// given label, in a stable store-defined order (creation order
	// for the in-memory store).
	NodesByLabel(ctx context.Context, label string) ([]Handle, error)
}

// Transactor is an optional capability for stores that support real
// transactions. When the backing store implements it, a commit runs
// inside one transaction and the store rolls back its own side on
// failure.
type Transactor interface {
	Tx(ctx context.Context) (Tx, error)
}

// Tx is a Store scoped to one transaction.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}
