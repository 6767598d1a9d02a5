package grafo

import (
	"fmt"
	"time"

	"github.com/syssam/grafo/schema"
	"github.com/syssam/grafo/store"
)

// State is the lifecycle state of an entity within its session.
type State int

const (
	// Transient entities were created in the session and have no store
	// node yet; the next Commit creates one.
	Transient State = iota
	// Clean entities mirror their store node with no local changes.
	Clean
	// Dirty entities carry local changes awaiting Commit.
	Dirty
	// Deleted entities were removed from the store (or evicted from
	// the session) and refuse further use.
	Deleted
)

var stateNames = [...]string{"transient", "clean", "dirty", "deleted"}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[s]
}

// Entity is one mapped object: a typed view over a graph node plus the
// bookkeeping its session needs to track and synchronize local
// changes. Like the session that owns it, an entity is confined to one
// goroutine.
type Entity struct {
	sess   *Session
	typ    *schema.Type
	h      store.Handle
	props  map[string]any // keyed by field name
	assocs map[string]*assoc
	state  State
	seq    uint64
}

// Type returns the schema descriptor of the entity.
func (e *Entity) Type() *schema.Type { return e.typ }

// Handle returns the store handle, or the zero handle while the entity
// is still transient.
func (e *Entity) Handle() store.Handle { return e.h }

// State returns the lifecycle state.
func (e *Entity) State() State { return e.state }

// Session returns the owning session, or nil once the entity is
// detached.
func (e *Entity) Session() *Session { return e.sess }

func (e *Entity) detached() bool { return e.sess == nil || e.state == Deleted }

func (e *Entity) guard() error {
	if e.detached() {
		return NewDetachedError(e.typ.Name, e.h)
	}
	if e.sess.closed {
		return ErrClosed
	}
	return nil
}

// touch moves a clean entity to dirty.
func (e *Entity) touch() {
	if e.state == Clean {
		e.state = Dirty
	}
}

// Field returns the current value of a property attribute. A cleared
// or never-set optional field returns nil.
func (e *Entity) Field(name string) (any, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if e.typ.Field(name) == nil {
		return nil, fmt.Errorf("grafo: type %s has no field %q", e.typ.Name, name)
	}
	return e.props[name], nil
}

// SetField assigns a property attribute. The value must match the
// declared kind; integer and float widths are normalized to int64 and
// float64. Setting nil clears an optional field. Assigning the value
// already held is a no-op and does not dirty the entity. Validation
// runs before any state changes, so a failed set leaves the entity
// untouched.
func (e *Entity) SetField(name string, v any) error {
	if err := e.guard(); err != nil {
		return err
	}
	f := e.typ.Field(name)
	if f == nil {
		return fmt.Errorf("grafo: type %s has no field %q", e.typ.Name, name)
	}
	if v == nil {
		if !f.Optional {
			return NewTypeMismatchError(name, f.Kind.String(), "nil")
		}
		if _, ok := e.props[name]; !ok {
			return nil
		}
		delete(e.props, name)
		e.markField(name)
		return nil
	}
	cv, err := coerce(f, v)
	if err != nil {
		return err
	}
	if old, ok := e.props[name]; ok && sameValue(old, cv) {
		return nil
	}
	e.props[name] = cv
	e.markField(name)
	return nil
}

func (e *Entity) markField(name string) {
	e.sess.tracker.MarkField(e, name)
	e.touch()
}

// Ref returns the to-one association collection with the given name.
func (e *Entity) Ref(name string) (*Ref, error) {
	a, err := e.assoc(name, schema.Single)
	if err != nil {
		return nil, err
	}
	return &Ref{a: a}, nil
}

// List returns the ordered-list association collection with the given
// name.
func (e *Entity) List(name string) (*List, error) {
	a, err := e.assoc(name, schema.OrderedList)
	if err != nil {
		return nil, err
	}
	return &List{a: a}, nil
}

// Set returns the unordered-set association collection with the given
// name.
func (e *Entity) Set(name string) (*Set, error) {
	a, err := e.assoc(name, schema.UnorderedSet)
	if err != nil {
		return nil, err
	}
	return &Set{a: a}, nil
}

// assoc returns the cached association state for the named edge,
// checking that the declared cardinality matches the accessor used.
func (e *Entity) assoc(name string, card schema.Cardinality) (*assoc, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	ed := e.typ.Edge(name)
	if ed == nil {
		return nil, fmt.Errorf("grafo: type %s has no association %q", e.typ.Name, name)
	}
	if ed.Cardinality != card {
		return nil, fmt.Errorf("grafo: association %s.%s is declared %s, not %s", e.typ.Name, name, ed.Cardinality, card)
	}
	a, ok := e.assocs[name]
	if !ok {
		a = &assoc{owner: e, edge: ed}
		e.assocs[name] = a
	}
	return a, nil
}

// assocFor returns the cached association state for a resolved edge
// descriptor, bypassing the cardinality check.
func (e *Entity) assocFor(ed *schema.Edge) *assoc {
	a, ok := e.assocs[ed.Name]
	if !ok {
		a = &assoc{owner: e, edge: ed}
		e.assocs[ed.Name] = a
	}
	return a
}

// coerce normalizes v to the canonical representation of the field's
// kind, or fails with a TypeMismatchError.
func coerce(f *schema.Field, v any) (any, error) {
	switch f.Kind {
	case schema.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.Int:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case schema.Float:
		switch n := v.(type) {
		case float32:
			return float64(n), nil
		case float64:
			return n, nil
		}
	case schema.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.Time:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	}
	return nil, NewTypeMismatchError(f.Name, f.Kind.String(), fmt.Sprintf("%T", v))
}

// sameValue compares two canonical field values.
func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}
