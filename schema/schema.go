package schema

import (
	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind is the scalar kind of a property attribute.
type Kind int

const (
	Invalid Kind = iota
	String
	Int
	Float
	Bool
	Time
)

var kindNames = [...]string{"invalid", "string", "int", "float", "bool", "time"}

// String returns the kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[Invalid]
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared scalar kinds.
func (k Kind) Valid() bool { return k > Invalid && int(k) < len(kindNames) }

// Cardinality is the shape of one side of a relationship. The
// to-many shape (ordered list vs unordered set) is always an explicit
// declaration choice — a to-many edge with Unspecified cardinality is
// a schema error, never a guessed default.
type Cardinality int

const (
	Unspecified Cardinality = iota
	// Single holds zero or one target entity (to-one).
	Single
	// OrderedList holds a sequence of target entities whose order is
	// significant and preserved across commit/reload.
	OrderedList
	// UnorderedSet holds a set of target entities, unique by node.
	UnorderedSet
)

var cardinalityNames = [...]string{"unspecified", "single", "list", "set"}

// String returns the cardinality name.
func (c Cardinality) String() string {
	if c < 0 || int(c) >= len(cardinalityNames) {
		return cardinalityNames[Unspecified]
	}
	return cardinalityNames[c]
}

// ToMany reports whether the cardinality holds more than one target.
func (c Cardinality) ToMany() bool { return c == OrderedList || c == UnorderedSet }

// Direction states which end of the stored relationship an edge
// follows. Exactly one side of a bidirectional pair owns the
// relationship (Out); the inverse side declares In.
type Direction int

const (
	// Out follows the relationship from its owning node to the target.
	Out Direction = iota
	// In follows the relationship backwards, from target to owner.
	In
)

// String returns the direction name.
func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// OnDelete is the per-relationship policy consulted when an entity is
// deleted while this edge still has members.
type OnDelete int

const (
	// Restrict refuses the node deletion while relationships remain
	// (the store surfaces a referential error).
	Restrict OnDelete = iota
	// Cascade removes the remaining relationships of this edge before
	// the node is deleted. Target nodes are never deleted.
	Cascade
)

// String returns the policy name.
func (o OnDelete) String() string {
	if o == Cascade {
		return "cascade"
	}
	return "restrict"
}

// Field declares one property attribute of a type.
type Field struct {
	Name string
	Kind Kind
	// StorageKey is the graph property name; defaults to the
	// snake_case of Name.
	StorageKey string
	// Optional fields may be absent or cleared by setting nil.
	Optional bool
}

// Edge declares one relationship attribute of a type.
type Edge struct {
	Name   string
	Target string
	// Cardinality must be declared explicitly; there is no default.
	Cardinality Cardinality
	// Dir marks which side owns the stored relationship. The default
	// is Out; the inverse side of a bidirectional pair declares In.
	Dir Direction
	// Inverse names the mirrored edge on the target type. Empty means
	// the relationship is unidirectional.
	Inverse string
	// StorageKey is the relationship type name in the store; defaults
	// to the snake_case of Name on the owning side, and is inherited
	// from the owning side on the inverse side.
	StorageKey string
	// Dup allows duplicate members in an ordered list.
	Dup bool
	// OnDelete is the cascade policy for this edge.
	OnDelete OnDelete
}

// Type is the mapping descriptor of one application type: its graph
// label plus its property and relationship attributes. Lookup tables
// are built once at registration; runtime mapping never re-validates.
type Type struct {
	Name string
	// Label is the graph label; defaults to the snake_case of Name.
	Label  string
	Fields []*Field
	Edges  []*Edge

	fields map[string]*Field
	edges  map[string]*Edge
}

// Field returns the field descriptor with the given name, or nil.
func (t *Type) Field(name string) *Field { return t.fields[name] }

// Edge returns the edge descriptor with the given name, or nil.
func (t *Type) Edge(name string) *Edge { return t.edges[name] }

var titled = cases.Title(language.Und, cases.NoLower)

// DefaultLabel returns the graph label derived from a type name.
func DefaultLabel(name string) string { return inflect.Underscore(name) }

// DefaultStorageKey returns the storage key derived from an attribute name.
func DefaultStorageKey(name string) string { return inflect.Underscore(name) }

// DefaultInverse returns the conventional fallback name for the
// inverse of an edge: "is<Name>Of". It is a helper for schema authors,
// never applied implicitly.
func DefaultInverse(name string) string {
	return "is" + titled.String(inflect.Camelize(name)) + "Of"
}
