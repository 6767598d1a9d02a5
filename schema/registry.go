package schema

import (
	"sort"
)

// Registry holds the descriptors of every registered type. Register
// performs the per-type checks; Validate links and checks the edges
// across types. Both run once, at startup — sessions refuse to open
// over an unvalidated registry.
type Registry struct {
	types  map[string]*Type
	labels map[string]*Type
	valid  bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		types:  make(map[string]*Type),
		labels: make(map[string]*Type),
	}
}

// Register adds a type descriptor to the registry, filling naming
// defaults and building the attribute lookup tables. Cross-type checks
// (edge targets, inverse pairing) are deferred to Validate so types
// may reference each other in any declaration order.
func (r *Registry) Register(t *Type) error {
	if t.Name == "" {
		return newError("", "", "type name is required")
	}
	if _, ok := r.types[t.Name]; ok {
		return newError(t.Name, "", "type already registered")
	}
	if t.Label == "" {
		t.Label = DefaultLabel(t.Name)
	}
	if prev, ok := r.labels[t.Label]; ok {
		return newError(t.Name, "", "label %q already used by type %s", t.Label, prev.Name)
	}
	t.fields = make(map[string]*Field, len(t.Fields))
	t.edges = make(map[string]*Edge, len(t.Edges))
	storageKeys := make(map[string]string, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == "" {
			return newError(t.Name, "", "field name is required")
		}
		if !f.Kind.Valid() {
			return newError(t.Name, f.Name, "invalid field kind")
		}
		if _, ok := t.fields[f.Name]; ok {
			return newError(t.Name, f.Name, "duplicate field name")
		}
		if f.StorageKey == "" {
			f.StorageKey = DefaultStorageKey(f.Name)
		}
		if prev, ok := storageKeys[f.StorageKey]; ok {
			return newError(t.Name, f.Name, "storage key %q collides with field %s", f.StorageKey, prev)
		}
		storageKeys[f.StorageKey] = f.Name
		t.fields[f.Name] = f
	}
	for _, e := range t.Edges {
		if e.Name == "" {
			return newError(t.Name, "", "edge name is required")
		}
		if _, ok := t.fields[e.Name]; ok {
			return newError(t.Name, e.Name, "edge name collides with a field")
		}
		if _, ok := t.edges[e.Name]; ok {
			return newError(t.Name, e.Name, "duplicate edge name")
		}
		if e.Target == "" {
			return newError(t.Name, e.Name, "edge target is required")
		}
		if e.Cardinality == Unspecified {
			return newError(t.Name, e.Name, "cardinality must be declared explicitly (single, list or set)")
		}
		if e.Dup && e.Cardinality != OrderedList {
			return newError(t.Name, e.Name, "dup is only valid on ordered lists")
		}
		if e.Cardinality == OrderedList && e.Dir == In {
			return newError(t.Name, e.Name, "ordered lists must own the relationship (direction out)")
		}
		if e.StorageKey == "" && e.Dir == Out {
			e.StorageKey = DefaultStorageKey(e.Name)
		}
		t.edges[e.Name] = e
	}
	r.types[t.Name] = t
	r.labels[t.Label] = t
	r.valid = false
	return nil
}

// MustRegister registers the given types and panics on error.
func (r *Registry) MustRegister(types ...*Type) {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Validate runs the cross-type checks: every edge target must be
// registered, and every declared inverse must exist on the target
// type, point back, own exactly one side of the relationship, and
// carry a mirrored cardinality. It is idempotent and cheap to re-run.
func (r *Registry) Validate() error {
	if r.valid {
		return nil
	}
	for _, t := range r.sorted() {
		for _, e := range t.Edges {
			target, ok := r.types[e.Target]
			if !ok {
				return newError(t.Name, e.Name, "target type %s is not registered", e.Target)
			}
			if e.Inverse == "" {
				if e.StorageKey == "" {
					return newError(t.Name, e.Name, "unidirectional inverse-direction edge requires an explicit storage key")
				}
				continue
			}
			inv := target.Edge(e.Inverse)
			if inv == nil {
				return newError(t.Name, e.Name, "inverse %q does not exist on type %s", e.Inverse, e.Target)
			}
			if inv.Inverse != e.Name || inv.Target != t.Name {
				return newError(t.Name, e.Name, "inverse %s.%s does not point back", e.Target, e.Inverse)
			}
			if e.Dir == inv.Dir {
				return newError(t.Name, e.Name, "exactly one side of a bidirectional edge must declare direction out")
			}
			if err := mirrored(t, e, inv); err != nil {
				return err
			}
			// The inverse side addresses the same stored relationship.
			if e.Dir == In {
				switch {
				case e.StorageKey == "":
					e.StorageKey = inv.StorageKey
				case e.StorageKey != inv.StorageKey:
					return newError(t.Name, e.Name, "storage key %q differs from owning side %q", e.StorageKey, inv.StorageKey)
				}
			}
		}
	}
	// With every key resolved, two edges of one type sharing a
	// relationship type would conflate their memberships. The one
	// legitimate case is a self-referential bidirectional pair, which
	// addresses the same stored relationship from both ends.
	for _, t := range r.sorted() {
		keys := make(map[string]*Edge, len(t.Edges))
		for _, e := range t.Edges {
			prev, ok := keys[e.StorageKey]
			if !ok {
				keys[e.StorageKey] = e
				continue
			}
			if e.Target == t.Name && prev.Target == t.Name &&
				e.Inverse == prev.Name && prev.Inverse == e.Name && e.Dir != prev.Dir {
				continue
			}
			return newError(t.Name, e.Name, "storage key %q collides with edge %s", e.StorageKey, prev.Name)
		}
	}
	r.valid = true
	return nil
}

// mirrored checks that the two sides of a relationship declare a
// compatible cardinality pair: one-to-one (single/single), one-to-many
// (single paired with list or set) or many-to-many (set/set). An
// ordered list paired with anything but a single reference has no
// well-defined ordinal and is rejected.
func mirrored(t *Type, e, inv *Edge) error {
	if e.Cardinality.ToMany() && inv.Cardinality.ToMany() {
		if e.Cardinality != UnorderedSet || inv.Cardinality != UnorderedSet {
			return newError(t.Name, e.Name, "many-to-many relationships must be declared set on both sides")
		}
	}
	return nil
}

// Lookup returns the descriptor registered under the given type name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// ByLabel returns the descriptor whose graph label matches.
func (r *Registry) ByLabel(label string) (*Type, bool) {
	t, ok := r.labels[label]
	return t, ok
}

// Types returns all registered descriptors sorted by name.
func (r *Registry) Types() []*Type { return r.sorted() }

func (r *Registry) sorted() []*Type {
	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
