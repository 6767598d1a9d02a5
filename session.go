package grafo

import (
	"context"
	"fmt"
	"sort"
	"time"
	"weak"

	"github.com/syssam/grafo/schema"
	"github.com/syssam/grafo/store"
)

// Session is a unit of work over one backing store: it resolves
// handles to entities (at most one live entity per handle), tracks
// local changes and synchronizes them with Commit. A session is
// confined to one goroutine; concurrent sessions may share one Store.
type Session struct {
	reg     *schema.Registry
	store   store.Store
	tracker *Tracker
	// idmap holds the identity map, keyed by handle. Entries are weak:
	// the session never keeps a clean entity alive on its own, and a
	// collected entry is simply re-resolved from the store.
	idmap  map[store.Handle]weak.Pointer[Entity]
	seq    uint64
	closed bool
}

// Open returns a session over the given registry and store. The
// registry is validated first; an invalid schema refuses to open.
func Open(reg *schema.Registry, st store.Store) (*Session, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		reg:     reg,
		store:   st,
		tracker: newTracker(),
		idmap:   make(map[store.Handle]weak.Pointer[Entity]),
	}, nil
}

// Registry returns the schema registry the session maps with.
func (s *Session) Registry() *schema.Registry { return s.reg }

// Store returns the backing store.
func (s *Session) Store() store.Store { return s.store }

// Tracker returns the session's change tracker.
func (s *Session) Tracker() *Tracker { return s.tracker }

// Close detaches the session. Pending changes are discarded; the
// backing store stays open since other sessions may share it.
func (s *Session) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.tracker = newTracker()
	s.idmap = make(map[store.Handle]weak.Pointer[Entity])
	return nil
}

// NewEntity creates a transient entity of the named type. The entity
// has no store node until the next Commit.
func (s *Session) NewEntity(typeName string) (*Entity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	typ, ok := s.reg.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("grafo: type %q is not registered", typeName)
	}
	s.seq++
	e := &Entity{
		sess:   s,
		typ:    typ,
		props:  make(map[string]any),
		assocs: make(map[string]*assoc),
		state:  Transient,
		seq:    s.seq,
	}
	// The record pins the entity into the next commit; being weak, a
	// discarded transient leaves no trace.
	s.tracker.rec(e)
	return e, nil
}

// Resolve returns the entity behind a handle. Resolving the same
// handle twice returns the same instance while it is alive; otherwise
// the node is fetched and mapped through its label.
func (s *Session) Resolve(ctx context.Context, h store.Handle) (*Entity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if h.IsZero() {
		return nil, store.NewNotFoundError("node", h)
	}
	if wp, ok := s.idmap[h]; ok {
		if e := wp.Value(); e != nil {
			return e, nil
		}
		delete(s.idmap, h)
	}
	label, props, err := s.store.FetchNode(ctx, h)
	if err != nil {
		return nil, err
	}
	typ, ok := s.reg.ByLabel(label)
	if !ok {
		return nil, fmt.Errorf("grafo: node %s has unmapped label %q", h, label)
	}
	s.seq++
	e := &Entity{
		sess:   s,
		typ:    typ,
		h:      h,
		props:  make(map[string]any, len(props)),
		assocs: make(map[string]*assoc),
		state:  Clean,
		seq:    s.seq,
	}
	for _, f := range typ.Fields {
		raw, ok := props[f.StorageKey]
		if !ok || raw == nil {
			continue
		}
		v, err := decodeValue(f, raw)
		if err != nil {
			return nil, err
		}
		e.props[f.Name] = v
	}
	s.idmap[h] = weak.Make(e)
	return e, nil
}

// Evict detaches an entity from the session, discarding its pending
// changes. A later Resolve of the same handle returns a fresh
// instance.
func (s *Session) Evict(e *Entity) {
	if !e.h.IsZero() {
		delete(s.idmap, e.h)
	}
	s.tracker.Clear(e)
	e.sess = nil
}

// Delete marks an entity for deletion at the next Commit. Whether
// remaining relationships block the deletion or are detached with it
// is the per-edge OnDelete policy.
func (s *Session) Delete(e *Entity) error {
	if err := e.guard(); err != nil {
		return err
	}
	s.tracker.markDeleted(e)
	e.touch()
	return nil
}

// journal records what one commit attempt applied, so a transactional
// rollback can also roll the in-memory markers back.
type journal struct {
	created []*Entity
	linked  []*linkAdd
	removed []*linkRemove
}

// Commit pushes every tracked change to the store: transient entities
// become nodes, dirty properties are merged, staged link operations
// are applied, then deletions run last. On a store failure the commit
// stops and returns a *CommitError; every record that had not been
// applied stays intact, so a later Commit retries exactly the
// remaining work without re-deriving it.
//
// When the store supports transactions, the whole commit runs inside
// one and the store side is rolled back on failure as well.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	recs := s.tracker.live()
	if len(recs) == 0 {
		return nil
	}
	var j journal
	if tor, ok := s.store.(store.Transactor); ok {
		tx, err := tor.Tx(ctx)
		if err != nil {
			return NewCommitError("", "begin", err)
		}
		if err := s.apply(ctx, tx, recs, &j); err != nil {
			tx.Rollback()
			s.revert(&j)
			return err
		}
		if err := tx.Commit(); err != nil {
			tx.Rollback()
			s.revert(&j)
			return NewCommitError("", "commit", err)
		}
	} else if err := s.apply(ctx, s.store, recs, &j); err != nil {
		// Applied operations stay applied; their done markers keep the
		// retry from repeating them.
		return err
	}
	s.finish(recs)
	return nil
}

// apply runs the commit phases against st in a deterministic order:
// node creations, property updates, link creations, link removals,
// deletions. Creations run before removals so a commit that re-links
// the same pair never leaves a window where the link is gone.
func (s *Session) apply(ctx context.Context, st store.Store, recs map[*Entity]*record, j *journal) error {
	ents := make([]*Entity, 0, len(recs))
	for e := range recs {
		ents = append(ents, e)
	}
	sort.Slice(ents, func(i, k int) bool { return ents[i].seq < ents[k].seq })

	created := make(map[*Entity]bool)
	for _, e := range ents {
		r := recs[e]
		if r.deleted || !e.h.IsZero() {
			continue
		}
		h, err := st.CreateNode(ctx, e.typ.Label, e.storageProps())
		if err != nil {
			return NewCommitError(e.typ.Name, "create", err)
		}
		e.h = h
		s.idmap[h] = weak.Make(e)
		created[e] = true
		j.created = append(j.created, e)
	}
	for _, e := range ents {
		r := recs[e]
		if r.deleted || created[e] || len(r.fields) == 0 {
			continue
		}
		props := make(store.Props, len(r.fields))
		for name := range r.fields {
			f := e.typ.Field(name)
			v, ok := e.props[name]
			if !ok {
				v = nil // cleared
			}
			props[f.StorageKey] = v
		}
		if err := st.UpdateNode(ctx, e.h, props); err != nil {
			return NewCommitError(e.typ.Name, "update", err)
		}
	}
	for _, e := range ents {
		r := recs[e]
		for _, relType := range sortedDiffKeys(r.diffs) {
			for _, op := range r.diffs[relType].adds {
				if op.done || dropsLink(recs, op) {
					continue
				}
				h, err := st.CreateRel(ctx, relType, op.from.h, op.to.h, op.ord, nil)
				if err != nil {
					return NewCommitError(e.typ.Name, "link", err)
				}
				op.done, op.relH = true, h
				j.linked = append(j.linked, op)
			}
		}
	}
	for _, e := range ents {
		r := recs[e]
		for _, relType := range sortedDiffKeys(r.diffs) {
			d := r.diffs[relType]
			for _, rel := range sortedRemoveKeys(d.removes) {
				op := d.removes[rel]
				if op.done {
					continue
				}
				if err := st.DeleteRel(ctx, rel); err != nil && !store.IsNotFound(err) {
					return NewCommitError(e.typ.Name, "unlink", err)
				}
				op.done = true
				j.removed = append(j.removed, op)
			}
		}
	}
	for _, e := range ents {
		r := recs[e]
		if !r.deleted || e.h.IsZero() {
			continue
		}
		for _, ed := range e.typ.Edges {
			if ed.OnDelete != schema.Cascade {
				continue
			}
			dir := store.Outgoing
			if ed.Dir == schema.In {
				dir = store.Incoming
			}
			rels, err := st.FetchRels(ctx, e.h, ed.StorageKey, dir)
			if err != nil {
				return NewCommitError(e.typ.Name, "delete", err)
			}
			for _, rl := range rels {
				if err := st.DeleteRel(ctx, rl.Handle); err != nil && !store.IsNotFound(err) {
					return NewCommitError(e.typ.Name, "delete", err)
				}
			}
		}
		if err := st.DeleteNode(ctx, e.h); err != nil {
			return NewCommitError(e.typ.Name, "delete", err)
		}
	}
	return nil
}

// dropsLink reports whether a staged link touches an entity that is
// itself marked for deletion in this commit, or an endpoint that never
// received a handle (evicted before commit).
func dropsLink(recs map[*Entity]*record, op *linkAdd) bool {
	if r, ok := recs[op.from]; ok && r.deleted {
		return true
	}
	if r, ok := recs[op.to]; ok && r.deleted {
		return true
	}
	return op.from.h.IsZero() || op.to.h.IsZero()
}

// finish binds the handles of applied link operations into the loaded
// collection caches, settles entity states and clears the records.
func (s *Session) finish(recs map[*Entity]*record) {
	for _, r := range recs {
		for _, d := range r.diffs {
			for _, op := range d.adds {
				if !op.done {
					continue
				}
				for _, m := range op.bind {
					m.rel, m.op = op.relH, nil
				}
			}
		}
	}
	for e, r := range recs {
		s.tracker.Clear(e)
		if r.deleted {
			if !e.h.IsZero() {
				delete(s.idmap, e.h)
			}
			e.state = Deleted
			e.sess = nil
			continue
		}
		e.state = Clean
	}
}

// revert rolls the in-memory markers of a transactional attempt back
// after the store rolled back its side.
func (s *Session) revert(j *journal) {
	for _, e := range j.created {
		delete(s.idmap, e.h)
		e.h = ""
	}
	for _, op := range j.linked {
		op.done, op.relH = false, ""
	}
	for _, op := range j.removed {
		op.done = false
	}
}

// FindAll returns an entity for every stored node of the named type,
// in the store's scan order. The backing store must support label
// scans.
func (s *Session) FindAll(ctx context.Context, typeName string) ([]*Entity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	typ, ok := s.reg.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("grafo: type %q is not registered", typeName)
	}
	sc, ok := s.store.(store.Scanner)
	if !ok {
		return nil, fmt.Errorf("grafo: store %T does not support label scans", s.store)
	}
	handles, err := sc.NodesByLabel(ctx, typ.Label)
	if err != nil {
		return nil, err
	}
	out := make([]*Entity, 0, len(handles))
	for _, h := range handles {
		e, err := s.Resolve(ctx, h)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FindOne returns the first stored entity of the named type whose
// field holds the given value, or an error wrapping ErrNotFound.
func (s *Session) FindOne(ctx context.Context, typeName, field string, value any) (*Entity, error) {
	ents, err := s.FindAll(ctx, typeName)
	if err != nil {
		return nil, err
	}
	typ, _ := s.reg.Lookup(typeName)
	f := typ.Field(field)
	if f == nil {
		return nil, fmt.Errorf("grafo: type %s has no field %q", typeName, field)
	}
	want, err := coerce(f, value)
	if err != nil {
		return nil, err
	}
	for _, e := range ents {
		if got, ok := e.props[field]; ok && sameValue(got, want) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("grafo: no %s with %s=%v: %w", typeName, field, value, ErrNotFound)
}

// FindOrCreate returns the entity FindOne would, or a new transient
// entity with the field preset when none is stored yet.
func (s *Session) FindOrCreate(ctx context.Context, typeName, field string, value any) (*Entity, error) {
	e, err := s.FindOne(ctx, typeName, field, value)
	if err == nil {
		return e, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	e, err = s.NewEntity(typeName)
	if err != nil {
		return nil, err
	}
	if err := e.SetField(field, value); err != nil {
		return nil, err
	}
	return e, nil
}

// storageProps maps the entity's field values onto storage keys.
func (e *Entity) storageProps() store.Props {
	props := make(store.Props, len(e.props))
	for name, v := range e.props {
		props[e.typ.Field(name).StorageKey] = v
	}
	return props
}

func sortedDiffKeys(diffs map[string]*edgeDiff) []string {
	out := make([]string, 0, len(diffs))
	for k := range diffs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedRemoveKeys(removes map[store.Handle]*linkRemove) []store.Handle {
	out := make([]store.Handle, 0, len(removes))
	for h := range removes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// decodeValue converts a stored property into the canonical field
// representation. Stores that round-trip properties through JSON
// deliver numbers as float64 and times as RFC 3339 strings.
func decodeValue(f *schema.Field, raw any) (any, error) {
	switch f.Kind {
	case schema.String:
		if s, ok := raw.(string); ok {
			return s, nil
		}
	case schema.Int:
		switch n := raw.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case float64:
			return int64(n), nil
		}
	case schema.Float:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case schema.Bool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case schema.Time:
		switch t := raw.(type) {
		case time.Time:
			return t, nil
		case string:
			ts, err := time.Parse(time.RFC3339Nano, t)
			if err == nil {
				return ts, nil
			}
		}
	}
	return nil, NewTypeMismatchError(f.Name, f.Kind.String(), fmt.Sprintf("%T", raw))
}
