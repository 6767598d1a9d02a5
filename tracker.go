package grafo

import (
	"sort"
	"weak"

	"github.com/syssam/grafo/store"
)

// linkAdd is a staged relationship creation, recorded on the owning
// (from) side. Both endpoints are held strongly so a staged link keeps
// them reachable until committed.
type linkAdd struct {
	from *Entity
	to   *Entity
	ord  int
	done bool
	relH store.Handle // assigned once the store applied the creation
	bind []*member    // cached members to bind to the new handle
}

// linkRemove is a staged deletion of a persisted relationship.
type linkRemove struct {
	rel  store.Handle
	done bool
}

// edgeDiff is the staged membership change of one relationship type,
// recorded on the owning side.
type edgeDiff struct {
	relType string
	adds    []*linkAdd
	removes map[store.Handle]*linkRemove
}

func (d *edgeDiff) stageRemove(rel store.Handle) {
	if _, ok := d.removes[rel]; !ok {
		d.removes[rel] = &linkRemove{rel: rel}
	}
}

// record is the dirty record of one entity: the property names and
// association names changed since the last commit, plus the staged
// link operations this entity owns.
type record struct {
	fields  map[string]struct{}
	edges   map[string]struct{}
	diffs   map[string]*edgeDiff // keyed by relationship type
	deleted bool
}

func newRecord() *record {
	return &record{
		fields: make(map[string]struct{}),
		edges:  make(map[string]struct{}),
		diffs:  make(map[string]*edgeDiff),
	}
}

func (r *record) diff(relType string) *edgeDiff {
	d, ok := r.diffs[relType]
	if !ok {
		d = &edgeDiff{relType: relType, removes: make(map[store.Handle]*linkRemove)}
		r.diffs[relType] = d
	}
	return d
}

// names returns the dirty attribute and association names, sorted.
func (r *record) names() []string {
	out := make([]string, 0, len(r.fields)+len(r.edges))
	for name := range r.fields {
		out = append(out, name)
	}
	for name := range r.edges {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Tracker records, per entity, the dirty properties and associations
// since the last synchronization. Records are keyed by weak pointer:
// the tracker is back-reference bookkeeping only and never extends an
// entity's lifetime — a dirty record whose entity was collected is
// silently dropped on the next snapshot.
type Tracker struct {
	recs map[weak.Pointer[Entity]]*record
}

func newTracker() *Tracker {
	return &Tracker{recs: make(map[weak.Pointer[Entity]]*record)}
}

// rec returns the record for e, creating it if absent.
func (t *Tracker) rec(e *Entity) *record {
	key := weak.Make(e)
	r, ok := t.recs[key]
	if !ok {
		r = newRecord()
		t.recs[key] = r
	}
	return r
}

// peek returns the record for e, or nil.
func (t *Tracker) peek(e *Entity) *record {
	return t.recs[weak.Make(e)]
}

// MarkField records a changed property. Marking is idempotent.
func (t *Tracker) MarkField(e *Entity, name string) {
	t.rec(e).fields[name] = struct{}{}
}

// MarkEdge records an association whose membership changed. Marking is
// idempotent.
func (t *Tracker) MarkEdge(e *Entity, name string) {
	t.rec(e).edges[name] = struct{}{}
}

// Clear drops the dirty record of e.
func (t *Tracker) Clear(e *Entity) {
	delete(t.recs, weak.Make(e))
}

// Snapshot returns the dirty attribute/association names per live
// entity. Records of collected entities are pruned along the way.
func (t *Tracker) Snapshot() map[*Entity][]string {
	out := make(map[*Entity][]string, len(t.recs))
	for key, r := range t.recs {
		e := key.Value()
		if e == nil {
			delete(t.recs, key)
			continue
		}
		out[e] = r.names()
	}
	return out
}

// live materializes the record map with strong keys for a commit,
// pruning records of collected entities.
func (t *Tracker) live() map[*Entity]*record {
	out := make(map[*Entity]*record, len(t.recs))
	for key, r := range t.recs {
		e := key.Value()
		if e == nil {
			delete(t.recs, key)
			continue
		}
		out[e] = r
	}
	return out
}

// stageAdd records a pending relationship creation on the owning side.
func (t *Tracker) stageAdd(relType string, from, to *Entity, ord int) *linkAdd {
	op := &linkAdd{from: from, to: to, ord: ord}
	d := t.rec(from).diff(relType)
	d.adds = append(d.adds, op)
	return op
}

// stageRemove records a pending deletion of a persisted relationship.
func (t *Tracker) stageRemove(owner *Entity, relType string, rel store.Handle) {
	t.rec(owner).diff(relType).stageRemove(rel)
}

// cancelAdd withdraws a staged relationship creation before it is
// applied.
func (t *Tracker) cancelAdd(relType string, op *linkAdd) {
	r := t.peek(op.from)
	if r == nil {
		return
	}
	d, ok := r.diffs[relType]
	if !ok {
		return
	}
	for i, o := range d.adds {
		if o == op {
			d.adds = append(d.adds[:i], d.adds[i+1:]...)
			return
		}
	}
}

// markDeleted flags e for deletion at the next commit.
func (t *Tracker) markDeleted(e *Entity) {
	t.rec(e).deleted = true
}

// overlayAdd is a staged addition as seen from one endpoint.
type overlayAdd struct {
	op    *linkAdd
	other *Entity
}

// overlay returns the staged membership changes of one relationship
// type as seen from e loading in the given direction: additions where
// e fills the matching endpoint role (the from side for outgoing
// loads, the to side for incoming loads), and the set of persisted
// relationships staged for removal. Collections apply it over freshly
// fetched store state so an unloaded inverse side observes mutations
// staged on the owning side. The role match matters for
// self-referential relationship types, where one entity can appear on
// either end.
func (t *Tracker) overlay(e *Entity, relType string, dir store.Direction) ([]overlayAdd, map[store.Handle]bool) {
	var adds []overlayAdd
	removes := make(map[store.Handle]bool)
	for key, r := range t.recs {
		if key.Value() == nil {
			delete(t.recs, key)
			continue
		}
		d, ok := r.diffs[relType]
		if !ok {
			continue
		}
		for _, op := range d.adds {
			switch {
			case dir == store.Outgoing && op.from == e:
				adds = append(adds, overlayAdd{op: op, other: op.to})
			case dir == store.Incoming && op.to == e:
				adds = append(adds, overlayAdd{op: op, other: op.from})
			}
		}
		// Removal handles are globally unique, so every staged removal
		// of this relationship type is a safe filter: handles that do
		// not involve e never appear in its fetched relationships.
		for rel := range d.removes {
			removes[rel] = true
		}
	}
	return adds, removes
}
