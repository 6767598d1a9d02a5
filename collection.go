package grafo

import (
	"context"
	"fmt"
	"sort"

	"github.com/syssam/grafo/schema"
	"github.com/syssam/grafo/store"
)

// member is one entry of a loaded association: the target entity, the
// persisted relationship behind it (zero while pending), and the
// ordinal for ordered lists. Pending members carry the staged
// operation that will create their relationship.
type member struct {
	ent *Entity
	rel store.Handle
	ord int
	op  *linkAdd
}

// assoc is the per-edge association state shared by the Ref, List and
// Set accessors: the lazily loaded membership of one edge of one
// entity, kept consistent with the mutations staged in the session's
// tracker.
type assoc struct {
	owner  *Entity
	edge   *schema.Edge
	loaded bool
	items  []*member
}

// load fetches the persisted membership and applies the staged overlay
// on top: relationships staged for removal are filtered out and staged
// additions appear as pending members. Loading is lazy and cached; a
// second load is free.
func (a *assoc) load(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	sess := a.owner.sess
	var items []*member
	persisted := make(map[store.Handle]bool)
	dir := store.Outgoing
	if a.edge.Dir == schema.In {
		dir = store.Incoming
	}
	adds, removed := sess.tracker.overlay(a.owner, a.edge.StorageKey, dir)
	if !a.owner.h.IsZero() {
		rels, err := sess.store.FetchRels(ctx, a.owner.h, a.edge.StorageKey, dir)
		if err != nil {
			return err
		}
		for _, r := range rels {
			if removed[r.Handle] {
				continue
			}
			other, err := sess.Resolve(ctx, r.Other(a.owner.h))
			if err != nil {
				return err
			}
			items = append(items, &member{ent: other, rel: r.Handle, ord: r.Ord})
			persisted[r.Handle] = true
		}
	}
	for _, add := range adds {
		op := add.op
		// An applied addition is already visible in the fetch.
		if op.done && persisted[op.relH] {
			continue
		}
		m := &member{ent: add.other, ord: op.ord, op: op}
		op.bind = append(op.bind, m)
		items = append(items, m)
	}
	if a.edge.Cardinality == schema.OrderedList {
		sort.SliceStable(items, func(i, j int) bool { return items[i].ord < items[j].ord })
	}
	a.items = items
	a.loaded = true
	return nil
}

// refresh discards the cached membership and loads it again. Staged
// operations survive: the overlay re-applies them on the fresh load.
func (a *assoc) refresh(ctx context.Context) error {
	a.loaded = false
	a.items = nil
	return a.load(ctx)
}

// check validates a link target before any state is altered.
func (a *assoc) check(target *Entity) error {
	if err := a.owner.guard(); err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("grafo: association %s.%s: nil target", a.owner.typ.Name, a.edge.Name)
	}
	if err := target.guard(); err != nil {
		return err
	}
	if target.sess != a.owner.sess {
		return fmt.Errorf("grafo: association %s.%s: target belongs to a different session", a.owner.typ.Name, a.edge.Name)
	}
	if target.typ.Name != a.edge.Target {
		return NewTypeMismatchError(a.edge.Name, a.edge.Target, target.typ.Name)
	}
	return nil
}

func (a *assoc) contains(target *Entity) bool {
	for _, m := range a.items {
		if m.ent == target {
			return true
		}
	}
	return false
}

func (a *assoc) maxOrd() int {
	max := -1
	for _, m := range a.items {
		if m.ord > max {
			max = m.ord
		}
	}
	return max
}

// mirror returns the already-loaded inverse association on the other
// endpoint, or nil when the edge is unidirectional or the inverse side
// has not been loaded (an unloaded side picks the change up from the
// tracker overlay on its next load).
func (a *assoc) mirror(other *Entity) *assoc {
	if a.edge.Inverse == "" {
		return nil
	}
	inv, ok := other.assocs[a.edge.Inverse]
	if !ok || !inv.loaded {
		return nil
	}
	return inv
}

// linkNew stages the creation of a relationship to target and inserts
// the pending member into this side's cache and, when loaded, the
// inverse side's.
func (a *assoc) linkNew(target *Entity, ord int) {
	from, to := a.owner, target
	if a.edge.Dir == schema.In {
		from, to = target, a.owner
	}
	op := a.owner.sess.tracker.stageAdd(a.edge.StorageKey, from, to, ord)
	m := &member{ent: target, ord: ord, op: op}
	op.bind = append(op.bind, m)
	a.items = append(a.items, m)
	if inv := a.mirror(target); inv != nil {
		mm := &member{ent: a.owner, ord: ord, op: op}
		op.bind = append(op.bind, mm)
		if inv.edge.Cardinality == schema.Single {
			inv.items = inv.items[:0]
		}
		inv.items = append(inv.items, mm)
	}
}

// unlink withdraws one member: a pending addition is cancelled, a
// persisted relationship is staged for removal. The member is dropped
// from both loaded caches.
func (a *assoc) unlink(m *member) {
	tr := a.owner.sess.tracker
	if m.op != nil && !m.op.done {
		tr.cancelAdd(a.edge.StorageKey, m.op)
	} else {
		rel := m.rel
		if m.op != nil {
			rel = m.op.relH
		}
		if !rel.IsZero() {
			tr.stageRemove(a.owner, a.edge.StorageKey, rel)
		}
	}
	for i, it := range a.items {
		if it == m {
			a.items = append(a.items[:i], a.items[i+1:]...)
			break
		}
	}
	if inv := a.mirror(m.ent); inv != nil {
		inv.dropMirror(a.owner, m.op, m.rel)
	}
}

// dropMirror removes the cached member that mirrors a withdrawn link
// on the other side.
func (a *assoc) dropMirror(other *Entity, op *linkAdd, rel store.Handle) {
	for i, m := range a.items {
		if m.ent == other && m.op == op && m.rel == rel {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return
		}
	}
	for i, m := range a.items {
		if m.ent == other {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return
		}
	}
}

// stealInverse enforces a to-one inverse: when the target's inverse
// edge is a single reference, linking it here first unlinks it from
// its previous holder.
func (a *assoc) stealInverse(ctx context.Context, target *Entity) error {
	if a.edge.Inverse == "" {
		return nil
	}
	invEdge := target.typ.Edge(a.edge.Inverse)
	if invEdge == nil || invEdge.Cardinality != schema.Single {
		return nil
	}
	inv := target.assocFor(invEdge)
	if err := inv.load(ctx); err != nil {
		return err
	}
	if len(inv.items) == 0 {
		return nil
	}
	cur := inv.items[0]
	inv.unlink(cur)
	inv.markBoth(cur.ent)
	return nil
}

// markBoth dirties the owner's edge and, for bidirectional edges, the
// other endpoint's inverse.
func (a *assoc) markBoth(other *Entity) {
	tr := a.owner.sess.tracker
	tr.MarkEdge(a.owner, a.edge.Name)
	a.owner.touch()
	if other != nil && a.edge.Inverse != "" {
		tr.MarkEdge(other, a.edge.Inverse)
		other.touch()
	}
}

// restage rewrites the staged operations of an ordered list so the
// persisted ordinals match the current cache order: every surviving
// relationship is staged for removal and recreated with its index as
// the ordinal. Mirrored members on loaded inverse sides are rebound to
// the fresh operations.
func (a *assoc) restage() {
	tr := a.owner.sess.tracker
	for i, m := range a.items {
		oldRel, oldOp := m.rel, m.op
		if oldOp != nil && !oldOp.done {
			tr.cancelAdd(a.edge.StorageKey, oldOp)
		} else {
			rel := oldRel
			if oldOp != nil {
				rel = oldOp.relH
			}
			if !rel.IsZero() {
				tr.stageRemove(a.owner, a.edge.StorageKey, rel)
			}
		}
		op := tr.stageAdd(a.edge.StorageKey, a.owner, m.ent, i)
		m.rel, m.ord, m.op = "", i, op
		op.bind = append(op.bind, m)
		if inv := a.mirror(m.ent); inv != nil {
			for _, mm := range inv.items {
				if mm.ent == a.owner && mm.op == oldOp && mm.rel == oldRel {
					mm.rel, mm.op = "", op
					op.bind = append(op.bind, mm)
					break
				}
			}
		}
	}
}

func (a *assoc) entities() []*Entity {
	out := make([]*Entity, len(a.items))
	for i, m := range a.items {
		out[i] = m.ent
	}
	return out
}

// Ref is a to-one association: it holds zero or one target entity.
type Ref struct {
	a *assoc
}

// Get returns the referenced entity, or nil when the reference is
// unset.
func (r *Ref) Get(ctx context.Context) (*Entity, error) {
	if err := r.a.owner.guard(); err != nil {
		return nil, err
	}
	if err := r.a.load(ctx); err != nil {
		return nil, err
	}
	if len(r.a.items) == 0 {
		return nil, nil
	}
	return r.a.items[0].ent, nil
}

// Set points the reference at target, unlinking the previous target if
// any. A nil target clears the reference. Re-setting the current
// target is a no-op and does not dirty either side. When the inverse
// side is an ordered list, the new member is appended at its end.
func (r *Ref) Set(ctx context.Context, target *Entity) error {
	a := r.a
	if target == nil {
		if err := a.owner.guard(); err != nil {
			return err
		}
	} else if err := a.check(target); err != nil {
		return err
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	var cur *member
	if len(a.items) > 0 {
		cur = a.items[0]
	}
	switch {
	case cur == nil && target == nil:
		return nil
	case cur != nil && cur.ent == target:
		return nil
	}
	ord := 0
	if target != nil {
		if err := a.stealInverse(ctx, target); err != nil {
			return err
		}
		// Joining an ordered list from the reference side appends.
		if invEdge := target.typ.Edge(a.edge.Inverse); invEdge != nil && invEdge.Cardinality == schema.OrderedList {
			inv := target.assocFor(invEdge)
			if err := inv.load(ctx); err != nil {
				return err
			}
			ord = inv.maxOrd() + 1
		}
	}
	if cur != nil {
		a.unlink(cur)
		a.markBoth(cur.ent)
	}
	if target != nil {
		a.linkNew(target, ord)
		a.markBoth(target)
	}
	return nil
}

// Refresh re-reads the reference from the store, keeping uncommitted
// changes visible.
func (r *Ref) Refresh(ctx context.Context) error {
	if err := r.a.owner.guard(); err != nil {
		return err
	}
	return r.a.refresh(ctx)
}

// List is an ordered to-many association. Member order is significant
// and survives commit and reload; each relationship persists its
// position as an explicit ordinal.
type List struct {
	a *assoc
}

// Items returns the members in list order.
func (l *List) Items(ctx context.Context) ([]*Entity, error) {
	if err := l.a.owner.guard(); err != nil {
		return nil, err
	}
	if err := l.a.load(ctx); err != nil {
		return nil, err
	}
	return l.a.entities(), nil
}

// Len returns the number of members.
func (l *List) Len(ctx context.Context) (int, error) {
	if err := l.a.owner.guard(); err != nil {
		return 0, err
	}
	if err := l.a.load(ctx); err != nil {
		return 0, err
	}
	return len(l.a.items), nil
}

// Append adds target at the end of the list. Unless the edge allows
// duplicates, appending a current member fails with ErrDuplicate.
func (l *List) Append(ctx context.Context, target *Entity) error {
	a := l.a
	if err := a.check(target); err != nil {
		return err
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	if !a.edge.Dup && a.contains(target) {
		return ErrDuplicate
	}
	if err := a.stealInverse(ctx, target); err != nil {
		return err
	}
	a.linkNew(target, a.maxOrd()+1)
	a.markBoth(target)
	return nil
}

// Insert adds target at position i, shifting later members. The whole
// tail is re-staged so persisted ordinals match the new order.
func (l *List) Insert(ctx context.Context, i int, target *Entity) error {
	a := l.a
	if err := a.check(target); err != nil {
		return err
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	if i < 0 || i > len(a.items) {
		return fmt.Errorf("grafo: association %s.%s: insert index %d out of range [0, %d]", a.owner.typ.Name, a.edge.Name, i, len(a.items))
	}
	if !a.edge.Dup && a.contains(target) {
		return ErrDuplicate
	}
	if err := a.stealInverse(ctx, target); err != nil {
		return err
	}
	m := &member{ent: target}
	a.items = append(a.items[:i], append([]*member{m}, a.items[i:]...)...)
	if inv := a.mirror(target); inv != nil {
		mm := &member{ent: a.owner}
		if inv.edge.Cardinality == schema.Single {
			inv.items = inv.items[:0]
		}
		inv.items = append(inv.items, mm)
	}
	a.restage()
	a.markBoth(target)
	return nil
}

// Remove unlinks target from the list. Removing a non-member is a
// no-op and does not dirty the list. Later members keep their relative
// order.
func (l *List) Remove(ctx context.Context, target *Entity) error {
	a := l.a
	if err := a.check(target); err != nil {
		return err
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	for _, m := range a.items {
		if m.ent == target {
			a.unlink(m)
			a.markBoth(target)
			return nil
		}
	}
	return nil
}

// Reorder rearranges the list: perm must be a permutation of the
// current indices, and the member at perm[i] moves to position i.
// Membership is unchanged, so only the owning side is dirtied.
func (l *List) Reorder(ctx context.Context, perm []int) error {
	a := l.a
	if err := a.owner.guard(); err != nil {
		return err
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	if len(perm) != len(a.items) {
		return fmt.Errorf("grafo: association %s.%s: permutation length %d, have %d members", a.owner.typ.Name, a.edge.Name, len(perm), len(a.items))
	}
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return fmt.Errorf("grafo: association %s.%s: invalid permutation", a.owner.typ.Name, a.edge.Name)
		}
		seen[p] = true
	}
	next := make([]*member, len(a.items))
	for i, p := range perm {
		next[i] = a.items[p]
	}
	a.items = next
	a.restage()
	a.owner.sess.tracker.MarkEdge(a.owner, a.edge.Name)
	a.owner.touch()
	return nil
}

// Refresh re-reads the membership from the store, keeping uncommitted
// changes visible.
func (l *List) Refresh(ctx context.Context) error {
	if err := l.a.owner.guard(); err != nil {
		return err
	}
	return l.a.refresh(ctx)
}

// Set is an unordered to-many association, unique by member.
type Set struct {
	a *assoc
}

// Items returns the members. Order is not significant.
func (s *Set) Items(ctx context.Context) ([]*Entity, error) {
	if err := s.a.owner.guard(); err != nil {
		return nil, err
	}
	if err := s.a.load(ctx); err != nil {
		return nil, err
	}
	return s.a.entities(), nil
}

// Len returns the number of members.
func (s *Set) Len(ctx context.Context) (int, error) {
	if err := s.a.owner.guard(); err != nil {
		return 0, err
	}
	if err := s.a.load(ctx); err != nil {
		return 0, err
	}
	return len(s.a.items), nil
}

// Contains reports whether target is a member.
func (s *Set) Contains(ctx context.Context, target *Entity) (bool, error) {
	if err := s.a.check(target); err != nil {
		return false, err
	}
	if err := s.a.load(ctx); err != nil {
		return false, err
	}
	return s.a.contains(target), nil
}

// Add links target into the set. Adding a current member is a no-op
// and does not dirty either side.
func (s *Set) Add(ctx context.Context, target *Entity) error {
	a := s.a
	if err := a.check(target); err != nil {
		return err
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	if a.contains(target) {
		return nil
	}
	if err := a.stealInverse(ctx, target); err != nil {
		return err
	}
	a.linkNew(target, 0)
	a.markBoth(target)
	return nil
}

// Discard unlinks target from the set. Discarding a non-member is a
// no-op and does not dirty the set.
func (s *Set) Discard(ctx context.Context, target *Entity) error {
	a := s.a
	if err := a.check(target); err != nil {
		return err
	}
	if err := a.load(ctx); err != nil {
		return err
	}
	for _, m := range a.items {
		if m.ent == target {
			a.unlink(m)
			a.markBoth(target)
			return nil
		}
	}
	return nil
}

// Refresh re-reads the membership from the store, keeping uncommitted
// changes visible.
func (s *Set) Refresh(ctx context.Context) error {
	if err := s.a.owner.guard(); err != nil {
		return err
	}
	return s.a.refresh(ctx)
}
