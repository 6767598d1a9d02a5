package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/syssam/grafo/store"
)

type node struct {
	seq   uint64
	label string
	props store.Props
	rels  map[store.Handle]struct{} // incident relationships, both directions
}

type rel struct {
	seq   uint64
	typ   string
	from  store.Handle
	to    store.Handle
	ord   int
	props store.Props
}

// Store is the in-memory graph store used in standalone mode.
//
// Nodes and relationships live in maps keyed by monotonically assigned
// handles, giving O(1) lookup and O(degree) relationship enumeration.
// Mutating operations are serialized behind a single write lock so two
// sessions committing concurrently never observe a half-applied
// creation; fetches proceed concurrently under a read lock.
type Store struct {
	mu    sync.RWMutex
	nodes map[store.Handle]*node
	rels  map[store.Handle]*rel
	nseq  uint64
	rseq  uint64
	hook  func(op string) error
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		nodes: make(map[store.Handle]*node),
		rels:  make(map[store.Handle]*rel),
	}
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.Scanner = (*Store)(nil)
)

// SetHook installs a function invoked before every mutating operation
// with the operation name. A non-nil return aborts the operation with
// that error. It exists for failure-injection in tests; a nil hook
// removes it.
func (s *Store) SetHook(fn func(op string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

func (s *Store) runHook(op string) error {
	if s.hook != nil {
		return s.hook(op)
	}
	return nil
}

// CreateNode implements store.Store.
func (s *Store) CreateNode(_ context.Context, label string, props store.Props) (store.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runHook("CreateNode"); err != nil {
		return "", err
	}
	s.nseq++
	h := store.Handle(fmt.Sprintf("n%d", s.nseq))
	s.nodes[h] = &node{
		seq:   s.nseq,
		label: label,
		props: props.Clone(),
		rels:  make(map[store.Handle]struct{}),
	}
	if s.nodes[h].props == nil {
		s.nodes[h].props = make(store.Props)
	}
	return h, nil
}

// UpdateNode implements store.Store. A nil property value removes the key.
func (s *Store) UpdateNode(_ context.Context, h store.Handle, props store.Props) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runHook("UpdateNode"); err != nil {
		return err
	}
	n, ok := s.nodes[h]
	if !ok {
		return store.NewNotFoundError("node", h)
	}
	for k, v := range props {
		if v == nil {
			delete(n.props, k)
			continue
		}
		n.props[k] = v
	}
	return nil
}

// DeleteNode implements store.Store. It refuses to delete a node that
// is still referenced by relationships.
func (s *Store) DeleteNode(_ context.Context, h store.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runHook("DeleteNode"); err != nil {
		return err
	}
	n, ok := s.nodes[h]
	if !ok {
		return store.NewNotFoundError("node", h)
	}
	if len(n.rels) > 0 {
		return store.NewReferentialError(h, len(n.rels))
	}
	delete(s.nodes, h)
	return nil
}

// FetchNode implements store.Store.
func (s *Store) FetchNode(_ context.Context, h store.Handle) (string, store.Props, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[h]
	if !ok {
		return "", nil, store.NewNotFoundError("node", h)
	}
	return n.label, n.props.Clone(), nil
}

// CreateRel implements store.Store.
func (s *Store) CreateRel(_ context.Context, typ string, from, to store.Handle, ord int, props store.Props) (store.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runHook("CreateRel"); err != nil {
		return "", err
	}
	fn, ok := s.nodes[from]
	if !ok {
		return "", store.NewNotFoundError("node", from)
	}
	tn, ok := s.nodes[to]
	if !ok {
		return "", store.NewNotFoundError("node", to)
	}
	s.rseq++
	h := store.Handle(fmt.Sprintf("r%d", s.rseq))
	s.rels[h] = &rel{
		seq:   s.rseq,
		typ:   typ,
		from:  from,
		to:    to,
		ord:   ord,
		props: props.Clone(),
	}
	fn.rels[h] = struct{}{}
	tn.rels[h] = struct{}{}
	return h, nil
}

// DeleteRel implements store.Store.
func (s *Store) DeleteRel(_ context.Context, h store.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.runHook("DeleteRel"); err != nil {
		return err
	}
	r, ok := s.rels[h]
	if !ok {
		return store.NewNotFoundError("relationship", h)
	}
	if n, ok := s.nodes[r.from]; ok {
		delete(n.rels, h)
	}
	if n, ok := s.nodes[r.to]; ok {
		delete(n.rels, h)
	}
	delete(s.rels, h)
	return nil
}

// FetchRels implements store.Store. Results are ordered by (Ord, creation).
func (s *Store) FetchRels(_ context.Context, h store.Handle, typ string, dir store.Direction) ([]store.Rel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[h]
	if !ok {
		return nil, store.NewNotFoundError("node", h)
	}
	type entry struct {
		seq uint64
		rel store.Rel
	}
	var out []entry
	for rh := range n.rels {
		r := s.rels[rh]
		if typ != "" && r.typ != typ {
			continue
		}
		switch dir {
		case store.Outgoing:
			if r.from != h {
				continue
			}
		case store.Incoming:
			if r.to != h {
				continue
			}
		}
		out = append(out, entry{seq: r.seq, rel: store.Rel{
			Handle: rh,
			Type:   r.typ,
			From:   r.from,
			To:     r.to,
			Ord:    r.ord,
			Props:  r.props.Clone(),
		}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].rel.Ord != out[j].rel.Ord {
			return out[i].rel.Ord < out[j].rel.Ord
		}
		return out[i].seq < out[j].seq
	})
	rels := make([]store.Rel, len(out))
	for i, e := range out {
		rels[i] = e.rel
	}
	return rels, nil
}

// NodesByLabel implements store.Scanner. Handles come back in creation order.
func (s *Store) NodesByLabel(_ context.Context, label string) ([]store.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type entry struct {
		seq uint64
		h   store.Handle
	}
	var out []entry
	for h, n := range s.nodes {
		if n.label == label {
			out = append(out, entry{seq: n.seq, h: h})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	handles := make([]store.Handle, len(out))
	for i, e := range out {
		handles[i] = e.h
	}
	return handles, nil
}

// NodeCount returns the number of live nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// RelCount returns the number of live relationships.
func (s *Store) RelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rels)
}

// Close implements store.Store. It is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
