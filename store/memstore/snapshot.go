package memstore

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/grafo/store"
)

// snapshot is the serialized form of the whole store.
type snapshot struct {
	NSeq  uint64     `msgpack:"nseq"`
	RSeq  uint64     `msgpack:"rseq"`
	Nodes []snapNode `msgpack:"nodes"`
	Rels  []snapRel  `msgpack:"rels"`
}

type snapNode struct {
	Handle store.Handle `msgpack:"handle"`
	Seq    uint64       `msgpack:"seq"`
	Label  string       `msgpack:"label"`
	Props  store.Props  `msgpack:"props"`
}

type snapRel struct {
	Handle store.Handle `msgpack:"handle"`
	Seq    uint64       `msgpack:"seq"`
	Type   string       `msgpack:"type"`
	From   store.Handle `msgpack:"from"`
	To     store.Handle `msgpack:"to"`
	Ord    int          `msgpack:"ord"`
	Props  store.Props  `msgpack:"props"`
}

// Snapshot writes a msgpack-encoded copy of the whole store to w.
// Together with Restore it gives standalone mode a durable form
// without involving any external backend.
func (s *Store) Snapshot(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		NSeq:  s.nseq,
		RSeq:  s.rseq,
		Nodes: make([]snapNode, 0, len(s.nodes)),
		Rels:  make([]snapRel, 0, len(s.rels)),
	}
	for h, n := range s.nodes {
		snap.Nodes = append(snap.Nodes, snapNode{
			Handle: h,
			Seq:    n.seq,
			Label:  n.label,
			Props:  n.props,
		})
	}
	for h, r := range s.rels {
		snap.Rels = append(snap.Rels, snapRel{
			Handle: h,
			Seq:    r.seq,
			Type:   r.typ,
			From:   r.from,
			To:     r.to,
			Ord:    r.ord,
			Props:  r.props,
		})
	}
	if err := msgpack.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("memstore: encode snapshot: %w", err)
	}
	return nil
}

// Restore replaces the store contents with a snapshot previously
// written by Snapshot.
func (s *Store) Restore(r io.Reader) error {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("memstore: decode snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nseq = snap.NSeq
	s.rseq = snap.RSeq
	s.nodes = make(map[store.Handle]*node, len(snap.Nodes))
	s.rels = make(map[store.Handle]*rel, len(snap.Rels))
	for _, n := range snap.Nodes {
		props := n.Props
		if props == nil {
			props = make(store.Props)
		}
		s.nodes[n.Handle] = &node{
			seq:   n.Seq,
			label: n.Label,
			props: props,
			rels:  make(map[store.Handle]struct{}),
		}
	}
	for _, sr := range snap.Rels {
		s.rels[sr.Handle] = &rel{
			seq:   sr.Seq,
			typ:   sr.Type,
			from:  sr.From,
			to:    sr.To,
			ord:   sr.Ord,
			props: sr.Props,
		}
		if n, ok := s.nodes[sr.From]; ok {
			n.rels[sr.Handle] = struct{}{}
		}
		if n, ok := s.nodes[sr.To]; ok {
			n.rels[sr.Handle] = struct{}{}
		}
	}
	return nil
}
