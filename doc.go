// Package grafo maps application objects onto a property graph.
//
// Types are declared once in a [schema.Registry]: scalar attributes
// become node properties, relationship attributes become typed edges
// with an explicit cardinality (single reference, ordered list or
// unordered set). A [Session] is then the unit of work over a backing
// [store.Store]:
//
//	sess, err := grafo.Open(reg, memstore.New())
//	if err != nil {
//		return err
//	}
//	series, _ := sess.NewEntity("Series")
//	_ = series.SetField("title", "Monty Python's Flying Circus")
//	ep, _ := sess.NewEntity("Episode")
//	episodes, _ := series.List("episodes")
//	_ = episodes.Append(ctx, ep)
//	if err := sess.Commit(ctx); err != nil {
//		return err
//	}
//
// Within one session a store handle resolves to at most one live
// entity, so object identity and graph identity coincide. Mutations
// only touch session state; Commit pushes them to the store in one
// pass (inside a transaction when the store supports one) and leaves
// unapplied work tracked on failure, so a failed commit is retryable.
//
// Bidirectional relationships stay consistent without a store
// round-trip: linking one side is immediately visible on a loaded
// inverse side, and a single-reference inverse is unlinked from its
// previous holder automatically.
//
// Sessions, entities and collections are confined to one goroutine.
// The stores themselves are safe for concurrent use, so sessions on
// separate goroutines may share one.
package grafo
