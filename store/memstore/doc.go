// Package memstore implements the in-memory graph store, the default
// backend for standalone mode.
//
// Nodes and relationships are held in maps keyed by monotonically
// assigned handles ("n1", "n2", ... / "r1", "r2", ...). Node and
// relationship lookup is O(1); enumerating the relationships of a node
// is O(degree) via a per-node incidence set.
//
// A single RWMutex serializes mutating operations against each other
// and against fetches, so concurrent sessions never interleave a
// half-applied creation; read-only fetches proceed concurrently with
// each other. Every operation is synchronous and bounded — the only
// failure the store produces on its own is a referential-integrity
// refusal when deleting a node that relationships still reference.
//
// Snapshot and Restore serialize the whole store with msgpack, giving
// standalone deployments a durable form without an external backend.
package memstore
