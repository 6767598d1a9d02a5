// Package store defines the backing-graph contract the grafo mapping
// layer is written against.
//
// The contract is deliberately small: node CRUD, relationship
// create/delete, and enumeration of the relationships incident to one
// node. It is everything the synchronization engine needs and nothing
// more; query translation and traversal languages live outside this
// module.
//
// # Implementations
//
// Two implementations ship with grafo:
//
//   - [github.com/syssam/grafo/store/memstore]: the in-memory default,
//     used in standalone mode.
//   - [github.com/syssam/grafo/store/sqlstore]: a SQL-backed store for
//     sqlite, MySQL and PostgreSQL.
//
// Any external backend can participate by implementing [Store]. The
// failure contract matters more than the wire protocol: transient
// failures must surface as [ErrUnavailable] or [ErrTimeout] so the
// session can leave its dirty state intact for a later retry, and
// deleting a still-referenced node must surface as a
// [*ReferentialError], never cascade silently.
//
// # Optional capabilities
//
// Stores may additionally implement [Scanner] (label enumeration,
// required by the session find helpers) and [Transactor] (real
// transactions; a commit then runs inside one transaction and the
// store rolls back its own side on failure).
package store
