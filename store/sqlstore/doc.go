// Package sqlstore implements the graph store contract over a SQL
// database, filling the external-backend role in the same way the
// in-memory store fills the standalone one.
//
// The whole graph lives in two fixed tables:
//
//	nodes (handle, label, props)
//	rels  (handle, rel_type, from_handle, to_handle, ord, props)
//
// Properties are serialized as JSON text; handles are UUIDs assigned
// on creation; ordered collections persist their position in the ord
// column. Supported dialects are sqlite, mysql and postgres — open a
// store with the matching driver imported:
//
//	import _ "modernc.org/sqlite"
//
//	st, err := sqlstore.Open(sqlstore.SQLite, "file:app.db")
//	if err != nil { ... }
//	if err := st.Init(ctx); err != nil { ... }
//
// The store classifies driver failures into the taxonomy the sync
// engine expects: exceeded deadlines surface as store.ErrTimeout,
// connection failures as store.ErrUnavailable, and foreign-key
// violations as *store.ReferentialError, so a failed commit always
// leaves the session retryable.
//
// sqlstore implements store.Transactor: a session committing against
// it runs inside one database transaction and the database rolls back
// its own side on failure.
package sqlstore
