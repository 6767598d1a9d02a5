package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/grafo/store"
)

// Supported dialects.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// execQuerier wraps the standard Exec and Query methods shared by
// *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a store.Store implementation over a SQL database. It keeps
// the graph in two fixed tables, nodes and rels, with properties
// serialized as JSON text. Handles are UUIDs assigned on creation.
type Store struct {
	db      *sql.DB
	conn    execQuerier
	dialect string
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds every store operation with the given deadline.
// An exceeded deadline surfaces as store.ErrTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Open opens a database connection for the given dialect and DSN and
// returns a Store over it.
func Open(dialect, dsn string, opts ...Option) (*Store, error) {
	if err := validDialect(dialect); err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	return OpenDB(dialect, db, opts...), nil
}

// OpenDB wraps an existing *sql.DB with a Store.
func OpenDB(dialect string, db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, conn: db, dialect: dialect}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validDialect(dialect string) error {
	switch dialect {
	case SQLite, MySQL, Postgres:
		return nil
	default:
		return fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
}

// Dialect returns the dialect the store was opened with.
func (s *Store) Dialect() string { return s.dialect }

// DB returns the underlying *sql.DB instance.
func (s *Store) DB() *sql.DB { return s.db }

var (
	_ store.Store      = (*Store)(nil)
	_ store.Scanner    = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

// Init creates the nodes and rels tables if they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	for _, q := range ddl(s.dialect) {
		if _, err := s.conn.ExecContext(ctx, q); err != nil {
			return s.wrapErr("init", err)
		}
	}
	return nil
}

// ddl returns the schema statements per dialect. The rels endpoints
// reference nodes so the database itself refuses dangling
// relationships; the referential count check in DeleteNode runs first
// only to report a richer error.
func ddl(dialect string) []string {
	if dialect == MySQL {
		// MySQL has no CREATE INDEX IF NOT EXISTS; indexes go inline.
		return []string{
			`CREATE TABLE IF NOT EXISTS nodes (
				handle VARCHAR(36) PRIMARY KEY,
				label  VARCHAR(255) NOT NULL,
				props  TEXT NOT NULL,
				INDEX nodes_label (label)
			)`,
			`CREATE TABLE IF NOT EXISTS rels (
				handle      VARCHAR(36) PRIMARY KEY,
				rel_type    VARCHAR(255) NOT NULL,
				from_handle VARCHAR(36) NOT NULL,
				to_handle   VARCHAR(36) NOT NULL,
				ord         INTEGER NOT NULL DEFAULT 0,
				props       TEXT NOT NULL,
				INDEX rels_from (from_handle),
				INDEX rels_to (to_handle),
				FOREIGN KEY (from_handle) REFERENCES nodes (handle),
				FOREIGN KEY (to_handle) REFERENCES nodes (handle)
			)`,
		}
	}
	var stmts []string
	if dialect == SQLite {
		// Enforcement is per connection and off by default. Pooled
		// setups should also pass _pragma=foreign_keys(1) in the DSN.
		stmts = append(stmts, `PRAGMA foreign_keys = ON`)
	}
	return append(stmts,
		`CREATE TABLE IF NOT EXISTS nodes (
			handle VARCHAR(36) PRIMARY KEY,
			label  VARCHAR(255) NOT NULL,
			props  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS nodes_label ON nodes (label)`,
		`CREATE TABLE IF NOT EXISTS rels (
			handle      VARCHAR(36) PRIMARY KEY,
			rel_type    VARCHAR(255) NOT NULL,
			from_handle VARCHAR(36) NOT NULL,
			to_handle   VARCHAR(36) NOT NULL,
			ord         INTEGER NOT NULL DEFAULT 0,
			props       TEXT NOT NULL,
			FOREIGN KEY (from_handle) REFERENCES nodes (handle),
			FOREIGN KEY (to_handle) REFERENCES nodes (handle)
		)`,
		`CREATE INDEX IF NOT EXISTS rels_from ON rels (from_handle)`,
		`CREATE INDEX IF NOT EXISTS rels_to ON rels (to_handle)`,
	)
}

// sqlf rewrites ? placeholders to $n for Postgres.
func (s *Store) sqlf(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

func encodeProps(props store.Props) (string, error) {
	if props == nil {
		props = store.Props{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode props: %w", err)
	}
	return string(b), nil
}

func decodeProps(raw string) (store.Props, error) {
	props := store.Props{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("sqlstore: decode props: %w", err)
	}
	return props, nil
}

// CreateNode implements store.Store.
func (s *Store) CreateNode(ctx context.Context, label string, props store.Props) (store.Handle, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	raw, err := encodeProps(props)
	if err != nil {
		return "", err
	}
	h := store.Handle(uuid.NewString())
	_, err = s.conn.ExecContext(ctx, s.sqlf(`INSERT INTO nodes (handle, label, props) VALUES (?, ?, ?)`), string(h), label, raw)
	if err != nil {
		return "", s.wrapErr("create node", err)
	}
	return h, nil
}

// UpdateNode implements store.Store. Properties are merged read-modify-write;
// a nil value removes the key.
func (s *Store) UpdateNode(ctx context.Context, h store.Handle, props store.Props) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	var raw string
	err := s.conn.QueryRowContext(ctx, s.sqlf(`SELECT props FROM nodes WHERE handle = ?`), string(h)).Scan(&raw)
	if err == sql.ErrNoRows {
		return store.NewNotFoundError("node", h)
	}
	if err != nil {
		return s.wrapErr("update node", err)
	}
	current, err := decodeProps(raw)
	if err != nil {
		return err
	}
	for k, v := range props {
		if v == nil {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	raw, err = encodeProps(current)
	if err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, s.sqlf(`UPDATE nodes SET props = ? WHERE handle = ?`), raw, string(h)); err != nil {
		return s.wrapErr("update node", err)
	}
	return nil
}

// DeleteNode implements store.Store.
func (s *Store) DeleteNode(ctx context.Context, h store.Handle) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	var refs int
	err := s.conn.QueryRowContext(ctx, s.sqlf(`SELECT COUNT(*) FROM rels WHERE from_handle = ? OR to_handle = ?`), string(h), string(h)).Scan(&refs)
	if err != nil {
		return s.wrapErr("delete node", err)
	}
	if refs > 0 {
		return store.NewReferentialError(h, refs)
	}
	res, err := s.conn.ExecContext(ctx, s.sqlf(`DELETE FROM nodes WHERE handle = ?`), string(h))
	if err != nil {
		return s.wrapErr("delete node", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.NewNotFoundError("node", h)
	}
	return nil
}

// FetchNode implements store.Store.
func (s *Store) FetchNode(ctx context.Context, h store.Handle) (string, store.Props, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	var (
		label string
		raw   string
	)
	err := s.conn.QueryRowContext(ctx, s.sqlf(`SELECT label, props FROM nodes WHERE handle = ?`), string(h)).Scan(&label, &raw)
	if err == sql.ErrNoRows {
		return "", nil, store.NewNotFoundError("node", h)
	}
	if err != nil {
		return "", nil, s.wrapErr("fetch node", err)
	}
	props, err := decodeProps(raw)
	if err != nil {
		return "", nil, err
	}
	return label, props, nil
}

// CreateRel implements store.Store.
func (s *Store) CreateRel(ctx context.Context, typ string, from, to store.Handle, ord int, props store.Props) (store.Handle, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	raw, err := encodeProps(props)
	if err != nil {
		return "", err
	}
	h := store.Handle(uuid.NewString())
	_, err = s.conn.ExecContext(ctx,
		s.sqlf(`INSERT INTO rels (handle, rel_type, from_handle, to_handle, ord, props) VALUES (?, ?, ?, ?, ?, ?)`),
		string(h), typ, string(from), string(to), ord, raw)
	if err != nil {
		return "", s.wrapErr("create relationship", err)
	}
	return h, nil
}

// DeleteRel implements store.Store.
func (s *Store) DeleteRel(ctx context.Context, h store.Handle) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	res, err := s.conn.ExecContext(ctx, s.sqlf(`DELETE FROM rels WHERE handle = ?`), string(h))
	if err != nil {
		return s.wrapErr("delete relationship", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.NewNotFoundError("relationship", h)
	}
	return nil
}

// FetchRels implements store.Store.
func (s *Store) FetchRels(ctx context.Context, h store.Handle, typ string, dir store.Direction) ([]store.Rel, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	var (
		cond string
		args []any
	)
	switch dir {
	case store.Outgoing:
		cond = `from_handle = ?`
		args = append(args, string(h))
	case store.Incoming:
		cond = `to_handle = ?`
		args = append(args, string(h))
	default:
		cond = `(from_handle = ? OR to_handle = ?)`
		args = append(args, string(h), string(h))
	}
	if typ != "" {
		cond += ` AND rel_type = ?`
		args = append(args, typ)
	}
	query := s.sqlf(`SELECT handle, rel_type, from_handle, to_handle, ord, props FROM rels WHERE ` + cond + ` ORDER BY ord, handle`)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrapErr("fetch relationships", err)
	}
	defer rows.Close()
	var rels []store.Rel
	for rows.Next() {
		var (
			r    store.Rel
			rh   string
			from string
			to   string
			raw  string
		)
		if err := rows.Scan(&rh, &r.Type, &from, &to, &r.Ord, &raw); err != nil {
			return nil, s.wrapErr("fetch relationships", err)
		}
		r.Handle, r.From, r.To = store.Handle(rh), store.Handle(from), store.Handle(to)
		if r.Props, err = decodeProps(raw); err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapErr("fetch relationships", err)
	}
	return rels, nil
}

// NodesByLabel implements store.Scanner.
func (s *Store) NodesByLabel(ctx context.Context, label string) ([]store.Handle, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	rows, err := s.conn.QueryContext(ctx, s.sqlf(`SELECT handle FROM nodes WHERE label = ? ORDER BY handle`), label)
	if err != nil {
		return nil, s.wrapErr("scan label", err)
	}
	defer rows.Close()
	var handles []store.Handle
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, s.wrapErr("scan label", err)
		}
		handles = append(handles, store.Handle(h))
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapErr("scan label", err)
	}
	return handles, nil
}

// Tx implements store.Transactor. The returned store runs every
// operation inside the transaction; committing a session against it
// becomes all-or-nothing on the database side.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.wrapErr("begin transaction", err)
	}
	return &Tx{
		Store: Store{db: s.db, conn: tx, dialect: s.dialect, timeout: s.timeout},
		tx:    tx,
	}, nil
}

// Tx is a Store scoped to one database transaction.
type Tx struct {
	Store
	tx *sql.Tx
}

var _ store.Tx = (*Tx)(nil)

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls the transaction back.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// Close implements store.Store for the transaction-scoped store; the
// underlying connection stays open.
func (t *Tx) Close() error { return nil }

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
