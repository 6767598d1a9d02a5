package sqlstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/grafo/store"
)

// MySQL foreign-key violation numbers.
const (
	mysqlFKRowIsReferenced  = 1451
	mysqlFKNoReferencedRow  = 1452
	mysqlFKRowIsReferenced2 = 1217
)

// pqForeignKeyViolation is the PostgreSQL class 23 code for
// foreign-key violations.
const pqForeignKeyViolation = "23503"

// wrapErr classifies driver-level failures into the store error
// taxonomy: deadlines become ErrTimeout, connection failures become
// ErrUnavailable, foreign-key violations become ReferentialError.
// Anything else is wrapped with the operation name.
func (s *Store) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("sqlstore: %s: %w", op, store.ErrTimeout)
	case errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("sqlstore: %s: %w", op, store.ErrUnavailable)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("sqlstore: %s: %w", op, store.ErrTimeout)
		}
		return fmt.Errorf("sqlstore: %s: %w", op, store.ErrUnavailable)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlFKRowIsReferenced, mysqlFKNoReferencedRow, mysqlFKRowIsReferenced2:
			return store.NewReferentialError("", -1)
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) == pqForeignKeyViolation {
			return store.NewReferentialError("", -1)
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return store.NewReferentialError("", -1)
		}
	}
	return fmt.Errorf("sqlstore: %s: %w", op, err)
}
