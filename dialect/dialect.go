package dialect

import (
	"context"
)

// Dialect names for the supported database engines.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Result reports the outcome of a statement execution.
type Result struct {
	// AffectedRows is the number of rows changed by the statement.
	AffectedRows int64

	// LastInsertID is the key generated for an INSERT, when the engine
	// reports one. Zero when the statement generated no key.
	LastInsertID int64
}

// Rows is a stream of result rows. It wraps the standard sql.Rows methods
// used for scanning database rows.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// ExecQuerier is the contract consumed by the query builder and the record
// lifecycle engine. Statements use `?` positional placeholders in strict
// left-to-right correspondence with args.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args []any) (Result, error)

	// Query executes a statement and returns the matching rows.
	Query(ctx context.Context, query string, args []any) (Rows, error)

	// Scalar executes a statement and returns the first column of the
	// first row. It returns nil when the result set is empty.
	Scalar(ctx context.Context, query string, args []any) (any, error)
}

// Driver is the minimal interface a database connection must implement.
type Driver interface {
	ExecQuerier

	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)

	// Close closes the underlying connection.
	Close() error

	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a transaction-scoped ExecQuerier.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
