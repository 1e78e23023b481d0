// Package dialect provides the database abstraction consumed by the
// takarik-data access layer.
//
// The package defines the interfaces used for database-specific operations,
// allowing the layer to run against PostgreSQL, MySQL, and SQLite.
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The Driver interface is the execution surface of the layer:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args []any) (Result, error)
//	    Query(ctx context.Context, query string, args []any) (Rows, error)
//	    Scalar(ctx context.Context, query string, args []any) (any, error)
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// The Tx interface extends ExecQuerier with Commit and Rollback, and is the
// value handed to code running inside a transaction scope.
//
// # Usage
//
//	import (
//	    "github.com/takarik/takarik-data-sub002/dialect"
//	    "github.com/takarik/takarik-data-sub002/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// The dialect/sql sub-package implements these interfaces on top of the
// standard library's database/sql.
package dialect
