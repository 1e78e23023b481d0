package takarik

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// MySQL integrity-constraint error numbers.
const (
	mysqlDuplicateEntry   = 1062
	mysqlFKParentMissing  = 1452
	mysqlFKChildExists    = 1451
	mysqlColumnCannotNull = 1048
)

// translateDBError maps driver-specific integrity violations to
// ConstraintError; everything else passes through unchanged.
func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	var myerr *mysql.MySQLError
	if errors.As(err, &myerr) {
		switch myerr.Number {
		case mysqlDuplicateEntry, mysqlFKParentMissing, mysqlFKChildExists, mysqlColumnCannotNull:
			return NewConstraintError(myerr.Message, err)
		}
		return err
	}
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		// Class 23 covers every integrity-constraint violation.
		if pqerr.Code.Class() == "23" {
			return NewConstraintError(pqerr.Message, err)
		}
		return err
	}
	// SQLite drivers expose no typed error value for constraints.
	if msg := err.Error(); strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "FOREIGN KEY constraint") {
		return NewConstraintError(msg, err)
	}
	return err
}
