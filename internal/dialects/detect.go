package dialects

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
)

// ErrUnknownDriver is returned by Detect when a driver type has no known dialect.
var ErrUnknownDriver = errors.New("dialects: could not detect dialect from driver")

// Detect maps a database/sql driver to its dialect.
func Detect(drv driver.Driver) (*Backend, error) {
	switch drv.(type) {
	case *pq.Driver, *stdlib.Driver:
		return Postgres, nil
	case *mysql.MySQLDriver:
		return MySQL, nil
	case *sqlite.Driver, *sqlite3.SQLiteDriver:
		return SQLite, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownDriver, drv)
}
