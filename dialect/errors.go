package dialect

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	etl "github.com/GARAGE-POS/data-migration-etl-scripts"
	mssql "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// The driver imports above also register the database/sql drivers used by Open.

// classify wraps err with the matching etl sentinel while keeping the driver
// error reachable through errors.As.
func classify(err error, integrity, transient bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, etl.ErrDataIntegrity), errors.Is(err, etl.ErrTransientIO):
		return err
	case integrity:
		return fmt.Errorf("%w: %w", etl.ErrDataIntegrity, err)
	case transient || isConnectionError(err):
		return fmt.Errorf("%w: %w", etl.ErrTransientIO, err)
	default:
		return err
	}
}

func isConnectionError(err error) bool {
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.Is(err, mysql.ErrInvalidConn):
		return true
	case errors.As(err, &netErr):
		return true
	}
	return false
}

// SQL Server error numbers.
var (
	mssqlIntegrity = map[int32]bool{
		515:  true, // NULL into NOT NULL column
		547:  true, // FK/CHECK constraint
		2601: true, // duplicate key in unique index
		2627: true, // PK/unique constraint
		2628: true, // string truncation
		8152: true, // string truncation (legacy message)
	}
	mssqlTransient = map[int32]bool{
		233:   true,
		1205:  true, // deadlock victim
		10053: true,
		10054: true,
		10060: true,
		40197: true,
		40501: true,
		40613: true,
	}
)

func (SQLServer) Classify(err error) error {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return classify(err, mssqlIntegrity[msErr.Number], mssqlTransient[msErr.Number])
	}
	return classify(err, false, false)
}

func (Postgres) Classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		integrity := class == "23" || class == "22"
		transient := class == "08" || class == "53" || class == "57" || class == "40"
		return classify(err, integrity, transient)
	}
	return classify(err, false, false)
}

func (MySQL) Classify(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1048, 1062, 1216, 1217, 1406, 1451, 1452:
			return classify(err, true, false)
		case 1205, 1213, 2006, 2013:
			return classify(err, false, true)
		}
	}
	return classify(err, false, false)
}

func (SQLite) Classify(err error) error {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrTooBig:
			return classify(err, true, false)
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return classify(err, false, true)
		}
	}
	return classify(err, false, false)
}
