package capsrv

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQL opens a database/sql connection from a "<dialect>://..."
// DSN, the same scheme-based dialect selection the conversation store
// uses, so every SQL-backed component in this tree picks its backend
// the same way.
func OpenSQL(dsn string) (db *sql.DB, dialect string, err error) {
	idx := strings.Index(dsn, "://")
	if idx < 0 {
		return nil, "", fmt.Errorf("capsrv: dsn %q missing a dialect scheme", dsn)
	}
	dialect = dsn[:idx]
	rest := dsn[idx+3:]

	driverName := dialect
	driverDSN := rest
	switch dialect {
	case "sqlite":
		driverName = "sqlite3"
	case "postgres":
		driverDSN = dsn
	case "mysql":
	default:
		return nil, "", fmt.Errorf("capsrv: unsupported dialect %q", dialect)
	}

	db, err = sql.Open(driverName, driverDSN)
	if err != nil {
		return nil, "", fmt.Errorf("capsrv: open %s: %w", dialect, err)
	}
	return db, dialect, nil
}

// BindPlaceholder returns the Nth bind placeholder for dialect:
// Postgres uses $N, SQLite and MySQL use ?.
func BindPlaceholder(dialect string, n int) string {
	if dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
