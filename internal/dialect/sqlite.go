package dialect

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// SQLite reconciles tables and columns of the main database. SQLite cannot add
// constraints to an existing table and does not name foreign keys in its
// catalog, so schemas declaring foreign keys are rejected for this dialect.
type SQLite struct{}

// Name returns "sqlite"
func (SQLite) Name() string { return "sqlite" }

// QuoteIdent wraps name in double quotes
func (SQLite) QuoteIdent(name string) string { return quote(name, `"`) }

// Rebind is a no-op: SQLite accepts ? and ?NNN placeholders
func (SQLite) Rebind(query string) string { return query }

func (SQLite) DatabaseNameQuery() string {
	return "SELECT name FROM pragma_database_list WHERE seq = 0"
}

func (SQLite) TablesQuery() string {
	return "SELECT name FROM pragma_table_list WHERE schema = ? AND type = 'table'"
}

// ColumnsQuery binds ?1 to the database and ?2 to the table, matching the
// argument order of the other dialects.
func (SQLite) ColumnsQuery() string {
	return "SELECT name FROM pragma_table_info(?2, ?1)"
}

func (SQLite) ForeignKeysQuery() string { return "" }

func (d SQLite) LedgerDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "resource" VARCHAR(255) NOT NULL,
  "version" VARCHAR(50) NOT NULL,
  "applied_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  UNIQUE ("resource", "version")
)`, d.QuoteIdent(table))
}

func (SQLite) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (SQLite) Features() Features {
	return Features{}
}
