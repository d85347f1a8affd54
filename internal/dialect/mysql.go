package dialect

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// erDupEntry is the MySQL/MariaDB duplicate-key error number
const erDupEntry = 1062

// MySQL covers MySQL and MariaDB
type MySQL struct{}

// Name returns "mysql"
func (MySQL) Name() string { return "mysql" }

// QuoteIdent wraps name in backticks
func (MySQL) QuoteIdent(name string) string { return quote(name, "`") }

// Rebind is a no-op: MySQL uses ? placeholders
func (MySQL) Rebind(query string) string { return query }

func (MySQL) DatabaseNameQuery() string { return "SELECT DATABASE()" }

func (MySQL) TablesQuery() string {
	return "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ?"
}

func (MySQL) ColumnsQuery() string {
	return "SELECT COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?"
}

func (MySQL) ForeignKeysQuery() string {
	return "SELECT CONSTRAINT_NAME FROM information_schema.TABLE_CONSTRAINTS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND CONSTRAINT_TYPE = ?"
}

func (d MySQL) LedgerDDL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + d.QuoteIdent(table) + ` (
  id INT AUTO_INCREMENT PRIMARY KEY,
  resource VARCHAR(255) NOT NULL,
  version VARCHAR(50) NOT NULL,
  applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  UNIQUE KEY idx_resource_version (resource, version)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
}

func (MySQL) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}

func (MySQL) Features() Features {
	return Features{
		Unsigned:         true,
		AutoIncrement:    "AUTO_INCREMENT",
		InlineIndexes:    true,
		AddConstraint:    true,
		TableOptions:     true,
		BackslashEscapes: true,
	}
}
