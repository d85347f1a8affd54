// Package dialect describes how each supported database spells catalog
// queries, identifiers, placeholders and the handful of DDL clauses that differ.
package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the per-database knowledge shared by the inspector, the DDL
// generator and the ledger. Queries use ? placeholders; call Rebind before use.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	Rebind(query string) string

	// DatabaseNameQuery returns a scalar query yielding the active database
	// (or schema) name, NULL when none is selected.
	DatabaseNameQuery() string
	// TablesQuery lists table names; args: database.
	TablesQuery() string
	// ColumnsQuery lists column names; args: database, table.
	ColumnsQuery() string
	// ForeignKeysQuery lists foreign key constraint names; args: database, table, "FOREIGN KEY".
	// Empty when the catalog does not name foreign keys.
	ForeignKeysQuery() string

	// LedgerDDL creates the version ledger table if it is missing.
	LedgerDDL(table string) string
	// IsUniqueViolation reports whether err is the driver's duplicate-key error.
	IsUniqueViolation(err error) bool

	Features() Features
}

// Features lists the DDL capabilities that differ between dialects
type Features struct {
	// Unsigned renders the UNSIGNED column flag
	Unsigned bool
	// AutoIncrement is the clause emitted for auto-increment columns; empty omits it
	AutoIncrement string
	// InlineIndexes allows KEY / UNIQUE KEY clauses inside CREATE TABLE
	InlineIndexes bool
	// AddConstraint allows ALTER TABLE ... ADD CONSTRAINT ... FOREIGN KEY
	AddConstraint bool
	// TableOptions appends ENGINE / CHARSET / COLLATE to CREATE TABLE
	TableOptions bool
	// BackslashEscapes means backslash escapes characters inside string literals
	BackslashEscapes bool
}

// ForName returns the dialect registered under name
func ForName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", name)
	}
}

// quote wraps name in q, doubling any embedded q
func quote(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// rebindDollar rewrites ? placeholders as $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
