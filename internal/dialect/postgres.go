package dialect

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE for duplicate keys
const uniqueViolation = "23505"

// Postgres reconciles the active schema (current_schema()) of a PostgreSQL database
type Postgres struct{}

// Name returns "postgres"
func (Postgres) Name() string { return "postgres" }

// QuoteIdent wraps name in double quotes
func (Postgres) QuoteIdent(name string) string { return quote(name, `"`) }

// Rebind rewrites ? placeholders as $n
func (Postgres) Rebind(query string) string { return rebindDollar(query) }

func (Postgres) DatabaseNameQuery() string { return "SELECT current_schema()" }

func (Postgres) TablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = ? AND table_type = 'BASE TABLE'"
}

func (Postgres) ColumnsQuery() string {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = ? AND table_name = ?"
}

func (Postgres) ForeignKeysQuery() string {
	return "SELECT constraint_name FROM information_schema.table_constraints WHERE table_schema = ? AND table_name = ? AND constraint_type = ?"
}

func (d Postgres) LedgerDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  "id" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
  "resource" VARCHAR(255) NOT NULL,
  "version" VARCHAR(50) NOT NULL,
  "applied_at" TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  CONSTRAINT %s UNIQUE ("resource", "version")
)`, d.QuoteIdent(table), d.QuoteIdent(table+"_resource_version"))
}

func (Postgres) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (Postgres) Features() Features {
	return Features{
		AutoIncrement: "GENERATED BY DEFAULT AS IDENTITY",
		AddConstraint: true,
	}
}
