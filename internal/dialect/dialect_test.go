package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"mysql", "mysql", false},
		{"MariaDB", "mysql", false},
		{"postgres", "postgres", false},
		{"postgresql", "postgres", false},
		{"sqlite3", "sqlite", false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ForName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`users`", MySQL{}.QuoteIdent("users"))
	assert.Equal(t, "`we``ird`", MySQL{}.QuoteIdent("we`ird"))
	assert.Equal(t, `"users"`, Postgres{}.QuoteIdent("users"))
	assert.Equal(t, `"we""ird"`, SQLite{}.QuoteIdent(`we"ird`))
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	assert.Equal(t, q, MySQL{}.Rebind(q))
	assert.Equal(t, q, SQLite{}.Rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", Postgres{}.Rebind(q))
}

func TestIsUniqueViolation(t *testing.T) {
	myDup := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	myOther := &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}
	pgDup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	liteDup := fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	assert.True(t, MySQL{}.IsUniqueViolation(myDup))
	assert.False(t, MySQL{}.IsUniqueViolation(myOther))
	assert.False(t, MySQL{}.IsUniqueViolation(pgDup))

	assert.True(t, Postgres{}.IsUniqueViolation(pgDup))
	assert.False(t, Postgres{}.IsUniqueViolation(errors.New("boom")))

	assert.True(t, SQLite{}.IsUniqueViolation(liteDup))
	assert.False(t, SQLite{}.IsUniqueViolation(myDup))
}

func TestLedgerDDL(t *testing.T) {
	assert.Contains(t, MySQL{}.LedgerDDL("schema_migrations"), "CREATE TABLE IF NOT EXISTS `schema_migrations`")
	assert.Contains(t, MySQL{}.LedgerDDL("schema_migrations"), "UNIQUE KEY idx_resource_version (resource, version)")
	assert.Contains(t, Postgres{}.LedgerDDL("ledger"), `CONSTRAINT "ledger_resource_version" UNIQUE`)
	assert.Contains(t, SQLite{}.LedgerDDL("ledger"), "INTEGER PRIMARY KEY AUTOINCREMENT")
}

func TestFeatures(t *testing.T) {
	my := MySQL{}.Features()
	assert.True(t, my.Unsigned)
	assert.True(t, my.InlineIndexes)
	assert.Equal(t, "AUTO_INCREMENT", my.AutoIncrement)
	assert.True(t, my.BackslashEscapes)

	pg := Postgres{}.Features()
	assert.False(t, pg.Unsigned)
	assert.False(t, pg.InlineIndexes)
	assert.True(t, pg.AddConstraint)
	assert.False(t, pg.BackslashEscapes)

	lite := SQLite{}.Features()
	assert.False(t, lite.AddConstraint)
	assert.Empty(t, SQLite{}.ForeignKeysQuery())
}
