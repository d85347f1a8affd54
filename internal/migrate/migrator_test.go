package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/db/dbtest"
	"github.com/tordrt/schemasync/internal/ddl"
	"github.com/tordrt/schemasync/internal/dialect"
	"github.com/tordrt/schemasync/internal/inspect"
	"github.com/tordrt/schemasync/internal/ledger"
	"github.com/tordrt/schemasync/internal/logging"
	"github.com/tordrt/schemasync/internal/schema"
)

const versionQuery = "SELECT version FROM `schema_migrations` WHERE resource = ? ORDER BY id DESC LIMIT 1"

func usersTable() schema.Table {
	return schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "INT", Unsigned: true, AutoIncrement: true, PrimaryKey: true},
			{Name: "license", Type: "VARCHAR(60)", Unique: true, NotNull: true},
			{Name: "discord_id", Type: "VARCHAR(30)", Unique: true, NotNull: true},
		},
	}
}

func vehiclesTable() schema.Table {
	return schema.Table{
		Name: "vehicles",
		Columns: []schema.Column{
			{Name: "id", Type: "INT", AutoIncrement: true, PrimaryKey: true},
			{Name: "owner_id", Type: "INT", Unsigned: true},
			{Name: "plate", Type: "VARCHAR(8)", NotNull: true},
		},
		ForeignKeys: []schema.ForeignKey{
			{Column: "owner_id", References: schema.Reference{Table: "users", Column: "id"}, OnDelete: schema.ActionCascade},
		},
	}
}

func newMigrator(q db.Querier, d dialect.Dialect, version string, detectMissing bool, tables ...schema.Table) *Migrator {
	return NewMigrator(q, d, Config{
		Enabled:       true,
		DetectMissing: detectMissing,
		Resource:      "gaia",
		Schema:        &schema.Definition{Version: version, Tables: tables},
	}, logging.Discard())
}

func TestRunCreatesTableOnEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")

	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, OutcomeMigrated, result.Outcome)
	assert.Equal(t, "gaia", result.Database)
	assert.Empty(t, result.PreviousVersion)
	assert.NotEmpty(t, result.PassID)

	statements := fake.DDL()
	require.Len(t, statements, 1)
	assert.True(t, strings.HasPrefix(statements[0], "CREATE TABLE IF NOT EXISTS `users` ("))
	assert.Contains(t, statements[0], "`id` INT UNSIGNED AUTO_INCREMENT")
	assert.Contains(t, statements[0], "PRIMARY KEY (`id`)")

	assert.Equal(t, []string{"id", "license", "discord_id"}, fake.Columns("users"))

	rows := fake.Ledger()
	require.Len(t, rows, 1)
	assert.Equal(t, "gaia", rows[0].Resource)
	assert.Equal(t, "0.0.1", rows[0].Version)
}

func TestRunRepairsMissingColumnWithoutLedgerRow(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id", "license")
	fake.SeedVersion("gaia", "0.0.1")

	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, OutcomeRepaired, result.Outcome)
	assert.Equal(t, []string{
		"ALTER TABLE `users` ADD COLUMN `discord_id` VARCHAR(30) NOT NULL UNIQUE",
	}, fake.DDL())
	assert.Len(t, fake.Ledger(), 1)
	assert.Equal(t, []string{"users"}, result.ExistingTables)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	m := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable(), vehiclesTable())

	_, err := m.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, fake.DDL())

	fake.ResetLog()
	result, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, result.Outcome)
	assert.Empty(t, fake.DDL())
	assert.Empty(t, result.Applied)

	// a new version over an up-to-date catalog records the version only
	fake.ResetLog()
	result, err = newMigrator(fake, dialect.MySQL{}, "0.0.2", true, usersTable(), vehiclesTable()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMigrated, result.Outcome)
	assert.Equal(t, "0.0.1", result.PreviousVersion)
	assert.Empty(t, fake.DDL())
	assert.Len(t, fake.Ledger(), 2)
}

func TestRunOrdersTablesBeforeForeignKeys(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")

	// vehicles is declared first and references users
	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, vehiclesTable(), usersTable()).Run(ctx)
	require.NoError(t, err)

	statements := fake.DDL()
	require.Len(t, statements, 3)
	assert.True(t, strings.HasPrefix(statements[0], "CREATE TABLE IF NOT EXISTS `vehicles`"))
	assert.True(t, strings.HasPrefix(statements[1], "CREATE TABLE IF NOT EXISTS `users`"))
	assert.Equal(t,
		"ALTER TABLE `vehicles` ADD CONSTRAINT `fk_vehicles_owner_id` FOREIGN KEY (`owner_id`) REFERENCES `users`(`id`) ON DELETE CASCADE",
		statements[2])

	assert.Equal(t, []string{"fk_vehicles_owner_id"}, fake.ForeignKeys("vehicles"))
	require.Len(t, result.Applied, 3)
	assert.Equal(t, ddl.KindAddForeignKey, result.Applied[2].Kind)
}

func TestRunAddsColumnsBeforeForeignKeys(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id", "license", "discord_id")
	fake.AddTable("vehicles", "id", "plate")

	_, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable(), vehiclesTable()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ALTER TABLE `vehicles` ADD COLUMN `owner_id` INT UNSIGNED",
		"ALTER TABLE `vehicles` ADD CONSTRAINT `fk_vehicles_owner_id` FOREIGN KEY (`owner_id`) REFERENCES `users`(`id`) ON DELETE CASCADE",
	}, fake.DDL())
}

func TestRunVersionGating(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id")
	fake.SeedVersion("gaia", "0.0.1")

	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", false, usersTable()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpToDate, result.Outcome)
	assert.Equal(t, []string{"SELECT DATABASE()", versionQuery}, fake.Queries())
	assert.Empty(t, fake.DDL())
	assert.Len(t, fake.Ledger(), 1)
}

func TestRunFailureMidPassResumes(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.FailOn(func(stmt string) error {
		if strings.Contains(stmt, "ADD CONSTRAINT") {
			return &mysql.MySQLError{Number: 1215, Message: "Cannot add foreign key constraint"}
		}
		return nil
	})

	m := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable(), vehiclesTable())
	result, err := m.Run(ctx)
	require.Error(t, err)

	var execErr *DDLExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ddl.KindAddForeignKey, execErr.Statement.Kind)
	assert.Equal(t, "fk_vehicles_owner_id", execErr.Statement.Element)

	var myErr *mysql.MySQLError
	assert.ErrorAs(t, err, &myErr)

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Len(t, result.Applied, 2)
	assert.Empty(t, fake.Ledger())
	assert.True(t, fake.HasTable("users"))
	assert.True(t, fake.HasTable("vehicles"))

	fake.FailOn(nil)
	fake.ResetLog()

	result, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMigrated, result.Outcome)
	assert.Equal(t, []string{
		"ALTER TABLE `vehicles` ADD CONSTRAINT `fk_vehicles_owner_id` FOREIGN KEY (`owner_id`) REFERENCES `users`(`id`) ON DELETE CASCADE",
	}, fake.DDL())
	assert.Len(t, fake.Ledger(), 1)
}

func TestRunRepairFailureKeepsVersion(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id")
	fake.SeedVersion("gaia", "0.0.1")
	fake.FailOn(func(stmt string) error {
		if strings.Contains(stmt, "`discord_id`") {
			return &mysql.MySQLError{Number: 1060, Message: "Duplicate column name 'discord_id'"}
		}
		return nil
	})

	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable()).Run(ctx)

	var execErr *DDLExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, ddl.KindAddColumn, execErr.Statement.Kind)
	assert.Len(t, result.Applied, 1)
	assert.Equal(t, []string{"id", "license"}, fake.Columns("users"))
	assert.Len(t, fake.Ledger(), 1)
}

func TestRunDiscoveryFailure(t *testing.T) {
	fake := dbtest.NewCatalog("")

	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable()).Run(context.Background())
	assert.ErrorIs(t, err, inspect.ErrSchemaDiscovery)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, []string{"SELECT DATABASE()"}, fake.Queries())
	assert.Empty(t, fake.Statements())
}

func TestRunDuplicateVersion(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id", "license", "discord_id")
	fake.SeedVersion("gaia", "0.0.1")
	fake.SeedVersion("gaia", "0.0.2")

	// rolling the declared version back re-records 0.0.1
	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable()).Run(ctx)
	assert.ErrorIs(t, err, ledger.ErrDuplicateVersion)
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, "0.0.2", result.PreviousVersion)
	assert.Len(t, fake.Ledger(), 2)
}

func TestRunDisabled(t *testing.T) {
	fake := dbtest.NewCatalog("gaia")
	m := NewMigrator(fake, dialect.MySQL{}, Config{
		Resource: "gaia",
		Schema:   &schema.Definition{Version: "0.0.1", Tables: []schema.Table{usersTable()}},
	}, logging.Discard())

	result, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDisabled, result.Outcome)
	assert.Empty(t, fake.Queries())
	assert.Empty(t, fake.Statements())
}

func TestRunEmptySchema(t *testing.T) {
	fake := dbtest.NewCatalog("gaia")

	result, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", true).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmptySchema, result.Outcome)
	assert.Empty(t, fake.Queries())
	assert.Empty(t, fake.Statements())
}

func TestRunUnsupportedForeignKeys(t *testing.T) {
	fake := dbtest.NewCatalog("gaia")

	_, err := newMigrator(fake, dialect.SQLite{}, "0.0.1", true, usersTable(), vehiclesTable()).Run(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Empty(t, fake.Queries())
	assert.Empty(t, fake.Statements())
}

func TestRunCustomLedgerTable(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia").WithLedgerTable("versions")
	m := NewMigrator(fake, dialect.MySQL{}, Config{
		Enabled:     true,
		Resource:    "gaia",
		Schema:      &schema.Definition{Version: "1", Tables: []schema.Table{usersTable()}},
		LedgerTable: "versions",
		DDL:         ddl.Options{Engine: "Aria"},
	}, nil)

	_, err := m.Run(ctx)
	require.NoError(t, err)
	require.Len(t, fake.DDL(), 1)
	assert.Contains(t, fake.DDL()[0], "ENGINE=Aria DEFAULT CHARSET=utf8mb4")
	assert.Len(t, fake.Ledger(), 1)
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id", "license")

	plan, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", false, usersTable(), vehiclesTable()).Plan(ctx)
	require.NoError(t, err)

	assert.True(t, plan.Record)
	assert.Equal(t, "gaia", plan.Database)
	assert.Equal(t, []string{"users"}, plan.ExistingTables)
	require.Len(t, plan.Statements, 3)
	assert.Equal(t, ddl.KindCreateTable, plan.Statements[0].Kind)
	assert.Equal(t, ddl.KindAddColumn, plan.Statements[1].Kind)
	assert.Equal(t, ddl.KindAddForeignKey, plan.Statements[2].Kind)
	assert.Equal(t, 3, plan.Missing.Count())

	// a dry run never writes, not even the ledger table
	assert.Empty(t, fake.Statements())
}

func TestPlanAppliedVersion(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id", "license")
	fake.SeedVersion("gaia", "0.0.1")

	plan, err := newMigrator(fake, dialect.MySQL{}, "0.0.1", false, usersTable()).Plan(ctx)
	require.NoError(t, err)
	assert.False(t, plan.Record)
	assert.Empty(t, plan.Statements)

	plan, err = newMigrator(fake, dialect.MySQL{}, "0.0.1", true, usersTable()).Plan(ctx)
	require.NoError(t, err)
	assert.False(t, plan.Record)
	require.Len(t, plan.Statements, 1)
	assert.Equal(t, "discord_id", plan.Statements[0].Element)
	assert.Empty(t, fake.Statements())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "migrated", OutcomeMigrated.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}

func TestDDLExecutionErrorMessage(t *testing.T) {
	err := &DDLExecutionError{
		Statement: ddl.Statement{Kind: ddl.KindAddColumn, Table: "users", Element: "discord_id"},
		Err:       errors.New("boom"),
	}
	assert.Equal(t, "failed to add column discord_id on users: boom", err.Error())
}
