package inspect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/db/dbtest"
	"github.com/tordrt/schemasync/internal/dialect"
	"github.com/tordrt/schemasync/internal/schema"
)

func desiredTables() []schema.Table {
	return []schema.Table{
		{
			Name:    "users",
			Columns: []schema.Column{{Name: "id", Type: "INT"}, {Name: "license", Type: "VARCHAR(60)"}},
		},
		{
			Name:    "vehicles",
			Columns: []schema.Column{{Name: "id", Type: "INT"}, {Name: "owner_id", Type: "INT"}},
			ForeignKeys: []schema.ForeignKey{
				{Column: "owner_id", References: schema.Reference{Table: "users", Column: "id"}},
			},
		},
		{
			Name:    "garages",
			Columns: []schema.Column{{Name: "id", Type: "INT"}},
		},
	}
}

func TestDatabaseName(t *testing.T) {
	ctx := context.Background()

	name, err := NewInspector(dbtest.NewCatalog("gaia"), dialect.MySQL{}).DatabaseName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gaia", name)

	_, err = NewInspector(dbtest.NewCatalog(""), dialect.MySQL{}).DatabaseName(ctx)
	assert.ErrorIs(t, err, ErrSchemaDiscovery)
}

type failingQuerier struct{ db.Querier }

func (failingQuerier) Query(context.Context, string, ...any) ([]db.Row, error) {
	return nil, errors.New("connection refused")
}

func (failingQuerier) Scalar(context.Context, string, ...any) (any, error) {
	return nil, errors.New("connection refused")
}

func TestDatabaseNameQueryFailure(t *testing.T) {
	_, err := NewInspector(failingQuerier{}, dialect.MySQL{}).DatabaseName(context.Background())
	assert.ErrorIs(t, err, ErrSchemaDiscovery)
	assert.ErrorContains(t, err, "connection refused")
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("users", "id", "license")
	fake.AddTable("vehicles", "id")
	fake.AddForeignKey("vehicles", "fk_vehicles_something_else")
	fake.AddTable("unrelated", "x")

	catalog, err := NewInspector(fake, dialect.MySQL{}).Inspect(ctx, "gaia", desiredTables())
	require.NoError(t, err)

	assert.Equal(t, "gaia", catalog.Database)
	assert.True(t, catalog.HasTable("users"))
	assert.True(t, catalog.HasTable("unrelated"))
	assert.False(t, catalog.HasTable("garages"))
	assert.True(t, catalog.HasColumn("users", "license"))
	assert.False(t, catalog.HasColumn("vehicles", "owner_id"))
	assert.True(t, catalog.HasForeignKey("vehicles", "fk_vehicles_something_else"))
	assert.Equal(t, []string{"users", "vehicles"}, catalog.ExistingTables(desiredTables()))

	// columns for users and vehicles, foreign keys only for vehicles
	assert.Len(t, fake.Queries(), 4)
	_, inspected := catalog.Columns["unrelated"]
	assert.False(t, inspected)
	_, fkInspected := catalog.ForeignKeys["users"]
	assert.False(t, fkInspected)
}

func TestInspectIsCaseSensitive(t *testing.T) {
	fake := dbtest.NewCatalog("gaia")
	fake.AddTable("Users", "ID")

	catalog, err := NewInspector(fake, dialect.MySQL{}).Inspect(context.Background(), "gaia", desiredTables())
	require.NoError(t, err)
	assert.False(t, catalog.HasTable("users"))
}

func TestInspectSQLite(t *testing.T) {
	ctx := context.Background()
	client, err := db.NewSQLiteClient(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Execute(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, license TEXT)`)
	require.NoError(t, err)

	inspector := NewInspector(client, dialect.SQLite{})
	database, err := inspector.DatabaseName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", database)

	tables := desiredTables()[:1]
	catalog, err := inspector.Inspect(ctx, database, tables)
	require.NoError(t, err)
	assert.True(t, catalog.HasTable("users"))
	assert.True(t, catalog.HasColumn("users", "id"))
	assert.True(t, catalog.HasColumn("users", "license"))
}

func TestInspectSQLiteRejectsForeignKeys(t *testing.T) {
	ctx := context.Background()
	client, err := db.NewSQLiteClient(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Execute(ctx, `CREATE TABLE vehicles (id INTEGER PRIMARY KEY, owner_id INTEGER)`)
	require.NoError(t, err)

	_, err = NewInspector(client, dialect.SQLite{}).Inspect(ctx, "main", desiredTables())
	assert.ErrorContains(t, err, "does not name foreign keys")
}
