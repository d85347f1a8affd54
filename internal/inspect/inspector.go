// Package inspect discovers which declared tables, columns and foreign keys
// already exist in a live database by reading its metadata catalog.
package inspect

import (
	"context"
	"errors"
	"fmt"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/dialect"
	"github.com/tordrt/schemasync/internal/schema"
)

// ErrSchemaDiscovery is returned when no active database can be resolved
var ErrSchemaDiscovery = errors.New("unable to determine current database name")

// foreignKeyType is the catalog CONSTRAINT_TYPE of foreign keys
const foreignKeyType = "FOREIGN KEY"

// Catalog is the observed state of the declared tables. Names match exactly.
type Catalog struct {
	Database string
	// Tables holds every table of the active database
	Tables map[string]bool
	// Columns holds the columns of each declared table that exists
	Columns map[string]map[string]bool
	// ForeignKeys holds the FK constraint names of each existing declared table that declares FKs
	ForeignKeys map[string]map[string]bool
}

// NewCatalog returns an empty catalog for database
func NewCatalog(database string) *Catalog {
	return &Catalog{
		Database:    database,
		Tables:      make(map[string]bool),
		Columns:     make(map[string]map[string]bool),
		ForeignKeys: make(map[string]map[string]bool),
	}
}

// HasTable reports whether the table exists
func (c *Catalog) HasTable(name string) bool {
	return c.Tables[name]
}

// HasColumn reports whether the column exists on the table
func (c *Catalog) HasColumn(table, column string) bool {
	return c.Columns[table][column]
}

// HasForeignKey reports whether a constraint with that name exists on the table
func (c *Catalog) HasForeignKey(table, constraint string) bool {
	return c.ForeignKeys[table][constraint]
}

// ExistingTables returns the declared tables present in the catalog, in declaration order
func (c *Catalog) ExistingTables(tables []schema.Table) []string {
	var names []string
	for _, t := range tables {
		if c.HasTable(t.Name) {
			names = append(names, t.Name)
		}
	}
	return names
}

// Inspector reads the catalog through a Querier
type Inspector struct {
	q       db.Querier
	dialect dialect.Dialect
}

// NewInspector creates a new catalog inspector
func NewInspector(q db.Querier, d dialect.Dialect) *Inspector {
	return &Inspector{
		q:       q,
		dialect: d,
	}
}

// DatabaseName returns the active database (the active schema on PostgreSQL).
// It fails with ErrSchemaDiscovery when none is selected or the query fails.
func (i *Inspector) DatabaseName(ctx context.Context) (string, error) {
	name, ok, err := db.ScalarString(ctx, i.q, i.dialect.DatabaseNameQuery())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSchemaDiscovery, err)
	}
	if !ok || name == "" {
		return "", ErrSchemaDiscovery
	}
	return name, nil
}

// Inspect reads the table list of database and, for each declared table that
// exists, its columns and (when it declares any) its foreign key names.
// It issues one query for the table list and at most two per existing table.
func (i *Inspector) Inspect(ctx context.Context, database string, tables []schema.Table) (*Catalog, error) {
	catalog := NewCatalog(database)

	tableNames, err := i.getTableNames(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}
	for _, name := range tableNames {
		catalog.Tables[name] = true
	}

	for _, table := range tables {
		if !catalog.HasTable(table.Name) {
			continue
		}

		columns, err := i.getColumns(ctx, database, table.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get columns of %s: %w", table.Name, err)
		}
		catalog.Columns[table.Name] = toSet(columns)

		if len(table.ForeignKeys) == 0 {
			continue
		}

		foreignKeys, err := i.getForeignKeys(ctx, database, table.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get foreign keys of %s: %w", table.Name, err)
		}
		catalog.ForeignKeys[table.Name] = toSet(foreignKeys)
	}

	return catalog, nil
}

// getTableNames returns every table of the database
func (i *Inspector) getTableNames(ctx context.Context, database string) ([]string, error) {
	return i.queryStrings(ctx, i.dialect.TablesQuery(), database)
}

// getColumns returns the column names of a table
func (i *Inspector) getColumns(ctx context.Context, database, table string) ([]string, error) {
	return i.queryStrings(ctx, i.dialect.ColumnsQuery(), database, table)
}

// getForeignKeys returns the foreign key constraint names of a table
func (i *Inspector) getForeignKeys(ctx context.Context, database, table string) ([]string, error) {
	query := i.dialect.ForeignKeysQuery()
	if query == "" {
		return nil, fmt.Errorf("%s catalog does not name foreign keys", i.dialect.Name())
	}
	return i.queryStrings(ctx, query, database, table, foreignKeyType)
}

func (i *Inspector) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := i.q.Query(ctx, i.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return db.Strings(rows)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
