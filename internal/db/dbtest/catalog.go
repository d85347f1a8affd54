// Package dbtest provides an in-memory MySQL catalog that answers the catalog
// and ledger queries the engine issues and applies the DDL it generates.
package dbtest

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/dialect"
)

// MySQL error numbers reproduced by the fake
const (
	erDupFieldName     = 1060
	erDupEntry         = 1062
	erNoSuchTable      = 1146
	erBadField         = 1054
	erFKDupName        = 1826
	erFKNoIndexParent  = 1822
	defaultLedgerTable = "schema_migrations"
)

var (
	createTableRe = regexp.MustCompile("^CREATE TABLE IF NOT EXISTS `([^`]+)` \\(")
	columnLineRe  = regexp.MustCompile("(?m)^\\s+`([^`]+)`\\s")
	addColumnRe   = regexp.MustCompile("^ALTER TABLE `([^`]+)` ADD COLUMN `([^`]+)`")
	addFKRe       = regexp.MustCompile("^ALTER TABLE `([^`]+)` ADD CONSTRAINT `([^`]+)` FOREIGN KEY \\(`([^`]+)`\\) REFERENCES `([^`]+)`\\(`([^`]+)`\\)")
	insertRe      = regexp.MustCompile("^INSERT INTO `([^`]+)`")
)

// LedgerRow is a row of the fake version ledger
type LedgerRow struct {
	ID        int64
	Resource  string
	Version   string
	AppliedAt time.Time
}

type table struct {
	columns     []string
	foreignKeys []string
}

// Catalog is a goroutine-safe fake MySQL database implementing db.Querier
type Catalog struct {
	mu sync.Mutex

	database    string
	tables      map[string]*table
	order       []string
	ledgerTable string
	ledger      []LedgerRow
	ledgerReady bool

	queries    []string
	statements []string
	failOn     func(stmt string) error
}

var _ db.Querier = (*Catalog)(nil)

// NewCatalog returns an empty database named database. An empty name makes
// SELECT DATABASE() return NULL.
func NewCatalog(database string) *Catalog {
	return &Catalog{
		database:    database,
		tables:      make(map[string]*table),
		ledgerTable: defaultLedgerTable,
	}
}

// WithLedgerTable changes the name of the ledger table the fake recognizes
func (c *Catalog) WithLedgerTable(name string) *Catalog {
	c.ledgerTable = name
	return c
}

// AddTable creates a table with the given columns
func (c *Catalog) AddTable(name string, columns ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addTable(name, columns)
}

// AddForeignKey registers a named foreign key constraint on an existing table
func (c *Catalog) AddForeignKey(tableName, constraint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tableName].foreignKeys = append(c.tables[tableName].foreignKeys, constraint)
}

// DropColumn removes a column, simulating manual drift
func (c *Catalog) DropColumn(tableName, column string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[tableName]
	for i, col := range t.columns {
		if col == column {
			t.columns = append(t.columns[:i], t.columns[i+1:]...)
			return
		}
	}
}

// DropTable removes a table, simulating manual drift
func (c *Catalog) DropTable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// SeedVersion records a ledger row as if a previous pass had applied version
func (c *Catalog) SeedVersion(resource, version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledgerReady = true
	c.ledger = append(c.ledger, LedgerRow{
		ID:        int64(len(c.ledger) + 1),
		Resource:  resource,
		Version:   version,
		AppliedAt: time.Now(),
	})
}

// FailOn makes Execute return the error produced by fn when it is non-nil.
// The failing statement is recorded but has no effect.
func (c *Catalog) FailOn(fn func(stmt string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOn = fn
}

// HasTable reports whether the table exists
func (c *Catalog) HasTable(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tables[name]
	return ok
}

// Columns returns the columns of a table in creation order
func (c *Catalog) Columns(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[name]; ok {
		return append([]string(nil), t.columns...)
	}
	return nil
}

// ForeignKeys returns the foreign key constraint names of a table
func (c *Catalog) ForeignKeys(name string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tables[name]; ok {
		return append([]string(nil), t.foreignKeys...)
	}
	return nil
}

// Ledger returns the ledger rows in insertion order
func (c *Catalog) Ledger() []LedgerRow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LedgerRow(nil), c.ledger...)
}

// Queries returns every Query and Scalar issued so far
func (c *Catalog) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// Statements returns every statement passed to Execute, including failed ones
func (c *Catalog) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

// DDL returns the executed statements that target schema tables, excluding
// the ledger bookkeeping
func (c *Catalog) DDL() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	ledgerPrefix := "`" + c.ledgerTable + "`"
	for _, stmt := range c.statements {
		if strings.Contains(stmt, ledgerPrefix) {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

// ResetLog forgets recorded queries and statements, keeping state
func (c *Catalog) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = nil
	c.statements = nil
}

// Query implements db.Querier
func (c *Catalog) Query(_ context.Context, query string, args ...any) ([]db.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)

	d := dialect.MySQL{}
	switch {
	case query == d.DatabaseNameQuery():
		if c.database == "" {
			return []db.Row{{nil}}, nil
		}
		return []db.Row{{c.database}}, nil

	case query == d.TablesQuery():
		if !c.sameDatabase(args, 1) {
			return nil, nil
		}
		names := append([]string(nil), c.order...)
		if c.ledgerReady {
			names = append(names, c.ledgerTable)
		}
		return stringRows(names), nil

	case query == d.ColumnsQuery():
		if !c.sameDatabase(args, 2) {
			return nil, nil
		}
		if t, ok := c.tables[fmt.Sprint(args[1])]; ok {
			return stringRows(t.columns), nil
		}
		return nil, nil

	case query == d.ForeignKeysQuery():
		if !c.sameDatabase(args, 3) || fmt.Sprint(args[2]) != "FOREIGN KEY" {
			return nil, nil
		}
		if t, ok := c.tables[fmt.Sprint(args[1])]; ok {
			return stringRows(t.foreignKeys), nil
		}
		return nil, nil

	case strings.HasPrefix(query, "SELECT version FROM "):
		if err := c.requireLedger(); err != nil {
			return nil, err
		}
		resource := fmt.Sprint(args[0])
		for i := len(c.ledger) - 1; i >= 0; i-- {
			if c.ledger[i].Resource == resource {
				return []db.Row{{c.ledger[i].Version}}, nil
			}
		}
		return nil, nil

	case strings.HasPrefix(query, "SELECT id, resource, version, applied_at FROM "):
		if err := c.requireLedger(); err != nil {
			return nil, err
		}
		resource := fmt.Sprint(args[0])
		var rows []db.Row
		for _, r := range c.ledger {
			if r.Resource == resource {
				rows = append(rows, db.Row{r.ID, r.Resource, r.Version, r.AppliedAt})
			}
		}
		return rows, nil
	}

	return nil, fmt.Errorf("dbtest: unrecognized query: %s", query)
}

// Scalar implements db.Querier
func (c *Catalog) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0][0], nil
}

// Execute implements db.Querier
func (c *Catalog) Execute(_ context.Context, stmt string, args ...any) (db.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, stmt)

	if c.failOn != nil {
		if err := c.failOn(stmt); err != nil {
			return db.Result{}, err
		}
	}

	if m := createTableRe.FindStringSubmatch(stmt); m != nil {
		name := m[1]
		if name == c.ledgerTable {
			c.ledgerReady = true
			return db.Result{}, nil
		}
		if _, ok := c.tables[name]; ok {
			return db.Result{}, nil
		}
		var columns []string
		for _, cm := range columnLineRe.FindAllStringSubmatch(stmt, -1) {
			columns = append(columns, cm[1])
		}
		c.addTable(name, columns)
		return db.Result{}, nil
	}

	if m := addColumnRe.FindStringSubmatch(stmt); m != nil {
		t, ok := c.tables[m[1]]
		if !ok {
			return db.Result{}, myErr(erNoSuchTable, "Table '%s.%s' doesn't exist", c.database, m[1])
		}
		if slices.Contains(t.columns, m[2]) {
			return db.Result{}, myErr(erDupFieldName, "Duplicate column name '%s'", m[2])
		}
		t.columns = append(t.columns, m[2])
		return db.Result{}, nil
	}

	if m := addFKRe.FindStringSubmatch(stmt); m != nil {
		tableName, constraint, column, refTable, refColumn := m[1], m[2], m[3], m[4], m[5]
		t, ok := c.tables[tableName]
		if !ok {
			return db.Result{}, myErr(erNoSuchTable, "Table '%s.%s' doesn't exist", c.database, tableName)
		}
		if !slices.Contains(t.columns, column) {
			return db.Result{}, myErr(erBadField, "Key column '%s' doesn't exist in table", column)
		}
		ref, ok := c.tables[refTable]
		if !ok || !slices.Contains(ref.columns, refColumn) {
			return db.Result{}, myErr(erFKNoIndexParent, "Failed to add the foreign key constraint. Missing index for constraint '%s' in the referenced table '%s'", constraint, refTable)
		}
		if slices.Contains(t.foreignKeys, constraint) {
			return db.Result{}, myErr(erFKDupName, "Duplicate foreign key constraint name '%s'", constraint)
		}
		t.foreignKeys = append(t.foreignKeys, constraint)
		return db.Result{}, nil
	}

	if m := insertRe.FindStringSubmatch(stmt); m != nil && m[1] == c.ledgerTable {
		if err := c.requireLedger(); err != nil {
			return db.Result{}, err
		}
		resource, version := fmt.Sprint(args[0]), fmt.Sprint(args[1])
		for _, r := range c.ledger {
			if r.Resource == resource && r.Version == version {
				return db.Result{}, myErr(erDupEntry, "Duplicate entry '%s-%s' for key 'idx_resource_version'", resource, version)
			}
		}
		id := int64(len(c.ledger) + 1)
		c.ledger = append(c.ledger, LedgerRow{ID: id, Resource: resource, Version: version, AppliedAt: time.Now()})
		return db.Result{RowsAffected: 1, LastInsertID: id}, nil
	}

	return db.Result{}, fmt.Errorf("dbtest: unrecognized statement: %s", stmt)
}

// TableNames returns the existing table names, sorted
func (c *Catalog) TableNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := append([]string(nil), c.order...)
	sort.Strings(names)
	return names
}

func (c *Catalog) addTable(name string, columns []string) {
	c.tables[name] = &table{columns: append([]string(nil), columns...)}
	c.order = append(c.order, name)
}

func (c *Catalog) sameDatabase(args []any, want int) bool {
	return len(args) == want && fmt.Sprint(args[0]) == c.database
}

func (c *Catalog) requireLedger() error {
	if !c.ledgerReady {
		return myErr(erNoSuchTable, "Table '%s.%s' doesn't exist", c.database, c.ledgerTable)
	}
	return nil
}

func stringRows(values []string) []db.Row {
	rows := make([]db.Row, 0, len(values))
	for _, v := range values {
		rows = append(rows, db.Row{v})
	}
	return rows
}

func myErr(number uint16, format string, args ...any) error {
	return &mysql.MySQLError{Number: number, Message: fmt.Sprintf(format, args...)}
}
