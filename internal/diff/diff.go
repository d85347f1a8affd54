// Package diff compares a desired schema with the observed catalog and reports
// what is missing. Reconciliation is strictly additive: nothing present in the
// catalog but absent from the desired schema is ever reported.
package diff

import (
	"github.com/tordrt/schemasync/internal/inspect"
	"github.com/tordrt/schemasync/internal/schema"
)

// MissingColumns groups the undeclared-in-catalog columns of an existing table
type MissingColumns struct {
	Table   string
	Columns []schema.Column
}

// MissingForeignKeys groups the undetected foreign keys of a table
type MissingForeignKeys struct {
	Table       string
	ForeignKeys []schema.ForeignKey
}

// MissingElements is the result of one comparison. It belongs to a single
// reconciliation pass and is never shared.
type MissingElements struct {
	Tables      []schema.Table
	Columns     []MissingColumns
	ForeignKeys []MissingForeignKeys
}

// Compute walks the desired tables in declaration order.
//
// A missing table is reported whole, together with all of its foreign keys;
// its columns ship with CREATE TABLE. For an existing table, the columns and
// foreign keys (by derived constraint name) absent from the catalog are reported.
func Compute(desired []schema.Table, catalog *inspect.Catalog) *MissingElements {
	missing := &MissingElements{}

	for _, table := range desired {
		if !catalog.HasTable(table.Name) {
			missing.Tables = append(missing.Tables, table)
			if len(table.ForeignKeys) > 0 {
				missing.ForeignKeys = append(missing.ForeignKeys, MissingForeignKeys{
					Table:       table.Name,
					ForeignKeys: table.ForeignKeys,
				})
			}
			continue
		}

		var columns []schema.Column
		for _, col := range table.Columns {
			if !catalog.HasColumn(table.Name, col.Name) {
				columns = append(columns, col)
			}
		}
		if len(columns) > 0 {
			missing.Columns = append(missing.Columns, MissingColumns{Table: table.Name, Columns: columns})
		}

		var foreignKeys []schema.ForeignKey
		for _, fk := range table.ForeignKeys {
			if !catalog.HasForeignKey(table.Name, fk.ConstraintName(table.Name)) {
				foreignKeys = append(foreignKeys, fk)
			}
		}
		if len(foreignKeys) > 0 {
			missing.ForeignKeys = append(missing.ForeignKeys, MissingForeignKeys{Table: table.Name, ForeignKeys: foreignKeys})
		}
	}

	return missing
}

// Count returns the number of missing elements: tables, plus each column, plus each foreign key
func (m *MissingElements) Count() int {
	n := len(m.Tables)
	for _, c := range m.Columns {
		n += len(c.Columns)
	}
	for _, f := range m.ForeignKeys {
		n += len(f.ForeignKeys)
	}
	return n
}

// Empty reports whether nothing is missing
func (m *MissingElements) Empty() bool {
	return m.Count() == 0
}
