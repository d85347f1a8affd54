package ddl

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/diff"
)

// Kind is the structural kind of a statement
type Kind int

const (
	KindCreateTable Kind = iota
	KindCreateIndex
	KindAddColumn
	KindAddForeignKey
)

// String returns a human-readable kind
func (k Kind) String() string {
	switch k {
	case KindCreateTable:
		return "create table"
	case KindCreateIndex:
		return "create index"
	case KindAddColumn:
		return "add column"
	case KindAddForeignKey:
		return "add foreign key"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Statement is one DDL statement of a plan
type Statement struct {
	Kind  Kind
	Table string
	// Element is the created table, index, column or constraint name
	Element string
	SQL     string
}

// Plan orders the missing elements for execution: every table (each followed
// by its standalone indexes, if any), then every column, then every foreign
// key, each group in diff order. Foreign keys come last because they may
// reference tables and columns created earlier in the same pass.
func (g *Generator) Plan(missing *diff.MissingElements) []Statement {
	var stmts []Statement

	for _, table := range missing.Tables {
		stmts = append(stmts, Statement{
			Kind:    KindCreateTable,
			Table:   table.Name,
			Element: table.Name,
			SQL:     g.CreateTable(table),
		})
		for i, sql := range g.CreateIndexes(table) {
			stmts = append(stmts, Statement{
				Kind:    KindCreateIndex,
				Table:   table.Name,
				Element: table.Indexes[i].Name,
				SQL:     sql,
			})
		}
	}

	for _, group := range missing.Columns {
		for _, col := range group.Columns {
			stmts = append(stmts, Statement{
				Kind:    KindAddColumn,
				Table:   group.Table,
				Element: col.Name,
				SQL:     g.AddColumn(group.Table, col),
			})
		}
	}

	for _, group := range missing.ForeignKeys {
		for _, fk := range group.ForeignKeys {
			stmts = append(stmts, Statement{
				Kind:    KindAddForeignKey,
				Table:   group.Table,
				Element: fk.ConstraintName(group.Table),
				SQL:     g.AddForeignKey(group.Table, fk),
			})
		}
	}

	return stmts
}
