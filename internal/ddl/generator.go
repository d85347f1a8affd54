// Package ddl renders missing schema elements as dialect-specific SQL.
// Generation is deterministic and has no side effects.
package ddl

import (
	"strings"

	"github.com/tordrt/schemasync/internal/dialect"
	"github.com/tordrt/schemasync/internal/schema"
)

// Options holds the table defaults appended to every CREATE TABLE on
// dialects that support table options
type Options struct {
	Engine    string
	Charset   string
	Collation string
}

// DefaultOptions returns InnoDB / utf8mb4 / utf8mb4_unicode_ci
func DefaultOptions() Options {
	return Options{
		Engine:    "InnoDB",
		Charset:   "utf8mb4",
		Collation: "utf8mb4_unicode_ci",
	}
}

// rawExpressions are default values emitted unquoted. Matching is a
// case-insensitive prefix match ending at a token boundary, so
// CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP qualifies and CURRENT_TIMEZONE does not.
var rawExpressions = []string{
	"CURRENT_TIMESTAMP",
	"CURRENT_DATE",
	"CURRENT_TIME",
	"LOCALTIMESTAMP",
	"LOCALTIME",
	"UTC_TIMESTAMP",
	"NOW()",
}

// Generator renders DDL for one dialect
type Generator struct {
	dialect  dialect.Dialect
	features dialect.Features
	opts     Options
}

// NewGenerator creates a generator. Empty option fields take their default.
func NewGenerator(d dialect.Dialect, opts Options) *Generator {
	def := DefaultOptions()
	if opts.Engine == "" {
		opts.Engine = def.Engine
	}
	if opts.Charset == "" {
		opts.Charset = def.Charset
	}
	if opts.Collation == "" {
		opts.Collation = def.Collation
	}
	return &Generator{
		dialect:  d,
		features: d.Features(),
		opts:     opts,
	}
}

// Column renders a column clause: name, type, UNSIGNED, NOT NULL,
// AUTO_INCREMENT, UNIQUE, then DEFAULT last
func (g *Generator) Column(col schema.Column) string {
	parts := []string{g.dialect.QuoteIdent(col.Name), col.Type}

	if col.Unsigned && g.features.Unsigned {
		parts = append(parts, "UNSIGNED")
	}
	if col.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if col.AutoIncrement && g.features.AutoIncrement != "" {
		parts = append(parts, g.features.AutoIncrement)
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.Default.IsSet() {
		parts = append(parts, "DEFAULT "+g.Default(col.Default))
	}

	return strings.Join(parts, " ")
}

// Default renders a default value without the DEFAULT keyword
func (g *Generator) Default(d schema.Default) string {
	switch d.Kind {
	case schema.DefaultNull:
		return "NULL"
	case schema.DefaultString:
		if IsRawExpression(d.Value) {
			return d.Value
		}
		return g.literal(d.Value)
	case schema.DefaultNumber, schema.DefaultBool:
		return d.Value
	default:
		return ""
	}
}

// IsRawExpression reports whether a string default is a SQL expression such
// as CURRENT_TIMESTAMP rather than a literal
func IsRawExpression(value string) bool {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, expr := range rawExpressions {
		rest, ok := strings.CutPrefix(upper, expr)
		if !ok {
			continue
		}
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '(' {
			return true
		}
	}
	return false
}

// literal single-quotes s, doubling quotes and, where the dialect reads
// backslash as an escape, backslashes
func (g *Generator) literal(s string) string {
	if g.features.BackslashEscapes {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// CreateTable renders one CREATE TABLE IF NOT EXISTS statement with every
// column, a composite PRIMARY KEY over the flagged columns in declaration
// order, and, on dialects that allow it, one KEY / UNIQUE KEY per index
func (g *Generator) CreateTable(table schema.Table) string {
	var lines []string

	for _, col := range table.Columns {
		lines = append(lines, g.Column(col))
	}

	var primaryKeys []string
	for _, col := range table.Columns {
		if col.PrimaryKey {
			primaryKeys = append(primaryKeys, g.dialect.QuoteIdent(col.Name))
		}
	}
	if len(primaryKeys) > 0 {
		lines = append(lines, "PRIMARY KEY ("+strings.Join(primaryKeys, ", ")+")")
	}

	if g.features.InlineIndexes {
		for _, idx := range table.Indexes {
			keyword := "KEY"
			if idx.Unique {
				keyword = "UNIQUE KEY"
			}
			lines = append(lines, keyword+" "+g.dialect.QuoteIdent(idx.Name)+" ("+g.identList(idx.Columns)+")")
		}
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(g.dialect.QuoteIdent(table.Name))
	b.WriteString(" (\n  ")
	b.WriteString(strings.Join(lines, ",\n  "))
	b.WriteString("\n)")
	b.WriteString(g.tableOptions())
	return b.String()
}

// CreateIndexes renders standalone CREATE INDEX statements for dialects
// without inline index clauses; it returns nil otherwise
func (g *Generator) CreateIndexes(table schema.Table) []string {
	if g.features.InlineIndexes || len(table.Indexes) == 0 {
		return nil
	}

	stmts := make([]string, 0, len(table.Indexes))
	for _, idx := range table.Indexes {
		keyword := "CREATE INDEX IF NOT EXISTS "
		if idx.Unique {
			keyword = "CREATE UNIQUE INDEX IF NOT EXISTS "
		}
		stmts = append(stmts, keyword+g.dialect.QuoteIdent(idx.Name)+" ON "+
			g.dialect.QuoteIdent(table.Name)+" ("+g.identList(idx.Columns)+")")
	}
	return stmts
}

// AddColumn renders ALTER TABLE <table> ADD COLUMN <column clause>
func (g *Generator) AddColumn(table string, col schema.Column) string {
	return "ALTER TABLE " + g.dialect.QuoteIdent(table) + " ADD COLUMN " + g.Column(col)
}

// AddForeignKey renders ALTER TABLE ... ADD CONSTRAINT fk_<table>_<column>
// FOREIGN KEY ... REFERENCES ..., then ON DELETE and ON UPDATE when set
func (g *Generator) AddForeignKey(table string, fk schema.ForeignKey) string {
	q := g.dialect.QuoteIdent

	var b strings.Builder
	b.WriteString("ALTER TABLE " + q(table))
	b.WriteString(" ADD CONSTRAINT " + q(fk.ConstraintName(table)))
	b.WriteString(" FOREIGN KEY (" + q(fk.Column) + ")")
	b.WriteString(" REFERENCES " + q(fk.References.Table) + "(" + q(fk.References.Column) + ")")
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + string(fk.OnDelete))
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + string(fk.OnUpdate))
	}
	return b.String()
}

func (g *Generator) tableOptions() string {
	if !g.features.TableOptions {
		return ""
	}
	return " ENGINE=" + g.opts.Engine + " DEFAULT CHARSET=" + g.opts.Charset + " COLLATE=" + g.opts.Collation
}

func (g *Generator) identList(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, g.dialect.QuoteIdent(n))
	}
	return strings.Join(quoted, ", ")
}
