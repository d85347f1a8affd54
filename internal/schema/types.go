package schema

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalid is returned by Validate when a definition cannot be reconciled
var ErrInvalid = errors.New("invalid schema definition")

// Definition is the desired end state of a database: an opaque version token and
// the tables that must exist. Versions are compared by equality only.
type Definition struct {
	Version string  `yaml:"version"`
	Tables  []Table `yaml:"tables"`
}

// Table represents a desired table
type Table struct {
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	Indexes     []Index      `yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
}

// Column represents a desired column.
//
// AutoIncrement implies an integer primary key; that is not checked here.
type Column struct {
	Name          string  `yaml:"name"`
	Type          string  `yaml:"type"`
	Unsigned      bool    `yaml:"unsigned,omitempty"`
	NotNull       bool    `yaml:"not_null,omitempty"`
	AutoIncrement bool    `yaml:"auto_increment,omitempty"`
	Unique        bool    `yaml:"unique,omitempty"`
	PrimaryKey    bool    `yaml:"primary_key,omitempty"`
	Default       Default `yaml:"default"`
}

// Index represents an index created together with its table
type Index struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// ForeignKey represents a single-column foreign key
type ForeignKey struct {
	Column     string    `yaml:"column"`
	References Reference `yaml:"references"`
	OnDelete   FKAction  `yaml:"on_delete,omitempty"`
	OnUpdate   FKAction  `yaml:"on_update,omitempty"`
}

// Reference is the target of a foreign key
type Reference struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// FKAction is a referential action for ON DELETE / ON UPDATE
type FKAction string

// Referential actions
const (
	ActionCascade  FKAction = "CASCADE"
	ActionSetNull  FKAction = "SET NULL"
	ActionRestrict FKAction = "RESTRICT"
	ActionNoAction FKAction = "NO ACTION"
)

// Valid reports whether a is empty or one of the known actions
func (a FKAction) Valid() bool {
	switch a {
	case "", ActionCascade, ActionSetNull, ActionRestrict, ActionNoAction:
		return true
	}
	return false
}

// ConstraintName returns the derived constraint name fk_<table>_<column>.
// The same name is used to create the constraint and to detect it in the catalog.
func (fk ForeignKey) ConstraintName(table string) string {
	return ConstraintName(table, fk.Column)
}

// ConstraintName returns fk_<table>_<column>
func ConstraintName(table, column string) string {
	return "fk_" + table + "_" + column
}

// DefaultKind tells how a default value is rendered
type DefaultKind int

const (
	// DefaultNone means the column has no DEFAULT clause
	DefaultNone DefaultKind = iota
	// DefaultNull renders DEFAULT NULL
	DefaultNull
	// DefaultString is a string literal, or a raw expression such as CURRENT_TIMESTAMP
	DefaultString
	// DefaultNumber is rendered verbatim
	DefaultNumber
	// DefaultBool is rendered verbatim
	DefaultBool
)

// Default is a column default value. The zero value is "no default".
type Default struct {
	Kind  DefaultKind
	Value string
}

// NullDefault returns DEFAULT NULL
func NullDefault() Default { return Default{Kind: DefaultNull} }

// StringDefault returns a string default
func StringDefault(s string) Default { return Default{Kind: DefaultString, Value: s} }

// IntDefault returns a numeric default
func IntDefault(n int64) Default {
	return Default{Kind: DefaultNumber, Value: strconv.FormatInt(n, 10)}
}

// FloatDefault returns a numeric default
func FloatDefault(f float64) Default {
	return Default{Kind: DefaultNumber, Value: strconv.FormatFloat(f, 'f', -1, 64)}
}

// BoolDefault returns a boolean default
func BoolDefault(b bool) Default {
	return Default{Kind: DefaultBool, Value: strconv.FormatBool(b)}
}

// IsSet reports whether the column declares a default
func (d Default) IsSet() bool {
	return d.Kind != DefaultNone
}

// TableNames returns the declared table names in declaration order
func (d *Definition) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	return names
}

// HasForeignKeys reports whether any table declares a foreign key
func (d *Definition) HasForeignKeys() bool {
	for _, t := range d.Tables {
		if len(t.ForeignKeys) > 0 {
			return true
		}
	}
	return false
}

// Validate checks names and references within the definition
func (d *Definition) Validate() error {
	tables := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if t.Name == "" {
			return fmt.Errorf("%w: table without a name", ErrInvalid)
		}
		if tables[t.Name] {
			return fmt.Errorf("%w: duplicate table %s", ErrInvalid, t.Name)
		}
		tables[t.Name] = true

		if err := t.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %s declares no columns", ErrInvalid, t.Name)
	}

	columns := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" || c.Type == "" {
			return fmt.Errorf("%w: table %s has a column without name or type", ErrInvalid, t.Name)
		}
		if columns[c.Name] {
			return fmt.Errorf("%w: duplicate column %s.%s", ErrInvalid, t.Name, c.Name)
		}
		columns[c.Name] = true
	}

	indexes := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if idx.Name == "" || len(idx.Columns) == 0 {
			return fmt.Errorf("%w: table %s has an index without name or columns", ErrInvalid, t.Name)
		}
		if indexes[idx.Name] {
			return fmt.Errorf("%w: duplicate index %s on %s", ErrInvalid, idx.Name, t.Name)
		}
		indexes[idx.Name] = true
		for _, col := range idx.Columns {
			if !columns[col] {
				return fmt.Errorf("%w: index %s references unknown column %s.%s", ErrInvalid, idx.Name, t.Name, col)
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		if !columns[fk.Column] {
			return fmt.Errorf("%w: foreign key on unknown column %s.%s", ErrInvalid, t.Name, fk.Column)
		}
		if fk.References.Table == "" || fk.References.Column == "" {
			return fmt.Errorf("%w: foreign key %s has no target", ErrInvalid, fk.ConstraintName(t.Name))
		}
		if !fk.OnDelete.Valid() {
			return fmt.Errorf("%w: foreign key %s: unknown ON DELETE action %q", ErrInvalid, fk.ConstraintName(t.Name), fk.OnDelete)
		}
		if !fk.OnUpdate.Valid() {
			return fmt.Errorf("%w: foreign key %s: unknown ON UPDATE action %q", ErrInvalid, fk.ConstraintName(t.Name), fk.OnUpdate)
		}
	}

	return nil
}
