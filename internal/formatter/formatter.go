// Package formatter renders migration plans and ledger history for humans.
package formatter

import (
	"fmt"

	"github.com/tordrt/schemasync/internal/ddl"
	"github.com/tordrt/schemasync/internal/ledger"
	"github.com/tordrt/schemasync/internal/migrate"
)

const (
	FormatMarkdown = "markdown"
	FormatText     = "text"

	timeLayout = "2006-01-02 15:04:05"
)

// Formatter writes a plan or a ledger history
type Formatter interface {
	FormatPlan(p *migrate.Plan) error
	FormatHistory(resource string, entries []ledger.Entry) error
}

// group is a run of statements shown under one heading, in execution order
type group struct {
	Title      string
	Statements []ddl.Statement
}

// groupStatements splits a plan into tables (with their indexes), columns and
// foreign keys. Empty groups are dropped.
func groupStatements(stmts []ddl.Statement) []group {
	groups := []group{{Title: "Tables"}, {Title: "Columns"}, {Title: "Foreign keys"}}
	for _, s := range stmts {
		switch s.Kind {
		case ddl.KindCreateTable, ddl.KindCreateIndex:
			groups[0].Statements = append(groups[0].Statements, s)
		case ddl.KindAddColumn:
			groups[1].Statements = append(groups[1].Statements, s)
		case ddl.KindAddForeignKey:
			groups[2].Statements = append(groups[2].Statements, s)
		}
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Statements) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// versionSummary describes what the plan does to the ledger
func versionSummary(p *migrate.Plan) string {
	switch {
	case !p.Record:
		return fmt.Sprintf("%s (already applied)", p.Version)
	case p.PreviousVersion == "":
		return fmt.Sprintf("%s (first migration)", p.Version)
	default:
		return fmt.Sprintf("%s (current: %s)", p.Version, p.PreviousVersion)
	}
}

// describe returns a one-line summary of a statement
func describe(s ddl.Statement) string {
	if s.Kind == ddl.KindCreateTable {
		return fmt.Sprintf("%s %s", s.Kind, s.Table)
	}
	return fmt.Sprintf("%s %s on %s", s.Kind, s.Element, s.Table)
}
