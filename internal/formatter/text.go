package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/ledger"
	"github.com/tordrt/schemasync/internal/migrate"
)

// TextFormatter formats plans as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatPlan writes the database, version and statements of a plan
func (f *TextFormatter) FormatPlan(p *migrate.Plan) error {
	_, _ = fmt.Fprintf(f.writer, "DATABASE %s\n", p.Database)
	_, _ = fmt.Fprintf(f.writer, "VERSION %s\n", versionSummary(p))
	if len(p.ExistingTables) > 0 {
		_, _ = fmt.Fprintf(f.writer, "EXISTING %s\n", strings.Join(p.ExistingTables, ", "))
	}

	groups := groupStatements(p.Statements)
	if len(groups) == 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "Nothing to apply")
		return nil
	}

	for _, g := range groups {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintf(f.writer, "%s:\n", strings.ToUpper(g.Title))
		for _, s := range g.Statements {
			_, _ = fmt.Fprintf(f.writer, "  -- %s\n", describe(s))
			_, _ = fmt.Fprintf(f.writer, "  %s;\n", indent(s.SQL, "  "))
		}
	}
	return nil
}

// FormatHistory writes one line per recorded version
func (f *TextFormatter) FormatHistory(resource string, entries []ledger.Entry) error {
	_, _ = fmt.Fprintf(f.writer, "RESOURCE %s\n", resource)
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(f.writer, "  no versions applied")
		return nil
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(f.writer, "  %d  %s  %s\n", e.ID, e.Version, e.AppliedAt.Format(timeLayout))
	}
	return nil
}

// indent prefixes every line after the first
func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
