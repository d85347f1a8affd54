package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemasync/internal/ledger"
	"github.com/tordrt/schemasync/internal/migrate"
)

// MarkdownFormatter formats plans as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatPlan writes the plan as a markdown document
func (f *MarkdownFormatter) FormatPlan(p *migrate.Plan) error {
	_, _ = fmt.Fprintln(f.writer, "# Migration Plan")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "- **Database:** %s\n", p.Database)
	_, _ = fmt.Fprintf(f.writer, "- **Version:** %s\n", versionSummary(p))
	if len(p.ExistingTables) > 0 {
		_, _ = fmt.Fprintf(f.writer, "- **Existing tables:** %s\n", strings.Join(p.ExistingTables, ", "))
	}
	_, _ = fmt.Fprintln(f.writer)

	groups := groupStatements(p.Statements)
	if len(groups) == 0 {
		_, _ = fmt.Fprintln(f.writer, "Nothing to apply.")
		return nil
	}

	for _, g := range groups {
		f.formatGroup(g)
	}
	return nil
}

func (f *MarkdownFormatter) formatGroup(g group) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", g.Title)
	for _, s := range g.Statements {
		_, _ = fmt.Fprintf(f.writer, "- %s\n\n", describe(s))
		_, _ = fmt.Fprintf(f.writer, "```sql\n%s;\n```\n\n", s.SQL)
	}
}

// FormatHistory writes the ledger history as a table
func (f *MarkdownFormatter) FormatHistory(resource string, entries []ledger.Entry) error {
	_, _ = fmt.Fprintf(f.writer, "# Applied Versions: %s\n\n", resource)
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No versions applied.")
		return nil
	}

	_, _ = fmt.Fprintln(f.writer, "| ID | Version | Applied at |")
	_, _ = fmt.Fprintln(f.writer, "|---|---|---|")
	for _, e := range entries {
		_, _ = fmt.Fprintf(f.writer, "| %d | %s | %s |\n", e.ID, e.Version, e.AppliedAt.Format(timeLayout))
	}
	return nil
}
