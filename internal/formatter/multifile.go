package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/schemasync/internal/ddl"
	"github.com/tordrt/schemasync/internal/migrate"
)

// MultiFileFormatter writes a plan as one numbered .sql file per statement,
// plus an overview, so it can be reviewed or applied by hand
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // overview format: "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// FormatPlan writes the statement files and the overview. It returns the
// statement file names in execution order.
func (f *MultiFileFormatter) FormatPlan(p *migrate.Plan) ([]string, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	names := make([]string, 0, len(p.Statements))
	for i, stmt := range p.Statements {
		name := fileName(i+1, stmt)
		if err := f.writeStatementFile(name, stmt); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		names = append(names, name)
	}

	if err := f.writeOverview(p, names); err != nil {
		return nil, fmt.Errorf("failed to write overview: %w", err)
	}
	return names, nil
}

func (f *MultiFileFormatter) writeStatementFile(name string, stmt ddl.Statement) error {
	content := fmt.Sprintf("-- %s\n%s;\n", describe(stmt), stmt.SQL)
	return os.WriteFile(filepath.Join(f.OutputDir, name), []byte(content), 0644)
}

// writeOverview writes the overview file
func (f *MultiFileFormatter) writeOverview(p *migrate.Plan, names []string) error {
	filename := filepath.Join(f.OutputDir, "_overview"+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(file, "# Migration Plan Overview\n\n")
		_, _ = fmt.Fprintf(file, "- **Database:** %s\n", p.Database)
		_, _ = fmt.Fprintf(file, "- **Version:** %s\n\n", versionSummary(p))
		_, _ = fmt.Fprintf(file, "Apply the files in order:\n\n")
		for i, name := range names {
			_, _ = fmt.Fprintf(file, "%d. `%s`: %s\n", i+1, name, describe(p.Statements[i]))
		}
		return nil
	}

	_, _ = fmt.Fprintf(file, "MIGRATION PLAN OVERVIEW\n")
	_, _ = fmt.Fprintf(file, "DATABASE %s\n", p.Database)
	_, _ = fmt.Fprintf(file, "VERSION %s\n\n", versionSummary(p))
	for i, name := range names {
		_, _ = fmt.Fprintf(file, "%s  %s\n", name, describe(p.Statements[i]))
	}
	return nil
}

// fileName returns e.g. 003_add_column_users_discord_id.sql
func fileName(n int, stmt ddl.Statement) string {
	parts := []string{strings.ReplaceAll(stmt.Kind.String(), " ", "_"), stmt.Table}
	if stmt.Kind != ddl.KindCreateTable {
		parts = append(parts, stmt.Element)
	}
	return fmt.Sprintf("%03d_%s.sql", n, sanitize(strings.Join(parts, "_")))
}

// sanitize keeps file names portable
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
