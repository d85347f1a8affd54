// Package ledger records which schema versions have been applied, per resource.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/dialect"
)

// DefaultTable is the name of the ledger table
const DefaultTable = "schema_migrations"

// ErrDuplicateVersion is returned when a (resource, version) pair is recorded twice
var ErrDuplicateVersion = errors.New("version already recorded")

// Entry is one row of the ledger
type Entry struct {
	ID        int64
	Resource  string
	Version   string
	AppliedAt time.Time
}

// Ledger reads and writes the version ledger table. Rows are only ever
// inserted; the latest row per resource is the one with the highest id.
type Ledger struct {
	q       db.Querier
	dialect dialect.Dialect
	table   string
}

// New creates a ledger over table, or DefaultTable when table is empty
func New(q db.Querier, d dialect.Dialect, table string) *Ledger {
	if table == "" {
		table = DefaultTable
	}
	return &Ledger{q: q, dialect: d, table: table}
}

// Table returns the ledger table name
func (l *Ledger) Table() string {
	return l.table
}

// Ensure creates the ledger table if it does not exist
func (l *Ledger) Ensure(ctx context.Context) error {
	if _, err := l.q.Execute(ctx, l.dialect.LedgerDDL(l.table)); err != nil {
		return fmt.Errorf("failed to create ledger table %s: %w", l.table, err)
	}
	return nil
}

// LatestVersion returns the most recently recorded version for resource.
// ok is false when the resource has never been migrated.
func (l *Ledger) LatestVersion(ctx context.Context, resource string) (version string, ok bool, err error) {
	query := l.dialect.Rebind("SELECT version FROM " + l.dialect.QuoteIdent(l.table) +
		" WHERE resource = ? ORDER BY id DESC LIMIT 1")

	version, ok, err = db.ScalarString(ctx, l.q, query, resource)
	if err != nil {
		return "", false, fmt.Errorf("failed to read latest version: %w", err)
	}
	return version, ok, nil
}

// MarkApplied records version as applied for resource
func (l *Ledger) MarkApplied(ctx context.Context, resource, version string) error {
	query := l.dialect.Rebind("INSERT INTO " + l.dialect.QuoteIdent(l.table) +
		" (resource, version) VALUES (?, ?)")

	if _, err := db.Insert(ctx, l.q, query, resource, version); err != nil {
		if l.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrDuplicateVersion, resource, version)
		}
		return fmt.Errorf("failed to record version %s: %w", version, err)
	}
	return nil
}

// History returns every recorded version for resource, oldest first
func (l *Ledger) History(ctx context.Context, resource string) ([]Entry, error) {
	query := l.dialect.Rebind("SELECT id, resource, version, applied_at FROM " + l.dialect.QuoteIdent(l.table) +
		" WHERE resource = ? ORDER BY id")

	rows, err := l.q.Query(ctx, query, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger history: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("ledger row %d has %d columns, want 4", i, len(row))
		}
		id, err := toInt64(row[0])
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i, err)
		}
		appliedAt, err := toTime(row[3])
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i, err)
		}
		entries = append(entries, Entry{
			ID:        id,
			Resource:  fmt.Sprint(row[1]),
			Version:   fmt.Sprint(row[2]),
			AppliedAt: appliedAt,
		})
	}
	return entries, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		var id int64
		if _, err := fmt.Sscan(fmt.Sprint(v), &id); err != nil {
			return 0, fmt.Errorf("invalid id %v", v)
		}
		return id, nil
	}
}

// timeLayouts are the textual timestamp forms drivers return when they do not
// parse TIMESTAMP columns themselves
var timeLayouts = []string{
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}
