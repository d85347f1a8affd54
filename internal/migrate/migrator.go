// Package migrate runs reconciliation passes: discover the database, check the
// ledger, diff the declared schema against the catalog and apply what is missing.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/ddl"
	"github.com/tordrt/schemasync/internal/dialect"
	"github.com/tordrt/schemasync/internal/diff"
	"github.com/tordrt/schemasync/internal/inspect"
	"github.com/tordrt/schemasync/internal/ledger"
	"github.com/tordrt/schemasync/internal/logging"
	"github.com/tordrt/schemasync/internal/schema"
)

// Outcome tells how a pass ended
type Outcome int

const (
	// OutcomeFailed is the outcome of a pass that returned an error
	OutcomeFailed Outcome = iota
	// OutcomeDisabled means the engine is switched off; nothing was touched
	OutcomeDisabled
	// OutcomeEmptySchema means the schema declares no tables
	OutcomeEmptySchema
	// OutcomeUpToDate means the version was already applied and repair is off
	OutcomeUpToDate
	// OutcomeVerified means the version was already applied and nothing was missing
	OutcomeVerified
	// OutcomeRepaired means missing elements of an applied version were recreated
	OutcomeRepaired
	// OutcomeMigrated means a new version was applied and recorded
	OutcomeMigrated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "failed"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeEmptySchema:
		return "empty schema"
	case OutcomeUpToDate:
		return "up to date"
	case OutcomeVerified:
		return "verified"
	case OutcomeRepaired:
		return "repaired"
	case OutcomeMigrated:
		return "migrated"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Config controls a Migrator
type Config struct {
	// Enabled is the master switch
	Enabled bool
	// DetectMissing enables the repair pass when the version is already applied
	DetectMissing bool
	// Resource keys the ledger rows
	Resource string
	Schema   *schema.Definition
	DDL      ddl.Options
	// LedgerTable defaults to schema_migrations
	LedgerTable string
}

// Result describes a finished pass. On failure it holds what was done before
// the error.
type Result struct {
	PassID          string
	Outcome         Outcome
	Database        string
	Version         string
	PreviousVersion string
	ExistingTables  []string
	Applied         []ddl.Statement
}

// Migrator reconciles one declared schema against one database.
// A Migrator must not run concurrently with another pass for the same resource.
type Migrator struct {
	q         db.Querier
	dialect   dialect.Dialect
	cfg       Config
	inspector *inspect.Inspector
	generator *ddl.Generator
	ledger    *ledger.Ledger
	logger    *slog.Logger
}

// NewMigrator creates a migrator. A nil logger falls back to slog.Default().
func NewMigrator(q db.Querier, d dialect.Dialect, cfg Config, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		q:         q,
		dialect:   d,
		cfg:       cfg,
		inspector: inspect.NewInspector(q, d),
		generator: ddl.NewGenerator(d, cfg.DDL),
		ledger:    ledger.New(q, d, cfg.LedgerTable),
		logger:    logger,
	}
}

// Run executes one reconciliation pass.
//
// Statements run one at a time, tables first, then columns, then foreign keys.
// A failed statement aborts the pass without rollback and without a ledger
// row; the next pass diffs the live catalog again and only retries what is
// still missing.
func (m *Migrator) Run(ctx context.Context) (*Result, error) {
	result := &Result{PassID: uuid.NewString()}
	logger := m.logger.With("pass", result.PassID)

	if !m.cfg.Enabled {
		logger.Info("Auto-migration disabled")
		result.Outcome = OutcomeDisabled
		return result, nil
	}
	logger.Info("Auto-migration enabled")

	if m.cfg.Schema == nil || len(m.cfg.Schema.Tables) == 0 {
		logger.Info("No tables defined in schema, skipping")
		result.Outcome = OutcomeEmptySchema
		return result, nil
	}
	result.Version = m.cfg.Schema.Version

	if err := m.checkSupported(); err != nil {
		logger.Error("Schema cannot be applied", "dialect", m.dialect.Name(), "error", err)
		return result, err
	}

	database, err := m.inspector.DatabaseName(ctx)
	if err != nil {
		logger.Error("Database not found, unable to determine database name", "error", err)
		return result, err
	}
	result.Database = database
	logger.Info("Database found", "database", database)

	if err := m.ledger.Ensure(ctx); err != nil {
		logger.Error("Ledger unavailable", "error", err)
		return result, err
	}

	latest, applied, err := m.ledger.LatestVersion(ctx, m.cfg.Resource)
	if err != nil {
		logger.Error("Ledger unavailable", "error", err)
		return result, err
	}
	result.PreviousVersion = latest

	if applied && latest == m.cfg.Schema.Version {
		return m.repair(ctx, logger, result)
	}
	return m.migrate(ctx, logger, result, applied)
}

// repair handles an already-applied version: verify and recreate what is
// missing, never writing a ledger row
func (m *Migrator) repair(ctx context.Context, logger *slog.Logger, result *Result) (*Result, error) {
	logger.Info("Version already applied", "version", result.Version)

	if !m.cfg.DetectMissing {
		logger.Info("Repair disabled, skipping verification")
		result.Outcome = OutcomeUpToDate
		return result, nil
	}
	logger.Info("Repair enabled, checking tables and columns")

	missing, err := m.discover(ctx, logger, result)
	if err != nil {
		return result, err
	}

	if missing.Empty() {
		logging.Success(ctx, logger, "All tables and columns OK, nothing to repair")
		result.Outcome = OutcomeVerified
		return result, nil
	}

	logger.Warn("Missing elements detected, repairing", "count", missing.Count())
	if err := m.apply(ctx, logger, result, m.generator.Plan(missing), true); err != nil {
		return result, err
	}

	result.Outcome = OutcomeRepaired
	logging.Success(ctx, logger, "Repair complete", "repaired", missing.Count(), "statements", len(result.Applied))
	return result, nil
}

// migrate applies a new version and records it
func (m *Migrator) migrate(ctx context.Context, logger *slog.Logger, result *Result, hadVersion bool) (*Result, error) {
	if hadVersion {
		logger.Info("New version detected", "version", result.Version, "current", result.PreviousVersion)
	} else {
		logger.Info("New version detected (first migration)", "version", result.Version)
	}
	logger.Info("Starting migration")

	missing, err := m.discover(ctx, logger, result)
	if err != nil {
		return result, err
	}

	if err := m.apply(ctx, logger, result, m.generator.Plan(missing), false); err != nil {
		return result, err
	}

	if err := m.ledger.MarkApplied(ctx, m.cfg.Resource, result.Version); err != nil {
		logger.Error("Failed to record version", "version", result.Version, "error", err)
		return result, err
	}

	result.Outcome = OutcomeMigrated
	logging.Success(ctx, logger, fmt.Sprintf("Migration to version %s complete", result.Version), "statements", len(result.Applied))
	return result, nil
}

// discover inspects the catalog and diffs it against the declared tables
func (m *Migrator) discover(ctx context.Context, logger *slog.Logger, result *Result) (*diff.MissingElements, error) {
	catalog, err := m.inspector.Inspect(ctx, result.Database, m.cfg.Schema.Tables)
	if err != nil {
		logger.Error("Catalog inspection failed", "error", err)
		return nil, err
	}

	result.ExistingTables = catalog.ExistingTables(m.cfg.Schema.Tables)
	if len(result.ExistingTables) > 0 {
		logger.Info(fmt.Sprintf("%d table(s) found", len(result.ExistingTables)), "tables", strings.Join(result.ExistingTables, ", "))
	} else {
		logger.Info("No existing tables found")
	}

	return diff.Compute(m.cfg.Schema.Tables, catalog), nil
}

// apply executes statements in order, stopping at the first failure
func (m *Migrator) apply(ctx context.Context, logger *slog.Logger, result *Result, stmts []ddl.Statement, repair bool) error {
	for _, stmt := range stmts {
		attrs := statementAttrs(stmt)
		if !repair {
			logger.Info(startMessage(stmt.Kind), attrs...)
		}
		logger.Debug("Executing statement", "sql", stmt.SQL)

		if _, err := m.q.Execute(ctx, stmt.SQL); err != nil {
			execErr := &DDLExecutionError{Statement: stmt, Err: err}
			logger.Error("Statement failed", append(attrs, "error", err)...)
			return execErr
		}
		result.Applied = append(result.Applied, stmt)

		if repair {
			logger.Info("Repaired: "+repairMessage(stmt.Kind), attrs...)
		} else {
			logger.Info(doneMessage(stmt.Kind), attrs...)
		}
	}
	return nil
}

// checkSupported rejects schemas the dialect cannot fully apply
func (m *Migrator) checkSupported() error {
	if m.cfg.Schema.HasForeignKeys() && !m.dialect.Features().AddConstraint {
		return fmt.Errorf("%w: %s cannot add foreign key constraints", ErrUnsupported, m.dialect.Name())
	}
	return nil
}

func statementAttrs(stmt ddl.Statement) []any {
	switch stmt.Kind {
	case ddl.KindCreateTable:
		return []any{"table", stmt.Table}
	case ddl.KindCreateIndex:
		return []any{"table", stmt.Table, "index", stmt.Element}
	case ddl.KindAddColumn:
		return []any{"table", stmt.Table, "column", stmt.Element}
	case ddl.KindAddForeignKey:
		return []any{"table", stmt.Table, "constraint", stmt.Element}
	default:
		return []any{"table", stmt.Table}
	}
}

func startMessage(k ddl.Kind) string {
	switch k {
	case ddl.KindCreateTable:
		return "Migrating table"
	case ddl.KindCreateIndex:
		return "Creating index"
	case ddl.KindAddColumn:
		return "Adding column"
	case ddl.KindAddForeignKey:
		return "Adding foreign key"
	default:
		return "Executing " + k.String()
	}
}

func doneMessage(k ddl.Kind) string {
	switch k {
	case ddl.KindCreateTable:
		return "Table done"
	case ddl.KindCreateIndex:
		return "Index done"
	case ddl.KindAddColumn:
		return "Column done"
	case ddl.KindAddForeignKey:
		return "Foreign key done"
	default:
		return k.String() + " done"
	}
}

func repairMessage(k ddl.Kind) string {
	switch k {
	case ddl.KindCreateTable:
		return "created table"
	case ddl.KindCreateIndex:
		return "created index"
	case ddl.KindAddColumn:
		return "added column"
	case ddl.KindAddForeignKey:
		return "added foreign key"
	default:
		return k.String()
	}
}
