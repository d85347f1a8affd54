package migrate

import (
	"context"

	"github.com/tordrt/schemasync/internal/ddl"
	"github.com/tordrt/schemasync/internal/diff"
)

// Plan is the outcome of a dry run
type Plan struct {
	Database        string
	Version         string
	PreviousVersion string
	// Record is true when Run would write a ledger row for Version
	Record         bool
	ExistingTables []string
	Missing        *diff.MissingElements
	Statements     []ddl.Statement
}

// Plan computes what Run would execute without writing anything: the ledger
// table is not created and no DDL runs. It ignores Config.Enabled.
func (m *Migrator) Plan(ctx context.Context) (*Plan, error) {
	plan := &Plan{Missing: &diff.MissingElements{}}
	if m.cfg.Schema == nil || len(m.cfg.Schema.Tables) == 0 {
		return plan, nil
	}
	plan.Version = m.cfg.Schema.Version

	if err := m.checkSupported(); err != nil {
		return nil, err
	}

	database, err := m.inspector.DatabaseName(ctx)
	if err != nil {
		return nil, err
	}
	plan.Database = database

	catalog, err := m.inspector.Inspect(ctx, database, m.cfg.Schema.Tables)
	if err != nil {
		return nil, err
	}
	plan.ExistingTables = catalog.ExistingTables(m.cfg.Schema.Tables)

	applied := false
	if catalog.HasTable(m.ledger.Table()) {
		latest, ok, err := m.ledger.LatestVersion(ctx, m.cfg.Resource)
		if err != nil {
			return nil, err
		}
		plan.PreviousVersion = latest
		applied = ok && latest == plan.Version
	}

	plan.Record = !applied
	if applied && !m.cfg.DetectMissing {
		return plan, nil
	}

	plan.Missing = diff.Compute(m.cfg.Schema.Tables, catalog)
	plan.Statements = m.generator.Plan(plan.Missing)
	m.logger.Debug("Plan computed", "database", database, "statements", len(plan.Statements), "record", plan.Record)
	return plan, nil
}
