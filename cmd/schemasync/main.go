package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tordrt/schemasync"
	"github.com/tordrt/schemasync/internal/config"
	"github.com/tordrt/schemasync/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// flags holds the command-line flags of one command tree
type flags struct {
	configFile  string
	databaseURL string
	resource    string
	logLevel    string
	schemaFile  string
	format      string
	outputDir   string
	outputFile  string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "schemasync",
		Short:         "Reconcile a database with a declared schema",
		Long:          `Schemasync creates the tables, columns and foreign keys a YAML schema declares but a MySQL, MariaDB, PostgreSQL or SQLite database is missing, and records the applied version in a schema_migrations ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "Config file (default: ./schemasync.yaml if present)")
	pf.StringVar(&f.databaseURL, "database-url", "", "Database URL (mysql://, mariadb://, postgres://, sqlite://)")
	pf.StringVarP(&f.resource, "resource", "r", "", "Resource name keying the ledger rows")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, success, warn, error")
	pf.StringVarP(&f.schemaFile, "schema", "s", "", "Schema definition file (YAML); conflicts with an inline schema in the config file")

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the statements a migration would execute",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, f)
		},
	}
	planCmd.Flags().StringVarP(&f.format, "format", "f", "text", "Output format: text or markdown")
	planCmd.Flags().StringVarP(&f.outputDir, "output-dir", "d", "", "Write numbered .sql files and an overview to this directory")
	planCmd.Flags().StringVarP(&f.outputFile, "output", "o", "", "Output file (default: stdout)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the versions applied for the resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, f)
		},
	}
	statusCmd.Flags().StringVarP(&f.format, "format", "f", "text", "Output format: text or markdown")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create missing tables, columns and foreign keys",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd, f)
			},
		},
		planCmd,
		statusCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schemasync %s\n", version)
			},
		},
	)

	return rootCmd
}

// loadConfig merges the config file, the environment and the flags set on the command line
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	v := config.New()
	bindFlag(v, cmd, config.KeyDatabaseURL, "database-url")
	bindFlag(v, cmd, config.KeyResource, "resource")
	bindFlag(v, cmd, config.KeyLogLevel, "log-level")
	bindFlag(v, cmd, config.KeySchemaFile, "schema")

	cfg, err := config.Load(v, f.configFile)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database URL: use --database-url, database.url or SCHEMASYNC_DATABASE_URL")
	}
	return cfg, nil
}

// bindFlag lets an explicitly set flag override the config file and environment
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, name string) {
	if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
		v.Set(key, flag.Value.String())
	}
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	return logging.New(w, logging.Options{
		Resource: cfg.Resource,
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
	})
}

func options(cfg *config.Config, logger *slog.Logger) *schemasync.Options {
	return &schemasync.Options{
		Resource:    cfg.Resource,
		Disabled:    !cfg.Enabled,
		SkipRepair:  !cfg.DetectMissing,
		LedgerTable: cfg.LedgerTable,
		DDL:         cfg.DDL,
		Pool:        cfg.Pool,
		Logger:      logger,
	}
}

func runMigrate(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	result, err := schemasync.Migrate(context.Background(), cfg.DatabaseURL, cfg.Schema, options(cfg, logger))
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d statement(s))\n", cfg.Resource, result.Outcome, len(result.Applied))
	return nil
}

func runPlan(cmd *cobra.Command, f *flags) error {
	if f.outputDir != "" && f.outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	if cfg.Schema == nil {
		return fmt.Errorf("no schema: use --schema, schema or schema_file")
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	plan, err := schemasync.Plan(context.Background(), cfg.DatabaseURL, cfg.Schema, options(cfg, logger))
	if err != nil {
		return fmt.Errorf("failed to plan migration: %w", err)
	}

	out := &schemasync.OutputOptions{Writer: cmd.OutOrStdout(), OutputDir: f.outputDir, Format: f.format}
	if f.outputFile != "" {
		file, err := os.Create(f.outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := file.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		out.Writer = file
	}

	if err := schemasync.FormatPlan(plan, out); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func runStatus(cmd *cobra.Command, f *flags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}

	entries, err := schemasync.Status(context.Background(), cfg.DatabaseURL, options(cfg, logger))
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	out := &schemasync.OutputOptions{Writer: cmd.OutOrStdout(), Format: f.format}
	if err := schemasync.FormatHistory(cfg.Resource, entries, out); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
