// Package config loads engine settings with Viper: defaults, an optional YAML
// file, and SCHEMASYNC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/ddl"
	"github.com/tordrt/schemasync/internal/ledger"
	"github.com/tordrt/schemasync/internal/logging"
	"github.com/tordrt/schemasync/internal/schema"
)

const (
	configFileName = "schemasync"
	configFileType = "yaml"
	envPrefix      = "SCHEMASYNC"

	KeyEnabled         = "enabled"
	KeyDetectMissing   = "detect_missing"
	KeyResource        = "resource"
	KeyDatabaseURL     = "database.url"
	KeyMaxOpenConns    = "database.max_open_conns"
	KeyMaxIdleConns    = "database.max_idle_conns"
	KeyConnMaxLifetime = "database.conn_max_lifetime"
	KeyConnectTimeout  = "database.connect_timeout"
	KeyEngine          = "ddl.engine"
	KeyCharset         = "ddl.charset"
	KeyCollation       = "ddl.collation"
	KeyLedgerTable     = "ledger.table"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeySchema          = "schema"
	KeySchemaFile      = "schema_file"

	defaultResource = "schemasync"
)

// Config is the resolved engine configuration
type Config struct {
	Enabled       bool
	DetectMissing bool
	Resource      string
	DatabaseURL   string
	Pool          db.PoolOptions
	DDL           ddl.Options
	LedgerTable   string
	LogLevel      logging.Level
	LogFormat     string
	// Schema is nil when neither schema nor schema_file is set
	Schema *schema.Definition
}

// New returns a Viper instance with defaults and environment binding applied
func New() *viper.Viper {
	v := viper.New()

	pool := db.DefaultPoolOptions()
	opts := ddl.DefaultOptions()

	v.SetDefault(KeyEnabled, true)
	v.SetDefault(KeyDetectMissing, true)
	v.SetDefault(KeyResource, defaultResource)
	v.SetDefault(KeyMaxOpenConns, pool.MaxOpenConns)
	v.SetDefault(KeyMaxIdleConns, pool.MaxIdleConns)
	v.SetDefault(KeyConnMaxLifetime, pool.ConnMaxLifetime)
	v.SetDefault(KeyConnectTimeout, pool.ConnectTimeout)
	v.SetDefault(KeyEngine, opts.Engine)
	v.SetDefault(KeyCharset, opts.Charset)
	v.SetDefault(KeyCollation, opts.Collation)
	v.SetDefault(KeyLedgerTable, ledger.DefaultTable)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatText)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path into v and resolves the configuration.
// With an empty path, schemasync.yaml is looked up in the working directory
// and a missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return Decode(v)
}

// Decode resolves a configuration from v without reading any file
func Decode(v *viper.Viper) (*Config, error) {
	level, err := logging.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Enabled:       v.GetBool(KeyEnabled),
		DetectMissing: v.GetBool(KeyDetectMissing),
		Resource:      v.GetString(KeyResource),
		DatabaseURL:   v.GetString(KeyDatabaseURL),
		Pool: db.PoolOptions{
			MaxOpenConns:    v.GetInt(KeyMaxOpenConns),
			MaxIdleConns:    v.GetInt(KeyMaxIdleConns),
			ConnMaxLifetime: v.GetDuration(KeyConnMaxLifetime),
			ConnectTimeout:  v.GetDuration(KeyConnectTimeout),
		},
		DDL: ddl.Options{
			Engine:    v.GetString(KeyEngine),
			Charset:   v.GetString(KeyCharset),
			Collation: v.GetString(KeyCollation),
		},
		LedgerTable: v.GetString(KeyLedgerTable),
		LogLevel:    level,
		LogFormat:   v.GetString(KeyLogFormat),
	}
	if cfg.Resource == "" {
		return nil, fmt.Errorf("%s must not be empty", KeyResource)
	}
	if cfg.Pool.ConnectTimeout < 0 || cfg.Pool.ConnMaxLifetime < 0 {
		return nil, fmt.Errorf("database durations must not be negative")
	}

	cfg.Schema, err = decodeSchema(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeSchema reads the inline schema, or else the schema file. A relative
// schema_file is resolved against the directory of the config file. Declaring
// both is an error.
func decodeSchema(v *viper.Viper) (*schema.Definition, error) {
	path := v.GetString(KeySchemaFile)

	if v.IsSet(KeySchema) {
		if path != "" {
			return nil, fmt.Errorf("%s and %s are mutually exclusive", KeySchema, KeySchemaFile)
		}
		data, err := inlineSchema(v)
		if err != nil {
			return nil, err
		}
		return schema.Parse(data)
	}

	if path == "" {
		return nil, nil
	}
	if !filepath.IsAbs(path) && v.ConfigFileUsed() != "" {
		path = filepath.Join(filepath.Dir(v.ConfigFileUsed()), path)
	}
	return schema.Load(path)
}

// inlineSchema returns the schema block as YAML. The block is taken verbatim
// from a YAML or JSON config file, because viper's decoded map turns an
// unquoted version such as 1.10 into a float.
func inlineSchema(v *viper.Viper) ([]byte, error) {
	if file := v.ConfigFileUsed(); file != "" {
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml", ".json":
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			var doc struct {
				Schema yaml.Node `yaml:"schema"`
			}
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("failed to decode inline schema: %w", err)
			}
			if doc.Schema.Kind != 0 {
				return yaml.Marshal(&doc.Schema)
			}
		}
	}

	data, err := yaml.Marshal(v.Get(KeySchema))
	if err != nil {
		return nil, fmt.Errorf("failed to encode inline schema: %w", err)
	}
	return data, nil
}
