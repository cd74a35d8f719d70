package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/engine"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub001/pkg/mapping"
)

// JobConfig is one complete synchronization job: where records come from,
// where they go, how fields map, and how the pass behaves.
type JobConfig struct {
	Source      SourceConfig      `json:"source" yaml:"source"`
	Destination DestinationConfig `json:"destination" yaml:"destination"`
	Mappings    []MappingConfig   `json:"mappings" yaml:"mappings"`
	Sync        SyncConfig        `json:"sync" yaml:"sync"`
}

type SourceConfig struct {
	Type           string            `json:"type" yaml:"type"` // rest
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	DataPath       string            `json:"data_path" yaml:"data_path"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type DestinationConfig struct {
	Type   string       `json:"type" yaml:"type"` // grist, sqlite, sheets
	Grist  GristConfig  `json:"grist" yaml:"grist"`
	SQLite SQLiteConfig `json:"sqlite" yaml:"sqlite"`
	Sheets SheetsConfig `json:"sheets" yaml:"sheets"`
}

type GristConfig struct {
	ServerURL string `json:"server_url" yaml:"server_url"`
	DocID     string `json:"doc_id" yaml:"doc_id"`
	TableID   string `json:"table_id" yaml:"table_id"`
	APIKey    string `json:"api_key" yaml:"api_key"`
}

type SQLiteConfig struct {
	Path  string `json:"path" yaml:"path"`
	Table string `json:"table" yaml:"table"`
}

type SheetsConfig struct {
	SpreadsheetID   string `json:"spreadsheet_id" yaml:"spreadsheet_id"`
	SheetName       string `json:"sheet_name" yaml:"sheet_name"`
	CredentialsJSON string `json:"credentials_json" yaml:"credentials_json"`
}

type MappingConfig struct {
	TargetField string `json:"target_field" yaml:"target_field"`
	SourcePath  string `json:"source_path" yaml:"source_path"`
	Enabled     *bool  `json:"enabled" yaml:"enabled"` // nil means enabled
}

type SyncConfig struct {
	Mode              string `json:"mode" yaml:"mode"`
	UniqueKeyField    string `json:"unique_key_field" yaml:"unique_key_field"`
	AutoCreateColumns *bool  `json:"auto_create_columns" yaml:"auto_create_columns"` // nil means true
	InferColumnTypes  bool   `json:"infer_column_types" yaml:"infer_column_types"`
	DryRun            bool   `json:"dry_run" yaml:"dry_run"`
	BatchSize         int    `json:"batch_size" yaml:"batch_size"`
	RetryAttempts     int    `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelaySeconds int    `json:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// Load reads a job file, substitutes ${VAR} environment references, and
// decodes it as YAML with a JSON fallback.
func Load(path string) (*JobConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	content := SubstituteEnvVars(string(data))

	var cfg JobConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		if jsonErr := json.Unmarshal([]byte(content), &cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to decode config file (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SubstituteEnvVars replaces ${NAME} references with the environment value.
// Unset variables expand to the empty string.
func SubstituteEnvVars(s string) string {
	return os.Expand(s, func(name string) string {
		return os.Getenv(name)
	})
}

func (c *JobConfig) Validate() error {
	switch c.Source.Type {
	case "rest":
		if c.Source.URL == "" {
			return fmt.Errorf("source: url is required for type rest")
		}
	case "":
		return fmt.Errorf("source: type is required")
	default:
		return fmt.Errorf("source: unknown type %q", c.Source.Type)
	}

	switch c.Destination.Type {
	case "grist":
		g := c.Destination.Grist
		if g.DocID == "" || g.TableID == "" {
			return fmt.Errorf("destination: grist needs doc_id and table_id")
		}
	case "sqlite":
		s := c.Destination.SQLite
		if s.Path == "" || s.Table == "" {
			return fmt.Errorf("destination: sqlite needs path and table")
		}
	case "sheets":
		if c.Destination.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("destination: sheets needs spreadsheet_id")
		}
	case "":
		return fmt.Errorf("destination: type is required")
	default:
		return fmt.Errorf("destination: unknown type %q", c.Destination.Type)
	}

	if len(c.Mappings) == 0 {
		return fmt.Errorf("mappings: at least one field mapping is required")
	}
	for i, m := range c.Mappings {
		if m.TargetField == "" || m.SourcePath == "" {
			return fmt.Errorf("mappings[%d]: target_field and source_path are required", i)
		}
	}

	switch strings.ToLower(c.Sync.Mode) {
	case "", "insert", "update", "upsert":
	default:
		return fmt.Errorf("sync: unknown mode %q", c.Sync.Mode)
	}
	return nil
}

// EngineConfig converts the sync section into the engine's configuration.
// Zero values fall through to the engine defaults.
func (c *JobConfig) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if c.Sync.Mode != "" {
		cfg.Mode = engine.Mode(strings.ToLower(c.Sync.Mode))
	}
	cfg.UniqueKeyField = c.Sync.UniqueKeyField
	if c.Sync.AutoCreateColumns != nil {
		cfg.AutoCreateColumns = *c.Sync.AutoCreateColumns
	}
	cfg.InferColumnTypes = c.Sync.InferColumnTypes
	cfg.DryRun = c.Sync.DryRun
	if c.Sync.BatchSize > 0 {
		cfg.BatchSize = c.Sync.BatchSize
	}
	if c.Sync.RetryAttempts > 0 {
		cfg.RetryAttempts = c.Sync.RetryAttempts
	}
	if c.Sync.RetryDelaySeconds > 0 {
		cfg.RetryDelay = time.Duration(c.Sync.RetryDelaySeconds) * time.Second
	}
	return cfg
}

// FieldMappings converts the mapping entries. Entries default to enabled.
func (c *JobConfig) FieldMappings() []mapping.FieldMapping {
	out := make([]mapping.FieldMapping, 0, len(c.Mappings))
	for _, m := range c.Mappings {
		enabled := m.Enabled == nil || *m.Enabled
		out = append(out, mapping.FieldMapping{
			TargetField: m.TargetField,
			SourcePath:  m.SourcePath,
			Enabled:     enabled,
		})
	}
	return out
}
