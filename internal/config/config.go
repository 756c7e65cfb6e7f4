// =============================================================================
// sheet2sql - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration.
//
// CONFIGURATION SOURCES:
//   1. Main Config (config.yaml + SHEET2SQL_* env vars + CLI flags), read
//      through viper. The file is optional; defaults cover every key.
//   2. Table Specs (tables/*.yaml): one file per destination table, read
//      with yaml.v3. Each file declares the source file, the column order
//      and how every value is rendered.
//
// EXAMPLE TABLE SPEC:
//
//   table: thickness_measurement
//   label: 肉厚測定データ
//   source: 肉厚測定データ_デモ_converted.csv
//   order: 1
//   columns:
//     - name: 機器ID
//     - name: 設計肉厚(mm)
//       kind: numeric
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/sheet2sql/internal/types"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// EnvPrefix is the prefix for environment variable overrides (SHEET2SQL_OUTPUT_DIR, ...).
const EnvPrefix = "SHEET2SQL"

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is where relative table sources and spreadsheets are looked up.
	// Default: "./input"
	InputDir string `mapstructure:"input_dir"`

	// OutputDir receives the generated migration file and converted CSVs.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir"`

	// TablesDir contains one YAML table spec per destination table.
	// Default: "./tables"
	TablesDir string `mapstructure:"tables_dir"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the migration file name.
	// Placeholders: {date}, {timestamp}, {uuid}, {name}
	// Default: "{date}_{name}.sql"
	OutputNameFormat string `mapstructure:"output_name_format"`

	// OutputName fills the {name} placeholder.
	// Default: "insert_data"
	OutputName string `mapstructure:"output_name"`

	// Preamble lines are written as SQL comments at the top of the file.
	Preamble []string `mapstructure:"preamble"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "text" (colored, human readable) or "json".
	// Default: "text"
	LogFormat string `mapstructure:"log_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// ContinueOnError keeps processing other tables when one fails.
	// Default: true
	ContinueOnError bool `mapstructure:"continue_on_error"`

	// Verify executes the generated statements against an in-memory
	// SQLite database before writing the file.
	// Default: false
	Verify bool `mapstructure:"verify"`
}

// SetDefaults registers default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("tables_dir", "./tables")
	v.SetDefault("output_name_format", "{date}_{name}.sql")
	v.SetDefault("output_name", "insert_data")
	v.SetDefault("preamble", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("continue_on_error", true)
	v.SetDefault("verify", false)
}

// NewViper returns a viper instance wired for SHEET2SQL_* environment
// variables and, if configPath is not empty, the given config file.
//
// A missing config file is not an error: every key has a default.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		return v, nil
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return v, nil
}

// LoadMainConfig decodes the main configuration from viper.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if decoding fails or a value is invalid.
func LoadMainConfig(v *viper.Viper) (*MainConfig, error) {
	var config MainConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults covers values explicitly set to "" in the file.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.TablesDir == "" {
		config.TablesDir = "./tables"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{date}_{name}.sql"
	}
	if config.OutputName == "" {
		config.OutputName = "insert_data"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}

func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", config.LogFormat)
	}

	return nil
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing delimited text sources.
type CSVSettings struct {
	// Delimiter separates fields. Accepts "," "|" ";" "\t" or the names
	// "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of header rows. Multiple header rows are
	// merged column-wise with a space.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-indexed row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row"`

	// Encoding of the file: "UTF-8", "Shift_JIS", "EUC-JP", "ISO-2022-JP",
	// "ISO-8859-1", "Windows-1252". A UTF-8 BOM is always stripped.
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// ApplyDefaults fills unset CSV settings.
func (s *CSVSettings) ApplyDefaults() {
	if s.Delimiter == "" {
		s.Delimiter = ","
	}
	if s.HeaderRows == 0 {
		s.HeaderRows = 1
	}
	if s.DataStartRow == 0 {
		s.DataStartRow = s.HeaderRows + 1
	}
	if s.Encoding == "" {
		s.Encoding = "UTF-8"
	}
}

// =============================================================================
// TABLE CONFIGURATION STRUCTURE
// =============================================================================

// TableConfig is one table spec file.
type TableConfig struct {
	// Table is the destination table name.
	Table string `yaml:"table"`

	// Label is the banner comment above the table's statements.
	// Default: the table name
	Label string `yaml:"label"`

	// Source is the CSV or XLSX file providing the rows. Relative paths are
	// resolved against the main config's InputDir.
	Source string `yaml:"source"`

	// Sheet selects the worksheet for XLSX sources. Default: first sheet.
	Sheet string `yaml:"sheet,omitempty"`

	// Order positions the table in the output file (ascending).
	Order int `yaml:"order"`

	// EscapeQuotes doubles single quotes inside text values.
	// Default: false. Values are embedded as-is.
	EscapeQuotes bool `yaml:"escape_quotes"`

	// Layout is "expanded" (default) or "compact".
	Layout string `yaml:"layout,omitempty"`

	// Where is an optional expr filter; rows for which it is false are skipped.
	// The row is available as `row`, e.g. `row["判定結果"] != "合格"`.
	Where string `yaml:"where,omitempty"`

	// CSVSettings applies to delimited text sources.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Columns in destination order.
	Columns []ColumnConfig `yaml:"columns"`

	// SourceFile is the path of the YAML file this config was read from.
	SourceFile string `yaml:"-"`
}

// ColumnConfig declares one destination column.
type ColumnConfig struct {
	// Name is the destination column name.
	Name string `yaml:"name"`

	// Field is the source header. Default: Name.
	Field string `yaml:"field,omitempty"`

	// Kind is "text" (default) or "numeric".
	Kind string `yaml:"kind,omitempty"`

	// NullOnEmpty renders NULL for empty values.
	NullOnEmpty bool `yaml:"null_on_empty,omitempty"`

	// Transforms are applied in order before rendering.
	Transforms []TransformationAction `yaml:"transforms,omitempty"`
}

// TransformationAction defines a single transformation applied to a column value.
type TransformationAction struct {
	// Type is the transformation:
	//   - "trim", "uppercase", "lowercase"
	//   - "prepend_string", "append_string"   (Value)
	//   - "replace", "regex_replace"          (Find -> Value)
	//   - "pad_zeros_to_length"               (Value: length)
	//   - "remove_thousands_separator"
	//   - "format_number"                     (Value: decimal places)
	//   - "format_date"                       (Value: "input|output" Go layouts)
	//   - "lookup"                            (LookupTable)
	//   - "if_empty_use_default"              (Value)
	Type string `yaml:"type"`

	// Value is the parameter of the transformation.
	Value string `yaml:"value,omitempty"`

	// Find is used by "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// When is an optional expr condition; the action is skipped when false.
	// Available variables: `value` (current string) and `row` (the record).
	When string `yaml:"when,omitempty"`

	// LookupTable is used by "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// TABLE CONFIGURATION LOADING
// =============================================================================

// LoadTableConfigs loads every *.yaml / *.yml file in tablesDir.
//
// RETURNS:
//   - The table configs ordered by Order, then by file name.
//   - An error if the directory cannot be listed or any file cannot be parsed.
func LoadTableConfigs(tablesDir string) ([]*TableConfig, error) {
	files, err := filepath.Glob(filepath.Join(tablesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list table specs: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(tablesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list table specs: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	configs := make([]*TableConfig, 0, len(files))
	for _, file := range files {
		config, err := LoadTableConfig(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		configs = append(configs, config)
	}

	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].Order < configs[j].Order
	})

	return configs, nil
}

// LoadTableConfig loads a single table spec file.
func LoadTableConfig(filePath string) (*TableConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config TableConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	config.SourceFile = filePath
	applyTableConfigDefaults(&config)

	return &config, nil
}

func applyTableConfigDefaults(config *TableConfig) {
	config.CSVSettings.ApplyDefaults()

	for i := range config.Columns {
		if config.Columns[i].Field == "" {
			config.Columns[i].Field = config.Columns[i].Name
		}
	}
}

// ResolveSource returns the source path, joined with inputDir when relative.
func (c *TableConfig) ResolveSource(inputDir string) string {
	if c.Source == "" || filepath.IsAbs(c.Source) {
		return c.Source
	}
	return filepath.Join(inputDir, c.Source)
}

// ToSpec converts the file representation into the serializer's TableSpec.
// Only value kinds are checked here; structural invariants are checked by
// the validation package.
func (c *TableConfig) ToSpec() (types.TableSpec, error) {
	spec := types.TableSpec{
		Table:   strings.TrimSpace(c.Table),
		Label:   c.Label,
		Columns: make([]types.Column, len(c.Columns)),
	}

	for i, column := range c.Columns {
		kind, err := types.ParseValueKind(column.Kind)
		if err != nil {
			return types.TableSpec{}, fmt.Errorf("column %q: %w", column.Name, err)
		}
		spec.Columns[i] = types.Column{
			Name:        column.Name,
			Field:       column.Field,
			Kind:        kind,
			NullOnEmpty: column.NullOnEmpty,
		}
	}

	return spec, nil
}

// Name returns the table name, or the spec file name when the table is unset.
func (c *TableConfig) Name() string {
	if c.Table != "" {
		return c.Table
	}
	return filepath.Base(c.SourceFile)
}
