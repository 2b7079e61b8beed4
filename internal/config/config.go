package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "etlkit/internal/errors"
)

// Config is the complete pipeline configuration document.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Transform TransformConfig `yaml:"transform" envconfig:"TRANSFORM"`
	Report    ReportConfig    `yaml:"report" envconfig:"REPORT"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"omitempty,oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// SourceConfig describes one data source. Path holds a file path for flat
// file sources and a DSN for database sources.
type SourceConfig struct {
	Type      string   `yaml:"type" envconfig:"TYPE"`
	Path      string   `yaml:"path" envconfig:"PATH"`
	Query     string   `yaml:"query" envconfig:"QUERY"`
	Sheet     string   `yaml:"sheet" envconfig:"SHEET"`
	Delimiter string   `yaml:"delimiter" envconfig:"DELIMITER"`
	NaNValues []string `yaml:"nan_values" envconfig:"NAN_VALUES"`
}

// TransformConfig holds the declarative transform flags. Calculated columns
// take Go closures and are therefore passed programmatically, not here.
type TransformConfig struct {
	RemoveDuplicates bool              `yaml:"remove_duplicates" envconfig:"REMOVE_DUPLICATES"`
	HandleMissing    string            `yaml:"handle_missing" envconfig:"HANDLE_MISSING" validate:"omitempty,oneof=drop fill ffill bfill mean median"`
	FillValue        string            `yaml:"fill_value" envconfig:"FILL_VALUE"`
	Columns          []string          `yaml:"columns" envconfig:"COLUMNS"`
	TypeConversions  map[string]string `yaml:"type_conversions" validate:"omitempty,dive,oneof=string int float bool time"`
	Rename           map[string]string `yaml:"rename"`
}

// ChartSpec declaratively describes one chart to render.
type ChartSpec struct {
	Type  string `yaml:"type" envconfig:"TYPE" validate:"required,oneof=bar line pie heatmap"`
	X     string `yaml:"x" envconfig:"X" validate:"required_unless=Type heatmap"`
	Y     string `yaml:"y" envconfig:"Y" validate:"required_unless=Type heatmap"`
	Title string `yaml:"title" envconfig:"TITLE"`
}

// ReportConfig describes the report output.
type ReportConfig struct {
	OutputDir      string      `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	Title          string      `yaml:"title" envconfig:"TITLE"`
	ImageFormat    string      `yaml:"image_format" envconfig:"IMAGE_FORMAT" validate:"omitempty,oneof=png svg"`
	IncludeSummary *bool       `yaml:"include_summary" envconfig:"INCLUDE_SUMMARY"`
	PreviewRows    int         `yaml:"preview_rows" envconfig:"PREVIEW_ROWS" validate:"omitempty,min=1"`
	Charts         []ChartSpec `yaml:"charts" validate:"omitempty,dive"`
}

// WantSummary reports whether the report should include the summary
// statistics table. Defaults to true when unset.
func (r ReportConfig) WantSummary() bool {
	return r.IncludeSummary == nil || *r.IncludeSummary
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns a configuration with the documented defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from a YAML file, applies ETLKIT_* environment
// overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfig("config.Load", fmt.Sprintf("read config file %s", path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.NewConfig("config.Load", "parse config file", err)
	}

	// Environment variables take precedence over the file.
	if err := envconfig.Process("ETLKIT", &cfg); err != nil {
		return nil, apperrors.NewConfig("config.Load", "process environment overrides", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the closed enumerations of the document.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfig("config.Validate", "invalid configuration", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/etlkit.log"
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "reports"
	}
	if c.Report.Title == "" {
		c.Report.Title = "Data Analytics Report"
	}
	if c.Report.ImageFormat == "" {
		c.Report.ImageFormat = "png"
	}
	if c.Report.PreviewRows == 0 {
		c.Report.PreviewRows = 100
	}
}
