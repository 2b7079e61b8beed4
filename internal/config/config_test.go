package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "etlkit/internal/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FullDocument(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  output: console
source:
  type: csv
  path: data/sample_sales.csv
  nan_values: ["", "NA"]
transform:
  remove_duplicates: true
  handle_missing: drop
  type_conversions:
    quantity: int
    unit_price: float
report:
  output_dir: out/reports
  title: Sales Analytics Dashboard
  image_format: svg
  charts:
    - type: bar
      x: category
      y: total_amount
      title: Revenue by Category
    - type: heatmap
      title: Correlation Analysis
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "csv", cfg.Source.Type)
	assert.Equal(t, []string{"", "NA"}, cfg.Source.NaNValues)
	assert.True(t, cfg.Transform.RemoveDuplicates)
	assert.Equal(t, "drop", cfg.Transform.HandleMissing)
	assert.Equal(t, "int", cfg.Transform.TypeConversions["quantity"])
	assert.Equal(t, "out/reports", cfg.Report.OutputDir)
	assert.Equal(t, "svg", cfg.Report.ImageFormat)
	require.Len(t, cfg.Report.Charts, 2)
	assert.Equal(t, "bar", cfg.Report.Charts[0].Type)
	assert.Equal(t, "heatmap", cfg.Report.Charts[1].Type)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
source:
  type: csv
  path: data.csv
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "reports", cfg.Report.OutputDir)
	assert.Equal(t, "png", cfg.Report.ImageFormat)
	assert.Equal(t, 100, cfg.Report.PreviewRows)
	assert.True(t, cfg.Report.WantSummary())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "source: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown missing-value strategy",
			content: `
transform:
  handle_missing: interpolate
`,
		},
		{
			name: "unknown chart type",
			content: `
report:
  charts:
    - type: scatter3d
      x: a
      y: b
`,
		},
		{
			name: "bar chart without axes",
			content: `
report:
  charts:
    - type: bar
`,
		},
		{
			name: "unknown type conversion kind",
			content: `
transform:
  type_conversions:
    quantity: decimal
`,
		},
		{
			name: "unknown image format",
			content: `
report:
  image_format: bmp
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.True(t, apperrors.IsConfig(err), "expected CONFIG_ERROR, got %v", err)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: info
report:
  title: File Title
`)

	t.Setenv("ETLKIT_LOGGING_LEVEL", "error")
	t.Setenv("ETLKIT_REPORT_TITLE", "Env Title")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "Env Title", cfg.Report.Title)
}

func TestHeatmapNeedsNoAxes(t *testing.T) {
	cfg := Default()
	cfg.Report.Charts = []ChartSpec{{Type: "heatmap", Title: "Correlations"}}
	assert.NoError(t, cfg.Validate())
}
