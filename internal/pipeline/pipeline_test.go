package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etlkit/internal/config"
	apperrors "etlkit/internal/errors"
	"etlkit/internal/shared/testutil"
	"etlkit/internal/transform"
)

const salesCSV = `category,quantity,unit_price
Electronics,2,199.99
Clothing,5,29.50
Electronics,1,899.00
Clothing,5,29.50
Groceries,10,3.25
`

func writeSalesCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0644))
	return path
}

func TestPipeline_RunFullPipeline(t *testing.T) {
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}
	tcfg := &config.TransformConfig{RemoveDuplicates: true}
	rcfg := &config.ReportConfig{
		OutputDir: t.TempDir(),
		Title:     "Sales Report",
		Charts: []config.ChartSpec{
			{Type: "bar", X: "category", Y: "quantity"},
		},
	}

	p := New()
	ds, err := p.RunFullPipeline(context.Background(), src, tcfg, rcfg)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.NumRows(), "duplicate row should be removed")

	for _, id := range stageOrder {
		assert.Equal(t, StageStatusCompleted, p.StageState(id).Status, string(id))
	}

	entries, err := os.ReadDir(rcfg.OutputDir)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2, "expected chart and html report")
}

func TestPipeline_RunFullPipeline_SkipsOptionalStages(t *testing.T) {
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}

	p := New()
	ds, err := p.RunFullPipeline(context.Background(), src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.NumRows())
	assert.Equal(t, StageStatusCompleted, p.StageState(StageExtract).Status)
	assert.Equal(t, StageStatusSkipped, p.StageState(StageTransform).Status)
	assert.Equal(t, StageStatusSkipped, p.StageState(StageReport).Status)
}

func TestPipeline_RunFullPipeline_UnsupportedSource(t *testing.T) {
	src := config.SourceConfig{Type: "xml", Path: "data.xml"}

	p := New()
	_, err := p.RunFullPipeline(context.Background(), src, &config.TransformConfig{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsSource(err))
	assert.Equal(t, StageStatusFailed, p.StageState(StageExtract).Status)
	assert.Equal(t, StageStatusPending, p.StageState(StageTransform).Status)
	assert.Equal(t, StageStatusPending, p.StageState(StageReport).Status)
}

func TestPipeline_DataBeforeExtract(t *testing.T) {
	p := New()
	_, err := p.Data()
	require.Error(t, err)
	assert.True(t, apperrors.IsState(err))
}

func TestPipeline_TransformBeforeExtract(t *testing.T) {
	p := New()
	err := p.Transform(context.Background(), config.TransformConfig{RemoveDuplicates: true})
	require.Error(t, err)
	assert.True(t, apperrors.IsState(err))
	assert.Equal(t, StageStatusPending, p.StageState(StageTransform).Status)
}

func TestPipeline_ReportBeforeExtract(t *testing.T) {
	p := New()
	_, err := p.GenerateReport(context.Background(), config.ReportConfig{OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, apperrors.IsState(err))
}

func TestPipeline_StageRunsAtMostOnce(t *testing.T) {
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}

	p := New()
	require.NoError(t, p.Extract(context.Background(), src))

	err := p.Extract(context.Background(), src)
	require.Error(t, err)
	assert.True(t, apperrors.IsState(err))
	assert.Equal(t, StageStatusCompleted, p.StageState(StageExtract).Status)
}

func TestPipeline_CalculatedColumn(t *testing.T) {
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}

	p := New()
	require.NoError(t, p.Extract(context.Background(), src))
	err := p.Transform(context.Background(), config.TransformConfig{},
		CalculatedColumn{
			Name: "total",
			Fn: func(r transform.Row) interface{} {
				return r.Float("quantity") * r.Float("unit_price")
			},
		})
	require.NoError(t, err)

	ds, err := p.Data()
	require.NoError(t, err)
	totals, err := ds.Floats("total")
	require.NoError(t, err)
	assert.InDelta(t, 399.98, totals[0], 1e-9)
	assert.InDelta(t, 147.50, totals[1], 1e-9)
}

func TestPipeline_Export(t *testing.T) {
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}

	p := New()
	require.NoError(t, p.Extract(context.Background(), src))

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, p.Export("csv", csvPath))
	assert.FileExists(t, csvPath)

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(t, p.Export("excel", xlsxPath))
	assert.FileExists(t, xlsxPath)

	err := p.Export("parquet", filepath.Join(dir, "out.parquet"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
}

func TestPipeline_ExportBeforeExtract(t *testing.T) {
	p := New()
	err := p.Export("csv", filepath.Join(t.TempDir(), "out.csv"))
	require.Error(t, err)
	assert.True(t, apperrors.IsState(err))
}

func TestPipeline_Summary(t *testing.T) {
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}

	p := New()
	require.NoError(t, p.Extract(context.Background(), src))

	s := p.Summary()
	assert.Equal(t, p.RunID(), s.RunID)
	assert.Equal(t, 5, s.Rows)
	assert.Equal(t, 3, s.Cols)
	assert.Equal(t, []string{"category", "quantity", "unit_price"}, s.Columns)
	assert.Equal(t, StageStatusCompleted, s.Stages[StageExtract])
	assert.Equal(t, StageStatusPending, s.Stages[StageTransform])
}

func TestPipeline_LogsStageLifecycle(t *testing.T) {
	logger, captured := testutil.NewTestLogger(t)
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}

	p := New(WithLogger(logger))
	require.NoError(t, p.Extract(context.Background(), src))
	assert.True(t, captured.ContainsMessage("stage started"))
	assert.True(t, captured.ContainsMessage("stage completed"))
	assert.True(t, captured.ContainsAttr("stage", "extract"))

	src.Type = "xml"
	p2 := New(WithLogger(logger))
	require.Error(t, p2.Extract(context.Background(), src))
	assert.True(t, captured.ContainsMessage("stage failed"))
}

func TestPipeline_DataReturnsCopy(t *testing.T) {
	src := config.SourceConfig{Type: "csv", Path: writeSalesCSV(t)}

	p := New()
	require.NoError(t, p.Extract(context.Background(), src))

	first, err := p.Data()
	require.NoError(t, err)
	second, err := p.Data()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, first.Equal(second))
}

func TestNewFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "etlkit.yaml")
	cfgYAML := `logging:
  level: info
  output: console
source:
  type: csv
  path: ` + writeSalesCSV(t) + `
report:
  output_dir: ` + filepath.Join(dir, "reports") + `
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0644))

	p, cfg, err := NewFromConfigFile(cfgPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "csv", cfg.Source.Type)

	require.NoError(t, p.Extract(context.Background(), cfg.Source))
	ds, err := p.Data()
	require.NoError(t, err)
	assert.Equal(t, 5, ds.NumRows())
}

func TestNewFromConfigFile_Missing(t *testing.T) {
	_, _, err := NewFromConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
}
