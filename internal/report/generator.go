// Package report turns a Dataset into deliverables: summary statistics,
// chart images (PNG or SVG), an HTML report document and CSV/Excel exports.
// Everything is written beneath a single output directory.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"etlkit/internal/config"
	"etlkit/internal/dataset"
	apperrors "etlkit/internal/errors"
)

// Generator renders reports into its output directory.
type Generator struct {
	cfg    config.ReportConfig
	logger *slog.Logger
	now    func() time.Time
}

// Result lists the files one report run produced.
type Result struct {
	HTMLPath   string
	ChartPaths []string
}

// NewGenerator creates a Generator, creating the output directory when
// needed. An unwritable directory is an IO error.
func NewGenerator(cfg config.ReportConfig, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "reports"
	}
	if cfg.ImageFormat == "" {
		cfg.ImageFormat = "png"
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 100
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, apperrors.NewIO("report.NewGenerator",
			fmt.Sprintf("create output directory %s", cfg.OutputDir), err)
	}
	return &Generator{cfg: cfg, logger: logger, now: time.Now}, nil
}

// OutputDir returns the directory reports are written to.
func (g *Generator) OutputDir() string {
	return g.cfg.OutputDir
}

// Generate renders every configured chart and assembles the HTML report.
func (g *Generator) Generate(ctx context.Context, ds *dataset.Dataset) (*Result, error) {
	if ds == nil {
		return nil, apperrors.NewState("report.Generate", "no dataset provided")
	}

	result := &Result{}
	for _, spec := range g.cfg.Charts {
		path, err := g.RenderChart(ctx, ds, spec)
		if err != nil {
			return nil, err
		}
		result.ChartPaths = append(result.ChartPaths, path)
	}

	htmlPath, err := g.WriteHTML(ctx, ds, result.ChartPaths)
	if err != nil {
		return nil, err
	}
	result.HTMLPath = htmlPath

	g.logger.InfoContext(ctx, "report generated",
		slog.String("html", result.HTMLPath),
		slog.Int("charts", len(result.ChartPaths)))
	return result, nil
}

// timestamp renders the instant used in output filenames.
func (g *Generator) timestamp() string {
	return g.now().Format("20060102_150405")
}

// outputPath joins a filename onto the output directory.
func (g *Generator) outputPath(filename string) string {
	return filepath.Join(g.cfg.OutputDir, filename)
}
