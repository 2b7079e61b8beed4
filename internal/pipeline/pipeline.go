// Package pipeline orchestrates the extract, transform and report stages
// over a single dataset run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"etlkit/internal/config"
	"etlkit/internal/dataset"
	apperrors "etlkit/internal/errors"
	"etlkit/internal/infrastructure"
	"etlkit/internal/ingest"
	"etlkit/internal/report"
	"etlkit/internal/transform"
)

// CalculatedColumn is a derived column appended during the transform stage.
type CalculatedColumn struct {
	Name string
	Fn   transform.RowFunc
}

// RunSummary describes the state of a run after its stages executed.
type RunSummary struct {
	RunID   string                  `json:"run_id"`
	Rows    int                     `json:"rows"`
	Cols    int                     `json:"columns"`
	Columns []string                `json:"column_names"`
	Missing map[string]int          `json:"missing_values"`
	Stages  map[StageID]StageStatus `json:"stages"`
}

// Pipeline runs the three stages in order against one dataset. Extract is
// mandatory and must run first; transform and report are optional. Each
// stage runs at most once per Pipeline.
type Pipeline struct {
	runID  string
	loader *ingest.Loader
	data   *dataset.Dataset
	logger *slog.Logger
	tracer trace.Tracer
	stages map[StageID]*StageState
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer attaches a tracer so each stage is recorded as a span.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// New creates a Pipeline with all stages pending.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		runID:  uuid.New().String(),
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(infrastructure.ServiceName),
		stages: make(map[StageID]*StageState, len(stageOrder)),
	}
	for _, id := range stageOrder {
		p.stages[id] = NewStageState(id)
	}
	for _, opt := range opts {
		opt(p)
	}
	p.loader = ingest.NewLoader(p.logger)
	return p
}

// NewFromConfigFile loads a config file and returns a Pipeline wired with a
// logger built from its logging section, plus the parsed config for the
// stage calls.
func NewFromConfigFile(path string, opts ...Option) (*Pipeline, *config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(opts...), cfg, nil
}

// RunID returns the unique identifier of this run.
func (p *Pipeline) RunID() string {
	return p.runID
}

// StageState returns the state record of a stage.
func (p *Pipeline) StageState(id StageID) *StageState {
	return p.stages[id]
}

// Data returns a copy of the current dataset. It fails with a state error
// if the extract stage has not produced data yet.
func (p *Pipeline) Data() (*dataset.Dataset, error) {
	if p.data == nil {
		return nil, apperrors.NewState("pipeline.Data", "no dataset loaded, run Extract first")
	}
	return p.data.Copy(), nil
}

func (p *Pipeline) begin(ctx context.Context, id StageID) (context.Context, *StageState, trace.Span, error) {
	state := p.stages[id]
	if state.Status != StageStatusPending {
		return ctx, nil, nil, apperrors.NewState("pipeline."+string(id),
			fmt.Sprintf("stage %s already ran with status %s", id, state.Status))
	}
	ctx = infrastructure.WithTraceID(ctx, p.runID)
	ctx, span := p.tracer.Start(ctx, "pipeline."+string(id))
	state.Start()
	p.logger.InfoContext(ctx, "stage started", slog.String("stage", string(id)))
	return ctx, state, span, nil
}

func (p *Pipeline) finish(ctx context.Context, state *StageState, span trace.Span, err error) error {
	defer span.End()
	if err != nil {
		state.Fail(err)
		span.RecordError(err)
		p.logger.ErrorContext(ctx, "stage failed",
			slog.String("stage", string(state.ID)),
			slog.String("error", err.Error()))
		return err
	}
	state.Complete()
	p.logger.InfoContext(ctx, "stage completed",
		slog.String("stage", string(state.ID)),
		slog.Duration("duration", state.Duration()))
	return nil
}

// Extract loads the source described by src and installs it as the run's
// dataset.
func (p *Pipeline) Extract(ctx context.Context, src config.SourceConfig) error {
	ctx, state, span, err := p.begin(ctx, StageExtract)
	if err != nil {
		return err
	}
	ds, err := p.loader.Load(ctx, src)
	if err == nil {
		p.data = ds
	}
	return p.finish(ctx, state, span, err)
}

// Transform applies the configured cleaning steps plus any calculated
// columns to the loaded dataset.
func (p *Pipeline) Transform(ctx context.Context, cfg config.TransformConfig, calculated ...CalculatedColumn) error {
	if p.data == nil {
		return apperrors.NewState("pipeline.Transform", "no dataset loaded, run Extract first")
	}
	ctx, state, span, err := p.begin(ctx, StageTransform)
	if err != nil {
		return err
	}
	tr := transform.New(p.logger).SetDataset(p.data).ApplyConfig(cfg)
	for _, col := range calculated {
		tr.AddColumn(col.Name, col.Fn)
	}
	ds, err := tr.Dataset()
	if err == nil {
		p.data = ds
	}
	return p.finish(ctx, state, span, err)
}

// GenerateReport renders the configured charts and the HTML report for the
// loaded dataset. The rendered file paths are stored on the returned Result.
func (p *Pipeline) GenerateReport(ctx context.Context, cfg config.ReportConfig) (*report.Result, error) {
	if p.data == nil {
		return nil, apperrors.NewState("pipeline.GenerateReport", "no dataset loaded, run Extract first")
	}
	ctx, state, span, err := p.begin(ctx, StageReport)
	if err != nil {
		return nil, err
	}
	gen, err := report.NewGenerator(cfg, p.logger)
	if err != nil {
		return nil, p.finish(ctx, state, span, err)
	}
	res, err := gen.Generate(ctx, p.data)
	if err != nil {
		return nil, p.finish(ctx, state, span, err)
	}
	return res, p.finish(ctx, state, span, nil)
}

// RunFullPipeline executes extract, transform and report in order and
// short-circuits on the first failure. A nil transform or report config
// skips that stage. The final dataset is returned on success.
func (p *Pipeline) RunFullPipeline(ctx context.Context, src config.SourceConfig, tcfg *config.TransformConfig, rcfg *config.ReportConfig) (*dataset.Dataset, error) {
	if err := p.Extract(ctx, src); err != nil {
		return nil, err
	}
	if tcfg != nil {
		if err := p.Transform(ctx, *tcfg); err != nil {
			return nil, err
		}
	} else {
		p.stages[StageTransform].Skip("no transform config")
	}
	if rcfg != nil {
		if _, err := p.GenerateReport(ctx, *rcfg); err != nil {
			return nil, err
		}
	} else {
		p.stages[StageReport].Skip("no report config")
	}
	return p.Data()
}

// Export writes the current dataset to path in the given format. Supported
// formats are "csv" and "excel".
func (p *Pipeline) Export(destType, path string) error {
	if p.data == nil {
		return apperrors.NewState("pipeline.Export", "no dataset loaded, run Extract first")
	}
	switch strings.ToLower(destType) {
	case "csv":
		return report.WriteCSVFile(path, p.data)
	case "excel":
		return report.WriteExcelFile(path, p.data)
	default:
		return apperrors.NewConfig("pipeline.Export",
			fmt.Sprintf("unsupported export type %q, expected csv or excel", destType), nil)
	}
}

// Summary reports the run id, dataset shape and per-stage status.
func (p *Pipeline) Summary() RunSummary {
	s := RunSummary{
		RunID:  p.runID,
		Stages: make(map[StageID]StageStatus, len(p.stages)),
	}
	for id, state := range p.stages {
		s.Stages[id] = state.Status
	}
	if p.data != nil {
		s.Rows = p.data.NumRows()
		s.Cols = p.data.NumCols()
		s.Columns = p.data.Columns()
		s.Missing = p.data.MissingCounts()
	}
	return s
}
