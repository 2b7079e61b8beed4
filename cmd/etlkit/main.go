package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"etlkit/internal/infrastructure"
	"etlkit/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "etlkit.yaml", "path to the pipeline config file")
	exportPath := flag.String("export", "", "also export the final dataset to this path (csv or xlsx by extension)")
	tracing := flag.Bool("trace", false, "emit OpenTelemetry spans to stdout")
	demo := flag.Bool("demo", false, "generate a sample sales dataset and run the pipeline over it")
	flag.Parse()

	var err error
	if *demo {
		err = runDemo(*tracing)
	} else {
		err = run(*configPath, *exportPath, *tracing)
	}
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
	infrastructure.CloseLogFile()
}

func run(configPath, exportPath string, tracing bool) error {
	opts := []pipeline.Option{}

	var providers *infrastructure.TracingProviders
	if tracing {
		var err error
		providers, err = infrastructure.InitializeTracing(
			&infrastructure.TracingConfig{Enabled: true, Exporter: "stdout"}, slog.Default())
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithTracer(providers.GetTracer()))
	}

	p, cfg, err := pipeline.NewFromConfigFile(configPath, opts...)
	if err != nil {
		return err
	}

	ctx := infrastructure.ContextWithTraceID(context.Background())
	logger := infrastructure.GetLogger()
	logger.InfoContext(ctx, "starting pipeline run",
		slog.String("run_id", p.RunID()),
		slog.String("config", configPath))

	if providers != nil {
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				logger.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	if _, err := p.RunFullPipeline(ctx, cfg.Source, &cfg.Transform, &cfg.Report); err != nil {
		return err
	}

	if exportPath != "" {
		destType := "csv"
		if filepath.Ext(exportPath) == ".xlsx" {
			destType = "excel"
		}
		if err := p.Export(destType, exportPath); err != nil {
			return err
		}
		logger.InfoContext(ctx, "dataset exported", slog.String("path", exportPath))
	}

	summary := p.Summary()
	logger.InfoContext(ctx, "pipeline run finished",
		slog.String("run_id", summary.RunID),
		slog.Int("rows", summary.Rows),
		slog.Int("columns", summary.Cols))

	fmt.Printf("run %s finished: %d rows, %d columns\n", summary.RunID, summary.Rows, summary.Cols)
	for _, id := range []pipeline.StageID{pipeline.StageExtract, pipeline.StageTransform, pipeline.StageReport} {
		fmt.Printf("  %-9s %s\n", id, summary.Stages[id])
	}
	return nil
}
