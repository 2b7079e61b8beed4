package report

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"etlkit/internal/dataset"
	apperrors "etlkit/internal/errors"
)

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        h1 { color: #333; }
        table { border-collapse: collapse; width: 100%; margin: 20px 0; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #4CAF50; color: white; }
        tr:nth-child(even) { background-color: #f2f2f2; }
        .summary { background-color: #f9f9f9; padding: 20px; margin: 20px 0; }
        .chart { margin: 20px 0; }
        .chart img, .chart object { max-width: 100%; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <p>Generated: {{.Generated}}</p>
{{- if .Stats}}
    <div class="summary">
        <h2>Summary Statistics</h2>
        <table>
            <tr><th>Column</th><th>Count</th><th>Mean</th><th>Std</th><th>Min</th><th>25%</th><th>Median</th><th>75%</th><th>Max</th></tr>
{{- range .Stats}}
            <tr><td>{{.Column}}</td><td>{{.Count}}</td><td>{{printf "%.4f" .Mean}}</td><td>{{printf "%.4f" .Std}}</td><td>{{printf "%.4f" .Min}}</td><td>{{printf "%.4f" .Q25}}</td><td>{{printf "%.4f" .Median}}</td><td>{{printf "%.4f" .Q75}}</td><td>{{printf "%.4f" .Max}}</td></tr>
{{- end}}
        </table>
    </div>
{{- end}}
{{- range .Charts}}
    <div class="chart"><img src="{{.}}" alt="chart"></div>
{{- end}}
    <h2>Data Preview (first {{.PreviewCount}} rows of {{.TotalRows}})</h2>
    <table>
        <tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{- range .Rows}}
        <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
    </table>
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Parse(reportTemplate))

type reportData struct {
	Title        string
	Generated    string
	Stats        []ColumnStats
	Charts       []string
	Header       []string
	Rows         [][]string
	PreviewCount int
	TotalRows    int
}

// WriteHTML assembles the HTML report document and returns its path. Chart
// paths outside the output directory are referenced by absolute path,
// inside it by basename.
func (g *Generator) WriteHTML(ctx context.Context, ds *dataset.Dataset, chartPaths []string) (string, error) {
	const op = "report.WriteHTML"

	if ds == nil {
		return "", apperrors.NewState(op, "no dataset provided")
	}

	preview := ds.Head(g.cfg.PreviewRows)
	records := preview.Records()

	data := reportData{
		Title:        g.cfg.Title,
		Generated:    g.now().Format(time.DateTime),
		Header:       records[0],
		Rows:         records[1:],
		PreviewCount: preview.NumRows(),
		TotalRows:    ds.NumRows(),
	}
	if data.Title == "" {
		data.Title = "Data Analytics Report"
	}
	if g.cfg.WantSummary() {
		data.Stats = SummaryStatistics(ds)
	}
	for _, p := range chartPaths {
		if strings.HasPrefix(p, g.cfg.OutputDir+string(filepath.Separator)) {
			p = filepath.Base(p)
		}
		data.Charts = append(data.Charts, p)
	}

	path := g.outputPath(fmt.Sprintf("report_%s.html", g.timestamp()))
	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.NewIO(op, fmt.Sprintf("create report file %s", path), err)
	}
	defer f.Close()

	if err := htmlTemplate.Execute(f, data); err != nil {
		return "", apperrors.NewRender(op, "execute report template", err)
	}
	return path, nil
}
