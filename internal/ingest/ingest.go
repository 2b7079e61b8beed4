// Package ingest loads tabular data from the supported sources: CSV and
// JSON files, Excel workbooks, and SQL query results. Source types form a
// closed enumeration dispatched through a lookup table; anything else is a
// source error surfaced immediately to the caller.
package ingest

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"etlkit/internal/config"
	"etlkit/internal/dataset"
	apperrors "etlkit/internal/errors"
)

// SourceType identifies one of the supported data sources.
type SourceType string

const (
	SourceCSV      SourceType = "csv"
	SourceJSON     SourceType = "json"
	SourceExcel    SourceType = "excel"
	SourceDatabase SourceType = "database"
)

// sqlDriver is the database/sql driver name registered by modernc.org/sqlite.
const sqlDriver = "sqlite"

type loadFunc func(ctx context.Context, src config.SourceConfig) (*dataset.Dataset, error)

// Loader reads datasets from configured sources. It has no side effects
// beyond reading and performs no retries.
type Loader struct {
	logger   *slog.Logger
	registry map[SourceType]loadFunc
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger}
	l.registry = map[SourceType]loadFunc{
		SourceCSV:      l.loadCSV,
		SourceJSON:     l.loadJSON,
		SourceExcel:    l.loadExcel,
		SourceDatabase: l.loadQuery,
	}
	return l
}

// Load reads a Dataset from the configured source, dispatching on the
// source type.
func (l *Loader) Load(ctx context.Context, src config.SourceConfig) (*dataset.Dataset, error) {
	load, ok := l.registry[SourceType(src.Type)]
	if !ok {
		return nil, apperrors.NewSource("ingest.Load",
			fmt.Sprintf("unsupported source type %q", src.Type), nil)
	}

	ds, err := load(ctx, src)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("source_type", src.Type),
		slog.String("location", src.Path),
		slog.Int("rows", ds.NumRows()),
		slog.Int("columns", ds.NumCols()))
	return ds, nil
}

// emptyDataset builds a zero-row dataset that keeps the column names, so
// sources with no data rows flow through the pipeline instead of failing.
func emptyDataset(columns []string) (*dataset.Dataset, error) {
	ss := make([]series.Series, len(columns))
	for i, name := range columns {
		ss[i] = series.New([]string{}, series.String, name)
	}
	return dataset.New(dataframe.New(ss...))
}

// csvLoadOptions builds the gota read options shared by the flat-file
// loaders.
func csvLoadOptions(src config.SourceConfig) []dataframe.LoadOption {
	options := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
	}
	nan := src.NaNValues
	if len(nan) == 0 {
		// Empty fields count as missing, like the flat files this toolkit
		// usually reads.
		nan = []string{"", "NA", "N/A", "NaN", "null"}
	}
	options = append(options, dataframe.NaNValues(nan))
	if src.Delimiter != "" {
		options = append(options, dataframe.WithDelimiter(rune(src.Delimiter[0])))
	}
	return options
}

func (l *Loader) loadCSV(ctx context.Context, src config.SourceConfig) (*dataset.Dataset, error) {
	file, err := os.Open(src.Path)
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadCSV",
			fmt.Sprintf("open CSV file %s", src.Path), err)
	}
	defer file.Close()

	// Exported files may carry a UTF-8 BOM for Excel; drop it so the first
	// header name stays clean.
	reader := bufio.NewReader(file)
	if lead, err := reader.Peek(3); err == nil && lead[0] == 0xEF && lead[1] == 0xBB && lead[2] == 0xBF {
		reader.Discard(3)
	}

	ds, err := dataset.New(dataframe.ReadCSV(reader, csvLoadOptions(src)...))
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadCSV",
			fmt.Sprintf("parse CSV file %s", src.Path), err)
	}
	return ds, nil
}

func (l *Loader) loadJSON(ctx context.Context, src config.SourceConfig) (*dataset.Dataset, error) {
	file, err := os.Open(src.Path)
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadJSON",
			fmt.Sprintf("open JSON file %s", src.Path), err)
	}
	defer file.Close()

	ds, err := dataset.New(dataframe.ReadJSON(file))
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadJSON",
			fmt.Sprintf("parse JSON file %s", src.Path), err)
	}
	return ds, nil
}

func (l *Loader) loadExcel(ctx context.Context, src config.SourceConfig) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(src.Path)
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadExcel",
			fmt.Sprintf("open Excel file %s", src.Path), err)
	}
	defer f.Close()

	sheet := src.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadExcel",
			fmt.Sprintf("read sheet %q from %s", sheet, src.Path), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewSource("ingest.loadExcel",
			fmt.Sprintf("sheet %q is empty", sheet), nil)
	}
	if len(rows) == 1 {
		ds, err := emptyDataset(rows[0])
		if err != nil {
			return nil, apperrors.NewSource("ingest.loadExcel",
				fmt.Sprintf("build dataset from sheet %q", sheet), err)
		}
		return ds, nil
	}

	// excelize returns ragged rows; pad them to the header width so the
	// record table stays rectangular.
	width := len(rows[0])
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		records = append(records, row[:width])
	}

	ds, err := dataset.FromRecords(records,
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String))
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadExcel",
			fmt.Sprintf("build dataset from sheet %q", sheet), err)
	}
	return ds, nil
}

func (l *Loader) loadQuery(ctx context.Context, src config.SourceConfig) (*dataset.Dataset, error) {
	if src.Query == "" {
		return nil, apperrors.NewSource("ingest.loadQuery", "database source requires a query", nil)
	}

	db, err := sql.Open(sqlDriver, src.Path)
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadQuery",
			fmt.Sprintf("open database %s", src.Path), err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, src.Query)
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadQuery", "execute query", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadQuery", "read result columns", err)
	}

	records := [][]string{columns}
	values := make([]sql.NullString, len(columns))
	scanArgs := make([]interface{}, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, apperrors.NewSource("ingest.loadQuery", "scan result row", err)
		}
		record := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				record[i] = v.String
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewSource("ingest.loadQuery", "iterate result rows", err)
	}
	if len(records) < 2 {
		ds, err := emptyDataset(columns)
		if err != nil {
			return nil, apperrors.NewSource("ingest.loadQuery", "build empty result dataset", err)
		}
		return ds, nil
	}

	ds, err := dataset.FromRecords(records,
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String))
	if err != nil {
		return nil, apperrors.NewSource("ingest.loadQuery", "build dataset from query result", err)
	}
	return ds, nil
}
