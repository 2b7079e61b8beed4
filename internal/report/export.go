package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"etlkit/internal/dataset"
	apperrors "etlkit/internal/errors"
)

// ExportCSV writes the Dataset as CSV in the output directory and returns
// the file path. A UTF-8 BOM is prepended so Excel opens the file cleanly.
func (g *Generator) ExportCSV(ds *dataset.Dataset, filename string) (string, error) {
	const op = "report.ExportCSV"

	if ds == nil {
		return "", apperrors.NewState(op, "no dataset provided")
	}
	path := g.outputPath(filename)
	if err := WriteCSVFile(path, ds); err != nil {
		return "", err
	}
	g.logger.Info("dataset exported", "format", "csv", "path", path, "rows", ds.NumRows())
	return path, nil
}

// WriteCSVFile writes a Dataset as CSV to an arbitrary path, creating
// directories as needed.
func WriteCSVFile(path string, ds *dataset.Dataset) error {
	const op = "report.WriteCSVFile"

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewIO(op, fmt.Sprintf("create directory for %s", path), err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return apperrors.NewIO(op, fmt.Sprintf("open file %s", path), err)
	}
	defer file.Close()

	// UTF-8 BOM helps Excel recognize the encoding.
	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return apperrors.NewIO(op, "write BOM", err)
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	for i, record := range ds.Records() {
		if err := writer.Write(record); err != nil {
			return apperrors.NewIO(op, fmt.Sprintf("write record %d", i), err)
		}
	}
	if err := writer.Error(); err != nil {
		return apperrors.NewIO(op, "flush csv writer", err)
	}
	return nil
}

// ExportExcel writes the Dataset as an Excel workbook in the output
// directory and returns the file path.
func (g *Generator) ExportExcel(ds *dataset.Dataset, filename string) (string, error) {
	const op = "report.ExportExcel"

	if ds == nil {
		return "", apperrors.NewState(op, "no dataset provided")
	}
	path := g.outputPath(filename)
	if err := WriteExcelFile(path, ds); err != nil {
		return "", err
	}
	g.logger.Info("dataset exported", "format", "excel", "path", path, "rows", ds.NumRows())
	return path, nil
}

// WriteExcelFile writes a Dataset as an xlsx workbook to an arbitrary path.
func WriteExcelFile(path string, ds *dataset.Dataset) error {
	const op = "report.WriteExcelFile"

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewIO(op, fmt.Sprintf("create directory for %s", path), err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for i, record := range ds.Records() {
		row := make([]interface{}, len(record))
		for j, v := range record {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return apperrors.NewIO(op, fmt.Sprintf("compute cell for row %d", i), err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return apperrors.NewIO(op, fmt.Sprintf("write row %d", i), err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.NewIO(op, fmt.Sprintf("save workbook %s", path), err)
	}
	return nil
}
