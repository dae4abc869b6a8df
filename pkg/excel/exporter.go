package excel

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Excel sheet names are limited to 31 characters.
const maxSheetNameLength = 31

type ExportOptions struct {
	IncludeHeaders bool
	// MaxRows caps the exported data rows; zero means unlimited.
	MaxRows int
}

func DefaultExportOptions() ExportOptions {
	return ExportOptions{IncludeHeaders: true}
}

type StyleOptions struct {
	BoldHeaders bool
	FreezeTop   bool
}

func DefaultStyleOptions() StyleOptions {
	return StyleOptions{BoldHeaders: true, FreezeTop: true}
}

type Exporter interface {
	Export(ctx context.Context, ds DataSource) ([]byte, error)
}

func NewExcelExporter(opts ExportOptions, style StyleOptions) Exporter {
	return &excelExporter{opts: opts, style: style}
}

type excelExporter struct {
	opts  ExportOptions
	style StyleOptions
}

func (e *excelExporter) Export(ctx context.Context, ds DataSource) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := ds.SheetName()
	if sheet == "" {
		sheet = "Sheet1"
	}
	if len(sheet) > maxSheetNameLength {
		sheet = sheet[:maxSheetNameLength]
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}
	// Stream writers require panes to be set before the first row.
	if e.style.FreezeTop && e.opts.IncludeHeaders {
		if err := sw.SetPanes(&excelize.Panes{
			Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
		}); err != nil {
			return nil, fmt.Errorf("failed to freeze header row: %w", err)
		}
	}

	rowIdx := 1
	if e.opts.IncludeHeaders {
		headers, err := ds.Headers(ctx)
		if err != nil {
			return nil, err
		}
		headerStyle := 0
		if e.style.BoldHeaders {
			headerStyle, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
			if err != nil {
				return nil, fmt.Errorf("failed to create header style: %w", err)
			}
		}
		cells := make([]interface{}, len(headers))
		for i, h := range headers {
			if e.style.BoldHeaders {
				cells[i] = excelize.Cell{StyleID: headerStyle, Value: h}
			} else {
				cells[i] = h
			}
		}
		if err := sw.SetRow(cellRef(1), cells); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
		rowIdx++
	}

	written := 0
	err = ds.ForEachRow(ctx, func(values []any) error {
		if e.opts.MaxRows > 0 && written >= e.opts.MaxRows {
			return nil
		}
		cells := make([]interface{}, len(values))
		copy(cells, values)
		if err := sw.SetRow(cellRef(rowIdx), cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", rowIdx, err)
		}
		rowIdx++
		written++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellRef(row int) string {
	ref, _ := excelize.CoordinatesToCellName(1, row)
	return ref
}
