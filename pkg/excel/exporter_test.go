package excel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExcelExporter_Export(t *testing.T) {
	t.Parallel()

	ds := NewSliceDataSource(
		"Validation Issues",
		[]string{"row", "field", "message"},
		[][]any{
			{2, "yield", "value is not numeric"},
			{5, "date", "unparseable date"},
		},
	)

	exporter := NewExcelExporter(DefaultExportOptions(), DefaultStyleOptions())
	data, err := exporter.Export(context.Background(), ds)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	rows, err := f.GetRows("Validation Issues")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"row", "field", "message"}, rows[0])
	require.Equal(t, []string{"2", "yield", "value is not numeric"}, rows[1])
}

func TestExcelExporter_MaxRows(t *testing.T) {
	t.Parallel()

	ds := NewSliceDataSource(
		"Data",
		[]string{"n"},
		[][]any{{1}, {2}, {3}, {4}},
	)

	exporter := NewExcelExporter(ExportOptions{IncludeHeaders: true, MaxRows: 2}, StyleOptions{})
	data, err := exporter.Export(context.Background(), ds)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	rows, err := f.GetRows("Data")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + capped rows
}

func TestExcelExporter_LongSheetNameTruncated(t *testing.T) {
	t.Parallel()

	ds := NewSliceDataSource(
		"a_very_long_sheet_name_that_exceeds_the_thirty_one_character_limit",
		[]string{"v"},
		[][]any{{"x"}},
	)

	exporter := NewExcelExporter(DefaultExportOptions(), StyleOptions{})
	data, err := exporter.Export(context.Background(), ds)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	require.Len(t, f.GetSheetList(), 1)
	require.Len(t, f.GetSheetList()[0], 31)
}
