package excel

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DataSource feeds rows to an exporter. Implementations stream rows so
// large result sets never live in memory twice.
type DataSource interface {
	SheetName() string
	Headers(ctx context.Context) ([]string, error)
	ForEachRow(ctx context.Context, fn func(values []any) error) error
}

// PgxDataSource streams the result of a SQL query.
type PgxDataSource struct {
	pool      *pgxpool.Pool
	query     string
	args      []any
	sheetName string
}

func NewPgxDataSource(pool *pgxpool.Pool, query string, args ...any) *PgxDataSource {
	return &PgxDataSource{
		pool:      pool,
		query:     query,
		args:      args,
		sheetName: "Sheet1",
	}
}

func (d *PgxDataSource) WithSheetName(name string) *PgxDataSource {
	d.sheetName = name
	return d
}

func (d *PgxDataSource) SheetName() string {
	return d.sheetName
}

func (d *PgxDataSource) Headers(ctx context.Context) ([]string, error) {
	rows, err := d.pool.Query(ctx, d.query, d.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query headers: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = f.Name
	}
	return headers, nil
}

func (d *PgxDataSource) ForEachRow(ctx context.Context, fn func(values []any) error) error {
	rows, err := d.pool.Query(ctx, d.query, d.args...)
	if err != nil {
		return fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}
		if err := fn(values); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SliceDataSource exports rows already held in memory.
type SliceDataSource struct {
	sheetName string
	headers   []string
	rows      [][]any
}

func NewSliceDataSource(sheetName string, headers []string, rows [][]any) *SliceDataSource {
	return &SliceDataSource{
		sheetName: sheetName,
		headers:   headers,
		rows:      rows,
	}
}

func (d *SliceDataSource) SheetName() string {
	return d.sheetName
}

func (d *SliceDataSource) Headers(_ context.Context) ([]string, error) {
	return d.headers, nil
}

func (d *SliceDataSource) ForEachRow(ctx context.Context, fn func(values []any) error) error {
	for _, row := range d.rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}
