// Package export dumps every table of a SQLite backend to CSV files or a
// single JSON document. The database is opened read-only.
package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/example/khal/internal/db"
	"github.com/example/khal/internal/ports/secondary"
)

// Table is the full content of one table.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// ReadTables loads every user table of the database at path, ordered by
// name.
func ReadTables(ctx context.Context, path string) ([]Table, error) {
	conn, err := db.OpenReadOnly(ctx, path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	names, err := tableNames(ctx, conn)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		t, err := readTable(ctx, conn, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func tableNames(ctx context.Context, conn *sql.DB) ([]string, error) {
	rows, err := conn.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func readTable(ctx context.Context, conn *sql.DB, name string) (Table, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %q", name))
	if err != nil {
		return Table{}, fmt.Errorf("failed to read table %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}

	t := Table{Name: name, Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return Table{}, fmt.Errorf("failed to scan %s row: %w", name, err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		t.Rows = append(t.Rows, values)
	}
	return t, rows.Err()
}

func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// WriteCSV writes one <table>.csv per table into dir and returns the
// written paths. Empty tables produce an empty file.
func WriteCSV(ctx context.Context, fsys secondary.FileSystem, tables []Table, dir string) ([]string, error) {
	var written []string
	for _, t := range tables {
		path := filepath.Join(dir, t.Name+".csv")
		if err := fsys.EnsureDir(ctx, path); err != nil {
			return written, err
		}
		err := fsys.WriteFileAtomic(ctx, path, func(w io.Writer) error {
			if len(t.Rows) == 0 {
				return nil
			}
			cw := csv.NewWriter(w)
			if err := cw.Write(t.Columns); err != nil {
				return err
			}
			record := make([]string, len(t.Columns))
			for _, row := range t.Rows {
				for i, v := range row {
					record[i] = cell(v)
				}
				if err := cw.Write(record); err != nil {
					return err
				}
			}
			cw.Flush()
			return cw.Error()
		})
		if err != nil {
			return written, fmt.Errorf("failed to export %s: %w", t.Name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// WriteJSON writes every table as {"table": [{column: value}, ...]} to path.
func WriteJSON(ctx context.Context, fsys secondary.FileSystem, tables []Table, path string) error {
	payload := make(map[string][]map[string]any, len(tables))
	for _, t := range tables {
		records := make([]map[string]any, 0, len(t.Rows))
		for _, row := range t.Rows {
			record := make(map[string]any, len(t.Columns))
			for i, col := range t.Columns {
				record[col] = row[i]
			}
			records = append(records, record)
		}
		payload[t.Name] = records
	}

	if err := fsys.EnsureDir(ctx, path); err != nil {
		return err
	}
	return fsys.WriteFileAtomic(ctx, path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	})
}
