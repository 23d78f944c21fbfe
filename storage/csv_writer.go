package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dataplatform/models"
)

// CSVWriter exports query results to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	return &CSVWriter{file: f, writer: csv.NewWriter(f)}, nil
}

// WriteResult writes a header row with the column names followed by every
// result row. NULL cells are written as empty fields.
func (c *CSVWriter) WriteResult(res *models.QueryResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.Write(res.Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	row := make([]string, len(res.Columns))
	for _, cells := range res.Rows {
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = FormatCell(cells[i])
			}
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// FormatCell renders a warehouse value as text.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
