package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dataplatform/models"
)

func TestCSVWriterWritesResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	res := &models.QueryResult{
		Columns: []string{"a", "b", "at"},
		Rows: [][]any{
			{int64(1), "x,y", time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)},
			{int64(2), nil, nil},
		},
	}
	if err := w.WriteResult(res); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "a,b,at\n1,\"x,y\",2026-10-14T08:00:00Z\n2,,\n"
	if string(data) != want {
		t.Errorf("csv:\n got %q\nwant %q", data, want)
	}
}
