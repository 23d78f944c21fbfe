package dashboard

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dataplatform/models"
)

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a CSV document with a header row into records. Cells are
// typed the way a dataframe reader would: integers, floats and booleans are
// recognised, empty cells become nil, everything else stays a string.
func ReadCSV(r io.Reader) ([]models.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var records []models.Record
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("csv: line %d: %d fields, header has %d", line, len(row), len(header))
		}

		rec := models.NewRecord()
		for i, name := range header {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			rec.Set(name, parseCell(cell))
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCell(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
