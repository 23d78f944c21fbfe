package services

import (
	"encoding/json"

	"dataplatform/models"
)

// BuildFrame turns a batch into its tabular form. Columns are the union of
// all record fields in order of first appearance; a record missing a field
// gets a nil cell.
func BuildFrame(records []models.Record) *models.Frame {
	index := make(map[string]int)
	var names []string
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if _, ok := index[k]; !ok {
				index[k] = len(names)
				names = append(names, k)
			}
		}
	}

	frame := &models.Frame{
		Columns: make([]models.Column, len(names)),
		Rows:    make([][]any, 0, len(records)),
	}
	for _, rec := range records {
		row := make([]any, len(names))
		for _, k := range rec.Keys() {
			row[index[k]], _ = rec.Get(k)
		}
		frame.Rows = append(frame.Rows, row)
	}

	for i, name := range names {
		frame.Columns[i] = models.Column{Name: name, Kind: inferKind(frame.Rows, i)}
	}
	return frame
}

// inferKind picks the narrowest kind that holds every non-nil value of a
// column. Integers mixed with floats widen to float; any other mix, or a
// column with no values at all, is stored as text.
func inferKind(rows [][]any, col int) models.ColumnKind {
	kinds := make(map[models.ColumnKind]bool)
	for _, row := range rows {
		v := row[col]
		if v == nil {
			continue
		}
		kinds[valueKind(v)] = true
	}

	switch {
	case len(kinds) == 1:
		for k := range kinds {
			return k
		}
	case len(kinds) == 2 && kinds[models.KindInteger] && kinds[models.KindFloat]:
		return models.KindFloat
	}
	return models.KindString
}

func valueKind(v any) models.ColumnKind {
	switch t := v.(type) {
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return models.KindInteger
		}
		return models.KindFloat
	case int, int32, int64:
		return models.KindInteger
	case float32, float64:
		return models.KindFloat
	case bool:
		return models.KindBool
	case map[string]any, []any:
		return models.KindJSON
	default:
		return models.KindString
	}
}
