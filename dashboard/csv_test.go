package dashboard

import (
	"strings"
	"testing"
)

func TestReadCSVTypesCells(t *testing.T) {
	in := "name,qty,price,active,note\nbread,2,1.5,true,\ncroissant,10,0.8,FALSE,fresh\n"
	records, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}

	keys := records[0].Keys()
	if strings.Join(keys, ",") != "name,qty,price,active,note" {
		t.Errorf("keys: got %v", keys)
	}

	tests := []struct {
		row  int
		key  string
		want any
	}{
		{0, "name", "bread"},
		{0, "qty", int64(2)},
		{0, "price", 1.5},
		{0, "active", true},
		{0, "note", nil},
		{1, "active", false},
		{1, "note", "fresh"},
	}
	for _, tt := range tests {
		got, _ := records[tt.row].Get(tt.key)
		if got != tt.want {
			t.Errorf("row %d %s: got %#v, want %#v", tt.row, tt.key, got, tt.want)
		}
	}
}

func TestReadCSVShortRowsPadWithNil(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("a,b\n1\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if v, ok := records[0].Get("b"); !ok || v != nil {
		t.Errorf("b: got %#v (present %v), want nil", v, ok)
	}
}

func TestReadCSVRejectsLongRows(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a\n1,2\n")); err == nil {
		t.Error("expected an error for a row wider than the header")
	}
}

func TestReadCSVEmpty(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records: got %d, want 0", len(records))
	}

	records, err = ReadCSV(strings.NewReader("a,b\n"))
	if err != nil {
		t.Fatalf("ReadCSV header only: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("header only: got %d records, want 0", len(records))
	}
}

func TestReadCSVStripsBOM(t *testing.T) {
	records, err := ReadCSV(strings.NewReader("\ufeffa\n1\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if _, ok := records[0].Get("a"); !ok {
		t.Errorf("keys: got %v, want [a]", records[0].Keys())
	}
}
