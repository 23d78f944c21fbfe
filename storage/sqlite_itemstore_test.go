package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"dataplatform/models"
)

func newTestStore(t *testing.T) *SQLiteItemStore {
	t.Helper()
	s, err := NewSQLiteItemStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestItemStoreInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, models.ItemInput{Title: "A", Category: "B", Description: strPtr("desc")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == "" {
		t.Fatal("Insert returned an empty id")
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.ID != id || item.Title != "A" || item.Category != "B" {
		t.Errorf("Get: got %+v", item)
	}
	if item.Description == nil || *item.Description != "desc" {
		t.Errorf("Description: got %v, want desc", item.Description)
	}
	if item.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped on insert")
	}
	if item.UpdatedAt != nil {
		t.Error("UpdatedAt should be unset before the first update")
	}
}

func TestItemStoreInsertGeneratesDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Insert(ctx, models.ItemInput{Title: "A", Category: "x"})
	b, _ := s.Insert(ctx, models.ItemInput{Title: "B", Category: "x"})
	if a == b {
		t.Errorf("expected distinct ids, got %q twice", a)
	}

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("List len: got %d, want 2", len(items))
	}
}

func TestItemStoreListEmpty(t *testing.T) {
	s := newTestStore(t)
	items, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("List on empty store: got %v, want empty slice", items)
	}
}

func TestItemStoreUpdateReplacesFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	s.now = func() time.Time { return created }

	id, err := s.Insert(ctx, models.ItemInput{Title: "A", Category: "B", Description: strPtr("old")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	s.now = func() time.Time { return updated }
	if err := s.Update(ctx, id, models.ItemInput{Title: "A2", Category: "B2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Title != "A2" || item.Category != "B2" {
		t.Errorf("Update: got title=%q category=%q", item.Title, item.Category)
	}
	if item.Description != nil {
		t.Errorf("Description should be replaced by nil, got %q", *item.Description)
	}
	if !item.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt: got %v, want %v", item.CreatedAt, created)
	}
	if item.UpdatedAt == nil || !item.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt: got %v, want %v", item.UpdatedAt, updated)
	}
}

func TestItemStoreMissingID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: got %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, "missing", models.ItemInput{Title: "A", Category: "B"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: got %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: got %v, want ErrNotFound", err)
	}
}

func TestItemStoreDeleteTwice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.Insert(ctx, models.ItemInput{Title: "A", Category: "B"})
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}
