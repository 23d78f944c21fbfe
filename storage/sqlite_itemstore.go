package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dataplatform/models"
)

// itemDoc is the stored document; the id lives in its own column.
type itemDoc struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Category    string     `json:"category"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// SQLiteItemStore keeps items as JSON documents keyed by a generated id.
type SQLiteItemStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteItemStore opens (or creates) the database at path and makes sure
// the items collection exists. Use ":memory:" for a throwaway store.
func NewSQLiteItemStore(path string) (*SQLiteItemStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("itemstore: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("itemstore: open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteItemStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("itemstore: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteItemStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)
	`)
	return err
}

// List returns every item ordered by id.
func (s *SQLiteItemStore) List(ctx context.Context) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("itemstore: list: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("itemstore: scan row: %w", err)
		}
		item, err := decodeItem(id, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns ErrNotFound when id does not exist.
func (s *SQLiteItemStore) Get(ctx context.Context, id string) (*models.Item, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM items WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("itemstore: get %s: %w", id, err)
	}
	return decodeItem(id, raw)
}

// Insert stores a new document stamped with created_at and returns its id.
func (s *SQLiteItemStore) Insert(ctx context.Context, in models.ItemInput) (string, error) {
	doc := itemDoc{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   s.now(),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("itemstore: encode: %w", err)
	}

	id := uuid.New().String()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO items (id, doc) VALUES (?, ?)`, id, string(raw)); err != nil {
		return "", fmt.Errorf("itemstore: insert: %w", err)
	}
	return id, nil
}

// Update replaces title, description and category, keeps created_at and
// stamps updated_at.
func (s *SQLiteItemStore) Update(ctx context.Context, id string, in models.ItemInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("itemstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT doc FROM items WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("itemstore: get %s: %w", id, err)
	}

	var doc itemDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("itemstore: decode %s: %w", id, err)
	}
	now := s.now()
	doc.Title = in.Title
	doc.Description = in.Description
	doc.Category = in.Category
	doc.UpdatedAt = &now

	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("itemstore: encode: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE items SET doc = ? WHERE id = ?`, string(updated), id); err != nil {
		return fmt.Errorf("itemstore: update %s: %w", id, err)
	}
	return tx.Commit()
}

// Delete returns ErrNotFound when id does not exist.
func (s *SQLiteItemStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("itemstore: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("itemstore: delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteItemStore) Close() error {
	return s.db.Close()
}

func decodeItem(id, raw string) (*models.Item, error) {
	var doc itemDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("itemstore: decode %s: %w", id, err)
	}
	return &models.Item{
		ID:          id,
		Title:       doc.Title,
		Description: doc.Description,
		Category:    doc.Category,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}
