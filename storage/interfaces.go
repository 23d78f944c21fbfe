package storage

import (
	"context"
	"errors"

	"dataplatform/models"
)

var (
	// ErrNotFound is returned by ItemStore when the id does not exist.
	ErrNotFound = errors.New("storage: item not found")
	// ErrDatasetNotFound is returned by AnalyticsSink.DatasetExists only when
	// the dataset is genuinely absent.
	ErrDatasetNotFound = errors.New("storage: dataset not found")
)

// ItemStore is the document collection behind the /items endpoints.
type ItemStore interface {
	List(ctx context.Context) ([]*models.Item, error)
	Get(ctx context.Context, id string) (*models.Item, error)
	Insert(ctx context.Context, in models.ItemInput) (string, error)
	Update(ctx context.Context, id string, in models.ItemInput) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// AnalyticsSink is the warehouse the ingestion endpoint loads into.
type AnalyticsSink interface {
	// DatasetExists returns nil when the dataset exists and ErrDatasetNotFound
	// when it does not. Any other error is a real failure.
	DatasetExists(ctx context.Context, dataset string) error
	// CreateDataset is idempotent.
	CreateDataset(ctx context.Context, dataset string) error
	// Load appends every frame row to the table and blocks until done.
	Load(ctx context.Context, ref models.TableRef, frame *models.Frame) (int64, error)
	Close() error
}
