package services

import (
	"context"
	"errors"

	"dataplatform/models"
	"dataplatform/storage"
	"dataplatform/utils"
)

// ErrEmptyDataset is returned when a batch has no rows or no columns.
var ErrEmptyDataset = errors.New("services: empty dataset")

// IngestService appends batches to the fixed analytics table.
type IngestService struct {
	sink   storage.AnalyticsSink
	target models.TableRef
	logger *utils.Logger
}

// NewIngestService creates an IngestService writing to target.
func NewIngestService(sink storage.AnalyticsSink, target models.TableRef, logger *utils.Logger) *IngestService {
	return &IngestService{sink: sink, target: target, logger: logger}
}

// Target returns the table batches are appended to.
func (s *IngestService) Target() models.TableRef {
	return s.target
}

// Ingest loads records into the warehouse and returns the number of rows.
// It blocks until the load has finished. Sink errors are returned as-is.
func (s *IngestService) Ingest(ctx context.Context, records []models.Record) (int, error) {
	frame := BuildFrame(records)
	if frame.Empty() {
		return 0, ErrEmptyDataset
	}

	if err := s.ensureDataset(ctx); err != nil {
		return 0, err
	}

	s.logger.Info("[ingest] Loading %d rows x %d columns into %s",
		len(frame.Rows), len(frame.Columns), s.target)

	if _, err := s.sink.Load(ctx, s.target, frame); err != nil {
		s.logger.Error("[ingest] Load into %s failed: %v", s.target, err)
		return 0, err
	}
	return len(frame.Rows), nil
}

// ensureDataset creates the dataset only when the sink says it is absent.
// A failing lookup is reported, not mistaken for absence.
func (s *IngestService) ensureDataset(ctx context.Context) error {
	err := s.sink.DatasetExists(ctx, s.target.Dataset)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDatasetNotFound):
		s.logger.Info("[ingest] Dataset %s not found, creating it", s.target.Dataset)
		if err := s.sink.CreateDataset(ctx, s.target.Dataset); err != nil {
			s.logger.Error("[ingest] Create dataset %s failed: %v", s.target.Dataset, err)
			return err
		}
		return nil
	default:
		s.logger.Error("[ingest] Dataset lookup for %s failed: %v", s.target.Dataset, err)
		return err
	}
}
