package repository

import (
	"context"

	"sensorlog/internal/model"
)

// MeasurementRepository defines the interface for measurement data operations.
type MeasurementRepository interface {
	// Create operations
	Insert(ctx context.Context, m *model.Measurement) (int64, error)
	InsertBatch(ctx context.Context, ms []model.Measurement) error

	// Read operations
	GetByID(ctx context.Context, id int64) (*model.Measurement, error)
	GetAll(ctx context.Context, filter *model.MeasurementFilter) ([]model.Measurement, error)
	GetTotalCount(ctx context.Context, filter *model.MeasurementFilter) (int, error)

	// Delete operations
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}
