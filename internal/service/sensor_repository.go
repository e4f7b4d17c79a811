package service

import (
	"context"

	"sensorlog/internal/model"
	"sensorlog/internal/reactive"
	"sensorlog/internal/store"
)

// SensorRepository is the single entry point the screen holders use to reach
// the measurement store. It adds no behavior of its own.
type SensorRepository struct {
	store *store.Store
}

func NewSensorRepository(store *store.Store) *SensorRepository {
	return &SensorRepository{store: store}
}

func (r *SensorRepository) AllMeasurements(ctx context.Context) (*reactive.Feed[[]model.Measurement], error) {
	return r.store.ObserveAll(ctx)
}

func (r *SensorRepository) MeasurementsByType(ctx context.Context, t model.SensorType) (*reactive.Feed[[]model.Measurement], error) {
	return r.store.ObserveByType(ctx, t)
}

func (r *SensorRepository) MeasurementByID(ctx context.Context, id int64) (*model.Measurement, error) {
	return r.store.GetByID(ctx, id)
}

func (r *SensorRepository) InsertMeasurement(ctx context.Context, m model.Measurement) (int64, error) {
	return r.store.Insert(ctx, m)
}

func (r *SensorRepository) DeleteMeasurement(ctx context.Context, m model.Measurement) error {
	return r.store.DeleteOne(ctx, m)
}

func (r *SensorRepository) DeleteAllMeasurements(ctx context.Context) (int64, error) {
	return r.store.DeleteAll(ctx)
}

func (r *SensorRepository) MeasurementCount(ctx context.Context) (*reactive.Feed[int], error) {
	return r.store.ObserveCount(ctx)
}

func (r *SensorRepository) MeasurementCountByType(ctx context.Context, t model.SensorType) (*reactive.Feed[int], error) {
	return r.store.ObserveCountByType(ctx, t)
}

// Query runs a one-shot filtered read.
func (r *SensorRepository) Query(ctx context.Context, filter model.MeasurementFilter) ([]model.Measurement, error) {
	return r.store.Query(ctx, filter)
}

// Count runs a one-shot filtered count.
func (r *SensorRepository) Count(ctx context.Context, filter model.MeasurementFilter) (int, error) {
	return r.store.Count(ctx, filter)
}
