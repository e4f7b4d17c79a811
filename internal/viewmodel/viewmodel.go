// Package viewmodel holds the state behind the dashboard and history screens.
//
// Holders combine live store queries with live sensor feeds and expose the
// result as a single immutable state value, pushed to observers on change.
package viewmodel

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"sensorlog/internal/logger"
	"sensorlog/internal/model"
	"sensorlog/internal/reactive"
)

var (
	// ErrNoReading means a "save latest" was requested before any live reading.
	ErrNoReading = errors.New("no live reading to save")
	// ErrCameraUnavailable means photo capture is not configured.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrClosed is returned by holders after Close.
	ErrClosed = errors.New("holder closed")
	// ErrQueryFailed marks a holder state whose store query has stopped.
	// The records shown are the last ones read before the failure.
	ErrQueryFailed = errors.New("live query failed")
)

// Repository is the store surface the holders consume.
type Repository interface {
	AllMeasurements(ctx context.Context) (*reactive.Feed[[]model.Measurement], error)
	MeasurementsByType(ctx context.Context, t model.SensorType) (*reactive.Feed[[]model.Measurement], error)
	MeasurementCount(ctx context.Context) (*reactive.Feed[int], error)
	MeasurementCountByType(ctx context.Context, t model.SensorType) (*reactive.Feed[int], error)
	InsertMeasurement(ctx context.Context, m model.Measurement) (int64, error)
	DeleteMeasurement(ctx context.Context, m model.Measurement) error
	DeleteAllMeasurements(ctx context.Context) (int64, error)
	Query(ctx context.Context, filter model.MeasurementFilter) ([]model.Measurement, error)
}

// LocationSource is implemented by sensor.LocationAdapter.
type LocationSource interface {
	Available() bool
	Updates(ctx context.Context) (*reactive.Feed[model.Location], error)
	CurrentLocation(ctx context.Context) *model.Location
}

// AccelerationSource is implemented by sensor.AccelerometerAdapter.
type AccelerationSource interface {
	IsAvailable() bool
	Updates(ctx context.Context) (*reactive.Feed[model.Acceleration], error)
}

// Camera is implemented by camera.Camera.
type Camera interface {
	Available() bool
	Snapshot(ctx context.Context) (string, error)
}

// PhotoRemover deletes stored photo files.
type PhotoRemover interface {
	Remove(path string) error
}

// Dependencies are the collaborators shared by every holder. Only Repository
// is required; leave the others nil when the capability is absent.
type Dependencies struct {
	Repository   Repository
	Location     LocationSource
	Acceleration AccelerationSource
	Camera       Camera
	Photos       PhotoRemover
	Logger       *logger.Logger
	Clock        func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// observers fans a state value out to any number of subscriber feeds.
type observers[S any] struct {
	feeds map[uuid.UUID]*reactive.Feed[S]
}

func newObservers[S any]() observers[S] {
	return observers[S]{feeds: make(map[uuid.UUID]*reactive.Feed[S])}
}

func (o *observers[S]) publish(s S) {
	for _, f := range o.feeds {
		f.Publish(s)
	}
}

func (o *observers[S]) drain() []*reactive.Feed[S] {
	feeds := make([]*reactive.Feed[S], 0, len(o.feeds))
	for id, f := range o.feeds {
		feeds = append(feeds, f)
		delete(o.feeds, id)
	}
	return feeds
}

// removePhoto deletes the file behind a camera record, if any.
func removePhoto(photos PhotoRemover, log *logger.Logger, m model.Measurement) {
	if photos == nil || m.SensorType != model.SensorCamera || m.PhotoPath == nil {
		return
	}
	if err := photos.Remove(*m.PhotoPath); err != nil {
		log.Warning("Failed to remove photo of measurement %d: %v", m.ID, err)
	}
}

func deleteOne(ctx context.Context, deps Dependencies, m model.Measurement) error {
	if err := deps.Repository.DeleteMeasurement(ctx, m); err != nil {
		return err
	}
	removePhoto(deps.Photos, deps.Logger, m)
	return nil
}

func deleteAll(ctx context.Context, deps Dependencies) (int64, error) {
	var photos []model.Measurement
	if deps.Photos != nil {
		var err error
		photos, err = deps.Repository.Query(ctx, model.MeasurementFilter{SensorType: model.SensorCamera})
		if err != nil {
			return 0, err
		}
	}

	n, err := deps.Repository.DeleteAllMeasurements(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range photos {
		removePhoto(deps.Photos, deps.Logger, m)
	}
	return n, nil
}
