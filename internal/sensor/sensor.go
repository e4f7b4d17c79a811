// Package sensor adapts callback-based location and motion sources into
// cancellable reactive feeds.
package sensor

import (
	"context"
	"errors"
	"time"

	"sensorlog/internal/model"
)

var (
	// ErrUnavailable means the capability is missing or access was refused.
	ErrUnavailable = errors.New("sensor unavailable")
	// ErrAlreadyActive means the adapter already holds a registration.
	ErrAlreadyActive = errors.New("sensor updates already active")

	// Provider-side errors, mapped to ErrUnavailable by the adapters.
	ErrPermissionDenied    = errors.New("permission denied")
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrNoFix is returned by LastLocation when no fix has been seen yet.
	ErrNoFix = errors.New("no location fix")
)

// Priority is the accuracy preference of a location request.
type Priority int

const (
	PriorityHighAccuracy Priority = iota
	PriorityBalanced
	PriorityLowPower
)

// LocationRequest describes how often a provider should report fixes.
type LocationRequest struct {
	Interval time.Duration
	Priority Priority
}

// LocationListener receives fixes from a LocationProvider.
type LocationListener interface {
	OnLocation(loc model.Location)
}

// LocationProvider is the platform source of location fixes.
type LocationProvider interface {
	RequestLocationUpdates(req LocationRequest, listener LocationListener) error
	RemoveLocationUpdates(listener LocationListener) error
	LastLocation(ctx context.Context) (*model.Location, error)
}

// SamplingRate is the requested motion sensor event rate.
type SamplingRate int

const (
	SamplingNormal  SamplingRate = iota // ~5 Hz
	SamplingUI                          // ~16 Hz
	SamplingGame                        // ~50 Hz
	SamplingFastest
)

// Period returns the nominal event period for the rate.
func (r SamplingRate) Period() time.Duration {
	switch r {
	case SamplingUI:
		return 60 * time.Millisecond
	case SamplingGame:
		return 20 * time.Millisecond
	case SamplingFastest:
		return 5 * time.Millisecond
	default:
		return 200 * time.Millisecond
	}
}

// AccelerationListener receives raw accelerometer events.
// eventTime is the source's own timestamp and may use any epoch.
type AccelerationListener interface {
	OnAcceleration(x, y, z float64, eventTime time.Time)
}

// MotionSensorSource is the platform motion-sensor subsystem.
type MotionSensorSource interface {
	HasAccelerometer() bool
	RegisterListener(listener AccelerationListener, rate SamplingRate) error
	UnregisterListener(listener AccelerationListener)
}
