package viewmodel

import "sensorlog/internal/model"

// CollectState is the per-sensor collection state of the dashboard.
type CollectState int

const (
	Idle CollectState = iota
	Collecting
)

func (s CollectState) String() string {
	if s == Collecting {
		return "collecting"
	}
	return "idle"
}

// DashboardState is what the dashboard screen renders.
type DashboardState struct {
	Measurements       []model.Measurement
	GPSCount           int
	AccelerometerCount int
	TotalCount         int

	// Live readings, set only while the matching sensor is collecting.
	Location     *model.Location
	Acceleration *model.Acceleration

	CollectingLocation     bool
	CollectingAcceleration bool

	LocationAvailable      bool
	AccelerometerAvailable bool
	CameraAvailable        bool

	// Err wraps ErrQueryFailed once a store query has failed. The store
	// fields above are then stale.
	Err error
}

type storeSnapshot struct {
	measurements       []model.Measurement
	gpsCount           int
	accelerometerCount int
	totalCount         int
	err                error
}

type liveSnapshot struct {
	location     *model.Location
	acceleration *model.Acceleration

	locationAvailable      bool
	accelerometerAvailable bool
	cameraAvailable        bool
}

type toggles struct {
	location     CollectState
	acceleration CollectState
}

// deriveDashboardState is the only place DashboardState is built.
func deriveDashboardState(s storeSnapshot, l liveSnapshot, t toggles) DashboardState {
	state := DashboardState{
		Measurements:           s.measurements,
		GPSCount:               s.gpsCount,
		AccelerometerCount:     s.accelerometerCount,
		TotalCount:             s.totalCount,
		CollectingLocation:     t.location == Collecting,
		CollectingAcceleration: t.acceleration == Collecting,
		LocationAvailable:      l.locationAvailable,
		AccelerometerAvailable: l.accelerometerAvailable,
		CameraAvailable:        l.cameraAvailable,
		Err:                    s.err,
	}
	if state.Measurements == nil {
		state.Measurements = []model.Measurement{}
	}
	if state.CollectingLocation && l.location != nil {
		loc := *l.location
		state.Location = &loc
	}
	if state.CollectingAcceleration && l.acceleration != nil {
		acc := *l.acceleration
		state.Acceleration = &acc
	}
	return state
}
