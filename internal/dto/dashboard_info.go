package dto

import (
	"encoding/json"
	"math"
	"time"

	"sensorlog/internal/viewmodel"
)

// LocationInfo is a live location fix.
type LocationInfo struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Time      time.Time `json:"time"`
}

func (l LocationInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Latitude  *json.Number `json:"latitude"`
		Longitude *json.Number `json:"longitude"`
		Time      string       `json:"time"`
	}{
		Latitude:  fixed(&l.Latitude, 6),
		Longitude: fixed(&l.Longitude, 6),
		Time:      l.Time.Format(TimeLayout),
	})
}

// AccelerationInfo is a live accelerometer sample.
type AccelerationInfo struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Magnitude float64   `json:"magnitude"`
	Time      time.Time `json:"time"`
}

func (a AccelerationInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		X         *json.Number `json:"x"`
		Y         *json.Number `json:"y"`
		Z         *json.Number `json:"z"`
		Magnitude *json.Number `json:"magnitude"`
		Time      string       `json:"time"`
	}{
		X:         fixed(&a.X, 3),
		Y:         fixed(&a.Y, 3),
		Z:         fixed(&a.Z, 3),
		Magnitude: fixed(&a.Magnitude, 3),
		Time:      a.Time.Format(TimeLayout),
	})
}

// DashboardInfo is the dashboard state as sent over HTTP and the live socket.
type DashboardInfo struct {
	Measurements           []MeasurementInfo `json:"measurements"`
	GPSCount               int               `json:"gpsCount"`
	AccelerometerCount     int               `json:"accelerometerCount"`
	TotalCount             int               `json:"totalCount"`
	Location               *LocationInfo     `json:"location"`
	Acceleration           *AccelerationInfo `json:"acceleration"`
	CollectingLocation     bool              `json:"collectingLocation"`
	CollectingAcceleration bool              `json:"collectingAcceleration"`
	LocationAvailable      bool              `json:"locationAvailable"`
	AccelerometerAvailable bool              `json:"accelerometerAvailable"`
	CameraAvailable        bool              `json:"cameraAvailable"`
	Error                  string            `json:"error,omitempty"`
}

func NewDashboardInfo(s viewmodel.DashboardState) DashboardInfo {
	info := DashboardInfo{
		Measurements:           NewMeasurementInfos(s.Measurements),
		GPSCount:               s.GPSCount,
		AccelerometerCount:     s.AccelerometerCount,
		TotalCount:             s.TotalCount,
		CollectingLocation:     s.CollectingLocation,
		CollectingAcceleration: s.CollectingAcceleration,
		LocationAvailable:      s.LocationAvailable,
		AccelerometerAvailable: s.AccelerometerAvailable,
		CameraAvailable:        s.CameraAvailable,
	}
	if s.Err != nil {
		info.Error = s.Err.Error()
	}
	if s.Location != nil {
		info.Location = &LocationInfo{Latitude: s.Location.Latitude, Longitude: s.Location.Longitude, Time: s.Location.Time}
	}
	if a := s.Acceleration; a != nil {
		info.Acceleration = &AccelerationInfo{
			X: a.X, Y: a.Y, Z: a.Z,
			Magnitude: math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z),
			Time:      a.Time,
		}
	}
	return info
}

// HistoryInfo is the history state.
type HistoryInfo struct {
	Filter       string            `json:"filter"`
	Measurements []MeasurementInfo `json:"measurements"`
	Count        int               `json:"count"`
	Error        string            `json:"error,omitempty"`
}

func NewHistoryInfo(s viewmodel.HistoryState) HistoryInfo {
	info := HistoryInfo{
		Filter:       string(s.Filter),
		Measurements: NewMeasurementInfos(s.Measurements),
		Count:        len(s.Measurements),
	}
	if s.Err != nil {
		info.Error = s.Err.Error()
	}
	return info
}
