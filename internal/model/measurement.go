package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// SensorType tags which sensor produced a measurement.
type SensorType string

const (
	SensorGPS           SensorType = "GPS"
	SensorAccelerometer SensorType = "ACCELEROMETER"
	SensorCamera        SensorType = "CAMERA"
)

var (
	// ErrInvalidMeasurement is returned when a record breaks the payload rules of its sensor type.
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrIDAssigned is returned when a new record already carries an identifier.
	ErrIDAssigned = errors.New("measurement id is assigned by the store")
	// ErrUnknownSensorType is returned for tags outside the known set.
	ErrUnknownSensorType = errors.New("unknown sensor type")
)

// ParseSensorType converts a stored or user-supplied tag into a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	switch t := SensorType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SensorGPS, SensorAccelerometer, SensorCamera:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSensorType, s)
}

// Measurement is one persisted sensor reading.
type Measurement struct {
	ID            int64      `json:"id"`
	Timestamp     int64      `json:"timestamp"` // ms since epoch
	SensorType    SensorType `json:"sensorType"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	AccelerationX *float64   `json:"accelerationX,omitempty"` // m/s²
	AccelerationY *float64   `json:"accelerationY,omitempty"`
	AccelerationZ *float64   `json:"accelerationZ,omitempty"`
	PhotoPath     *string    `json:"photoPath,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// NewGPSMeasurement builds an unsaved GPS record.
func NewGPSMeasurement(timestamp int64, latitude, longitude float64) Measurement {
	return Measurement{
		Timestamp:  timestamp,
		SensorType: SensorGPS,
		Latitude:   &latitude,
		Longitude:  &longitude,
	}
}

// NewAccelerationMeasurement builds an unsaved accelerometer record.
func NewAccelerationMeasurement(timestamp int64, x, y, z float64) Measurement {
	return Measurement{
		Timestamp:     timestamp,
		SensorType:    SensorAccelerometer,
		AccelerationX: &x,
		AccelerationY: &y,
		AccelerationZ: &z,
	}
}

// NewPhotoMeasurement builds an unsaved camera record pointing at a stored photo.
func NewPhotoMeasurement(timestamp int64, photoPath, notes string) Measurement {
	m := Measurement{
		Timestamp:  timestamp,
		SensorType: SensorCamera,
		PhotoPath:  &photoPath,
	}
	if notes != "" {
		m.Notes = &notes
	}
	return m
}

// Validate checks the sensor type and the paired payload fields.
func (m Measurement) Validate() error {
	if _, err := ParseSensorType(string(m.SensorType)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMeasurement, err)
	}
	if (m.Latitude == nil) != (m.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalidMeasurement)
	}
	set := 0
	for _, axis := range []*float64{m.AccelerationX, m.AccelerationY, m.AccelerationZ} {
		if axis != nil {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("%w: acceleration axes must be set together", ErrInvalidMeasurement)
	}
	if m.Timestamp < 0 {
		return fmt.Errorf("%w: negative timestamp", ErrInvalidMeasurement)
	}
	for _, v := range []*float64{m.Latitude, m.Longitude, m.AccelerationX, m.AccelerationY, m.AccelerationZ} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidMeasurement)
		}
	}
	if m.Latitude != nil && (*m.Latitude < -90 || *m.Latitude > 90) {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidMeasurement, *m.Latitude)
	}
	if m.Longitude != nil && (*m.Longitude < -180 || *m.Longitude > 180) {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidMeasurement, *m.Longitude)
	}
	return nil
}

// Time returns the capture time.
func (m Measurement) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Magnitude returns the Euclidean norm of the acceleration vector.
// ok is false when the record carries no acceleration.
func (m Measurement) Magnitude() (magnitude float64, ok bool) {
	if m.AccelerationX == nil || m.AccelerationY == nil || m.AccelerationZ == nil {
		return 0, false
	}
	x, y, z := *m.AccelerationX, *m.AccelerationY, *m.AccelerationZ
	return math.Sqrt(x*x + y*y + z*z), true
}

// MeasurementFilter narrows one-shot queries. Zero values mean "no constraint".
type MeasurementFilter struct {
	SensorType SensorType
	Since      int64 // ms, inclusive
	Until      int64 // ms, inclusive
	Limit      int
	Offset     int
}

// Counts holds per-type cardinalities of the store.
type Counts struct {
	Total         int `json:"total"`
	GPS           int `json:"gps"`
	Accelerometer int `json:"accelerometer"`
}
