package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"sensorlog/internal/model"
)

// TimeLayout is the display format of every timestamp in API responses.
const TimeLayout = "02.01.2006 15:04:05"

// MeasurementInfo is a stored measurement as shown to clients.
type MeasurementInfo struct {
	ID            int64     `json:"id"`
	SensorType    string    `json:"sensorType"`
	Time          time.Time `json:"time"`
	Timestamp     int64     `json:"timestamp"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	AccelerationX *float64  `json:"accelerationX,omitempty"`
	AccelerationY *float64  `json:"accelerationY,omitempty"`
	AccelerationZ *float64  `json:"accelerationZ,omitempty"`
	Magnitude     *float64  `json:"magnitude,omitempty"`
	PhotoPath     *string   `json:"photoPath,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
}

func NewMeasurementInfo(m model.Measurement) MeasurementInfo {
	info := MeasurementInfo{
		ID:            m.ID,
		SensorType:    string(m.SensorType),
		Time:          m.Time(),
		Timestamp:     m.Timestamp,
		Latitude:      m.Latitude,
		Longitude:     m.Longitude,
		AccelerationX: m.AccelerationX,
		AccelerationY: m.AccelerationY,
		AccelerationZ: m.AccelerationZ,
		PhotoPath:     m.PhotoPath,
		Notes:         m.Notes,
	}
	if mag, ok := m.Magnitude(); ok {
		info.Magnitude = &mag
	}
	return info
}

func NewMeasurementInfos(ms []model.Measurement) []MeasurementInfo {
	infos := make([]MeasurementInfo, 0, len(ms))
	for _, m := range ms {
		infos = append(infos, NewMeasurementInfo(m))
	}
	return infos
}

// MarshalJSON formats the time for display and rounds coordinates to 6
// decimals and acceleration values to 3.
func (m MeasurementInfo) MarshalJSON() ([]byte, error) {
	type Alias MeasurementInfo
	return json.Marshal(&struct {
		Time          string       `json:"time"`
		Latitude      *json.Number `json:"latitude,omitempty"`
		Longitude     *json.Number `json:"longitude,omitempty"`
		AccelerationX *json.Number `json:"accelerationX,omitempty"`
		AccelerationY *json.Number `json:"accelerationY,omitempty"`
		AccelerationZ *json.Number `json:"accelerationZ,omitempty"`
		Magnitude     *json.Number `json:"magnitude,omitempty"`
		Alias
	}{
		Time:          m.Time.Format(TimeLayout),
		Latitude:      fixed(m.Latitude, 6),
		Longitude:     fixed(m.Longitude, 6),
		AccelerationX: fixed(m.AccelerationX, 3),
		AccelerationY: fixed(m.AccelerationY, 3),
		AccelerationZ: fixed(m.AccelerationZ, 3),
		Magnitude:     fixed(m.Magnitude, 3),
		Alias:         (Alias)(m),
	})
}

// MeasurementList is the paginated response of the measurement list endpoint.
type MeasurementList struct {
	Measurements []MeasurementInfo `json:"measurements"`
	Total        int               `json:"total"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

func fixed(v *float64, decimals int) *json.Number {
	if v == nil {
		return nil
	}
	n := json.Number(strconv.FormatFloat(*v, 'f', decimals, 64))
	return &n
}
