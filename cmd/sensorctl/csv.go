package main

import (
	"fmt"
	"strconv"
	"strings"

	"sensorlog/internal/model"
)

var csvHeader = []string{
	"timestamp", "sensor_type",
	"latitude", "longitude",
	"acceleration_x", "acceleration_y", "acceleration_z",
	"photo_path", "notes",
}

// encodeRecord writes m as one CSV row. The id is not exported: imported rows
// get fresh ids.
func encodeRecord(m model.Measurement) []string {
	return []string{
		strconv.FormatInt(m.Timestamp, 10),
		string(m.SensorType),
		formatFloat(m.Latitude),
		formatFloat(m.Longitude),
		formatFloat(m.AccelerationX),
		formatFloat(m.AccelerationY),
		formatFloat(m.AccelerationZ),
		formatString(m.PhotoPath),
		formatString(m.Notes),
	}
}

// decodeRecord parses one CSV row. Empty cells are absent values.
func decodeRecord(row []string) (model.Measurement, error) {
	var m model.Measurement
	if len(row) != len(csvHeader) {
		return m, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	if err != nil {
		return m, fmt.Errorf("invalid timestamp %q", row[0])
	}
	m.Timestamp = ts

	if m.SensorType, err = model.ParseSensorType(row[1]); err != nil {
		return m, err
	}

	floats := []**float64{&m.Latitude, &m.Longitude, &m.AccelerationX, &m.AccelerationY, &m.AccelerationZ}
	for i, dst := range floats {
		if *dst, err = parseFloat(row[2+i]); err != nil {
			return m, fmt.Errorf("invalid %s %q", csvHeader[2+i], row[2+i])
		}
	}
	m.PhotoPath = parseString(row[7])
	m.Notes = parseString(row[8])

	return m, m.Validate()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
