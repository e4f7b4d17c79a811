package model

import "time"

// Location is a live position fix. It is never persisted as is.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Time      time.Time `json:"time"`
}

// Acceleration is a live accelerometer sample in m/s².
type Acceleration struct {
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Z    float64   `json:"z"`
	Time time.Time `json:"time"`
}
