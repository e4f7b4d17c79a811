package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"sensorlog/internal/logger"
	"sensorlog/internal/model"
	"sensorlog/internal/sensor"
	"sensorlog/internal/viewmodel"
)

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and hidden behind a 500.
func writeError(w http.ResponseWriter, logger *logger.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidMeasurement),
		errors.Is(err, model.ErrUnknownSensorType),
		errors.Is(err, viewmodel.ErrUnknownFilter):
		status = http.StatusBadRequest
	case errors.Is(err, viewmodel.ErrNoReading):
		status = http.StatusConflict
	case errors.Is(err, sensor.ErrUnavailable),
		errors.Is(err, sensor.ErrAlreadyActive),
		errors.Is(err, viewmodel.ErrCameraUnavailable),
		errors.Is(err, viewmodel.ErrClosed),
		errors.Is(err, viewmodel.ErrQueryFailed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
		http.Error(w, "Internal Server Error", status)
		return
	}
	writeJSON(w, logger, status, map[string]string{"error": err.Error()})
}
