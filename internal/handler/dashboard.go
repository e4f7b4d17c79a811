package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"sensorlog/internal/dto"
	"sensorlog/internal/logger"
	"sensorlog/internal/viewmodel"
)

const (
	sensorLocation     = "location"
	sensorAcceleration = "acceleration"
)

// GetDashboardHandler returns the current dashboard state, or 503 once a
// store query behind it has failed.
func GetDashboardHandler(dashboard *viewmodel.Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := dashboard.State()
		if state.Err != nil {
			logger.Error("Dashboard state is stale: %v", state.Err)
			writeError(w, logger, state.Err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.NewDashboardInfo(state))
	}
}

// ToggleSensorHandler flips collection of {sensor} and returns the new state.
func ToggleSensorHandler(dashboard *viewmodel.Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			state viewmodel.CollectState
			err   error
		)
		switch mux.Vars(r)["sensor"] {
		case sensorLocation:
			state, err = dashboard.ToggleLocation(r.Context())
		case sensorAcceleration:
			state, err = dashboard.ToggleAcceleration(r.Context())
		default:
			http.Error(w, "Unknown sensor", http.StatusNotFound)
			return
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"state": state.String()})
	}
}

type saveRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
}

// SaveSensorHandler persists a reading of {sensor}. With a JSON body the given
// values are saved; without one, the live reading on screen is.
func SaveSensorHandler(dashboard *viewmodel.Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveRequest
		explicit := true
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				http.Error(w, "Invalid JSON body", http.StatusBadRequest)
				return
			}
			explicit = false
		}

		var (
			id  int64
			err error
		)
		switch mux.Vars(r)["sensor"] {
		case sensorLocation:
			switch {
			case !explicit:
				id, err = dashboard.SaveLatestLocation(r.Context())
			case req.Latitude != nil && req.Longitude != nil:
				id, err = dashboard.SaveGPS(r.Context(), *req.Latitude, *req.Longitude)
			default:
				http.Error(w, "latitude and longitude are required", http.StatusBadRequest)
				return
			}
		case sensorAcceleration:
			switch {
			case !explicit:
				id, err = dashboard.SaveLatestAcceleration(r.Context())
			case req.X != nil && req.Y != nil && req.Z != nil:
				id, err = dashboard.SaveAcceleration(r.Context(), *req.X, *req.Y, *req.Z)
			default:
				http.Error(w, "x, y and z are required", http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "Unknown sensor", http.StatusNotFound)
			return
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, map[string]int64{"id": id})
	}
}

// SavePhotoHandler captures a photo. An optional form or query value "notes"
// is stored with it.
func SavePhotoHandler(dashboard *viewmodel.Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := dashboard.SavePhoto(r.Context(), r.FormValue("notes"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, map[string]int64{"id": id})
	}
}

// CurrentLocationHandler returns a one-shot fix, or null when none is known.
func CurrentLocationHandler(dashboard *viewmodel.Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc := dashboard.CurrentLocation(r.Context())
		if loc == nil {
			writeJSON(w, logger, http.StatusOK, nil)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.LocationInfo{Latitude: loc.Latitude, Longitude: loc.Longitude, Time: loc.Time})
	}
}
