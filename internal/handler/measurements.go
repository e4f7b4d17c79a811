package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sensorlog/internal/dto"
	"sensorlog/internal/logger"
	"sensorlog/internal/model"
	"sensorlog/internal/service"
	"sensorlog/internal/viewmodel"
)

const defaultPageSize = 50

// ListMeasurementsHandler returns a filtered page of stored measurements.
// Query: type, since, until (ms), limit, offset.
func ListMeasurementsHandler(repo *service.SensorRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := model.MeasurementFilter{
			Since:  atoi64Default(q.Get("since"), 0),
			Until:  atoi64Default(q.Get("until"), 0),
			Limit:  atoiDefault(q.Get("limit"), defaultPageSize),
			Offset: atoiDefault(q.Get("offset"), 0),
		}
		if t := q.Get("type"); t != "" {
			sensorType, err := model.ParseSensorType(t)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			filter.SensorType = sensorType
		}

		measurements, err := repo.Query(r.Context(), filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		countFilter := filter
		countFilter.Limit, countFilter.Offset = 0, 0
		total, err := repo.Count(r.Context(), countFilter)
		if err != nil {
			logger.Error("Error counting measurements: %v", err)
			total = len(measurements)
		}

		writeJSON(w, logger, http.StatusOK, dto.MeasurementList{
			Measurements: dto.NewMeasurementInfos(measurements),
			Total:        total,
			Limit:        filter.Limit,
			Offset:       filter.Offset,
		})
	}
}

// GetMeasurementHandler returns one measurement, or 404.
func GetMeasurementHandler(repo *service.SensorRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		m, err := repo.MeasurementByID(r.Context(), id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if m == nil {
			http.Error(w, "Measurement not found", http.StatusNotFound)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.NewMeasurementInfo(*m))
	}
}

// DeleteMeasurementHandler removes one measurement. Deleting an absent id
// succeeds.
func DeleteMeasurementHandler(repo *service.SensorRepository, dashboard *viewmodel.Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		m, err := repo.MeasurementByID(r.Context(), id)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if m == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := dashboard.Delete(r.Context(), *m); err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("Deleted measurement %d", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteAllMeasurementsHandler removes every measurement.
func DeleteAllMeasurementsHandler(dashboard *viewmodel.Dashboard, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := dashboard.DeleteAll(r.Context())
		if err != nil {
			writeError(w, logger, err)
			return
		}
		logger.Info("Deleted all %d measurements", n)
		writeJSON(w, logger, http.StatusOK, map[string]int64{"deleted": n})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid measurement id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func atoi64Default(s string, def int64) int64 {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil && v >= 0 {
		return v
	}
	return def
}
