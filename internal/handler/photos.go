package handler

import (
	"net/http"

	"sensorlog/internal/dto"
	"sensorlog/internal/logger"
	"sensorlog/internal/model"
	"sensorlog/internal/sensor/camera"
	"sensorlog/internal/service"
)

// GetPhotosHandler returns a page of camera records plus the photo directory size.
func GetPhotosHandler(repo *service.SensorRepository, photos *camera.PhotoStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := model.MeasurementFilter{
			SensorType: model.SensorCamera,
			Limit:      atoiDefault(q.Get("limit"), defaultPageSize),
			Offset:     atoiDefault(q.Get("offset"), 0),
		}

		measurements, err := repo.Query(r.Context(), filter)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		total, err := repo.Count(r.Context(), model.MeasurementFilter{SensorType: model.SensorCamera})
		if err != nil {
			logger.Error("Error counting photos: %v", err)
			total = len(measurements)
		}

		size, err := photos.Size()
		if err != nil {
			logger.Error("Error getting photo directory size: %v", err)
		}

		writeJSON(w, logger, http.StatusOK, dto.PhotoList{
			Photos: dto.NewMeasurementInfos(measurements),
			Total:  total,
			Size:   size,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		})
	}
}

// ViewPhotoHandler serves the JPEG attached to a camera record.
func ViewPhotoHandler(repo *service.SensorRepository, photos *camera.PhotoStore, logger *logger.Logger) http.HandlerFunc {
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
		if m == nil || m.PhotoPath == nil {
			http.Error(w, "Photo not found", http.StatusNotFound)
			return
		}
		if !photos.Contains(*m.PhotoPath) {
			logger.Warning("Measurement %d points outside the photo directory: %s", id, *m.PhotoPath)
			http.Error(w, "Photo not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, *m.PhotoPath)
	}
}
