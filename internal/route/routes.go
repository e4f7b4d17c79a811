package route

import (
	"net/http"

	"github.com/gorilla/mux"

	"sensorlog/internal/config"
	"sensorlog/internal/handler"
	"sensorlog/internal/logger"
	"sensorlog/internal/metrics"
	"sensorlog/internal/middleware"
	"sensorlog/internal/sensor/camera"
	"sensorlog/internal/service"
	"sensorlog/internal/service/websocket"
	"sensorlog/internal/viewmodel"
)

// SetupRoutes registers the API, live socket, log and metrics endpoints and
// wraps them with the API key middleware.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, metrics *metrics.Metrics,
	repo *service.SensorRepository, dashboard *viewmodel.Dashboard, history *viewmodel.History,
	photos *camera.PhotoStore, hub *websocket.HubService) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	// Measurements
	api.HandleFunc("/measurements", handler.ListMeasurementsHandler(repo, logger)).Methods(http.MethodGet)
	api.HandleFunc("/measurements", handler.DeleteAllMeasurementsHandler(dashboard, logger)).Methods(http.MethodDelete)
	api.HandleFunc("/measurements/{id:[0-9]+}", handler.GetMeasurementHandler(repo, logger)).Methods(http.MethodGet)
	api.HandleFunc("/measurements/{id:[0-9]+}", handler.DeleteMeasurementHandler(repo, dashboard, logger)).Methods(http.MethodDelete)

	// Dashboard
	api.HandleFunc("/dashboard", handler.GetDashboardHandler(dashboard, logger)).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/photo", handler.SavePhotoHandler(dashboard, logger)).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/{sensor}/toggle", handler.ToggleSensorHandler(dashboard, logger)).Methods(http.MethodPost)
	api.HandleFunc("/dashboard/{sensor}/save", handler.SaveSensorHandler(dashboard, logger)).Methods(http.MethodPost)
	api.HandleFunc("/location/current", handler.CurrentLocationHandler(dashboard, logger)).Methods(http.MethodGet)

	// Photos
	api.HandleFunc("/photos", handler.GetPhotosHandler(repo, photos, logger)).Methods(http.MethodGet)
	api.HandleFunc("/measurements/{id:[0-9]+}/photo", handler.ViewPhotoHandler(repo, photos, logger)).Methods(http.MethodGet)

	// History
	api.HandleFunc("/history", handler.HistoryHandler(history, logger)).Methods(http.MethodGet)

	// Live dashboard
	api.HandleFunc("/live", handler.LiveWebsocketHandler(hub, logger))

	// Log endpoints
	r.HandleFunc("/logs/{level}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	r.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	r.Handle("/metrics", metrics.Handler())

	r.Use(middleware.APIKey(cfg.APIKey))
	return r
}
