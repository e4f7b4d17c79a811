package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"sensorlog/internal/config"
	"sensorlog/internal/logger"
	"sensorlog/internal/metrics"
	"sensorlog/internal/repository/sqlite"
	"sensorlog/internal/route"
	"sensorlog/internal/sensor"
	"sensorlog/internal/sensor/camera"
	"sensorlog/internal/sensor/mqtt"
	"sensorlog/internal/sensor/simulated"
	"sensorlog/internal/service"
	"sensorlog/internal/service/websocket"
	"sensorlog/internal/store"
	"sensorlog/internal/viewmodel"
)

const shutdownTimeout = 10 * time.Second

// sensorSource is a device backend feeding both adapters.
type sensorSource interface {
	sensor.LocationProvider
	sensor.MotionSensorSource
	Close()
}

type App struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	db     *sqlite.DB
	store  *store.Store
	repo   *service.SensorRepository
	source sensorSource
	camera *camera.Camera
	photos *camera.PhotoStore

	dashboard   *viewmodel.Dashboard
	history     *viewmodel.History
	hubService  *websocket.HubService
	broadcaster *websocket.Broadcaster
}

// NewApp wires every component from the environment configuration.
func NewApp() (*App, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &App{
		config:  cfg,
		logger:  log,
		metrics: metrics.New(),
	}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.config

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.db = db
	a.store = store.New(sqlite.NewMeasurementRepository(db), a.logger, a.metrics)
	a.repo = service.NewSensorRepository(a.store)

	a.source = a.openSource()
	var (
		locationProvider sensor.LocationProvider
		motionSource     sensor.MotionSensorSource
	)
	if a.source != nil {
		locationProvider, motionSource = a.source, a.source
	}

	a.photos = camera.NewPhotoStore(cfg.PhotoDirectory, a.logger)
	a.camera = camera.Open(cfg.CameraDevice, a.photos, a.logger)

	factory := viewmodel.NewFactory(viewmodel.Dependencies{
		Repository:   a.repo,
		Location:     sensor.NewLocationAdapter(locationProvider, cfg.LocationInterval, a.logger, a.metrics),
		Acceleration: sensor.NewAccelerometerAdapter(motionSource, a.logger, a.metrics),
		Camera:       a.camera,
		Photos:       a.photos,
		Logger:       a.logger,
	})

	ctx := context.Background()
	if a.dashboard, err = factory.Dashboard(ctx); err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}
	if a.history, err = factory.History(ctx); err != nil {
		return fmt.Errorf("failed to create history: %w", err)
	}

	a.hubService = websocket.NewHubService(a.logger)
	a.broadcaster = websocket.NewBroadcaster(a.hubService, a.dashboard, a.logger)
	return nil
}

// openSource picks the sensor backend. A broker that cannot be reached leaves
// the app running without live sensors.
func (a *App) openSource() sensorSource {
	cfg := a.config
	switch cfg.SensorSource {
	case config.SourceSimulated:
		a.logger.Info("Using simulated sensors around %.4f, %.4f", cfg.SimLatitude, cfg.SimLongitude)
		return simulated.NewSource(cfg.SimLatitude, cfg.SimLongitude, cfg.HasAccelerometer, a.logger)
	case config.SourceMQTT:
		bridge, err := mqtt.NewBridge(mqtt.Config{
			Broker:           cfg.MQTTBroker,
			ClientID:         cfg.MQTTClientID,
			Username:         cfg.MQTTUsername,
			Password:         cfg.MQTTPassword,
			TopicPrefix:      cfg.MQTTTopicPrefix,
			DeviceID:         cfg.DeviceID,
			HasAccelerometer: cfg.HasAccelerometer,
		}, a.logger)
		if err != nil {
			a.logger.Error("MQTT sensors unavailable: %v", err)
			return nil
		}
		return bridge
	case config.SourceNone:
		a.logger.Info("Live sensors disabled")
		return nil
	default:
		a.logger.Warning("Unknown sensor source %q, live sensors disabled", cfg.SensorSource)
		return nil
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hubService.Run(ctx)
	go a.broadcaster.Run(ctx)

	router := route.SetupRoutes(a.config, a.logger, a.metrics, a.repo, a.dashboard, a.history, a.photos, a.hubService)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("Sensor Logger\n")
	fmt.Printf("URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("Database: %s\n", a.config.DatabasePath)
	fmt.Printf("Sensors: %s\n", a.config.SensorSource)
	fmt.Printf("Photos: %s (camera available: %t)\n", a.config.PhotoDirectory, a.camera.Available())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return server.Shutdown(shutdownCtx)
}

// Close releases everything NewApp opened, holders first and the database last.
func (a *App) Close() {
	if a.history != nil {
		a.history.Close()
	}
	if a.dashboard != nil {
		a.dashboard.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.camera != nil {
		if err := a.camera.Close(); err != nil {
			a.logger.Warning("Failed to close camera: %v", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warning("Failed to close database: %v", err)
		}
	}
	a.logger.Close()
}
