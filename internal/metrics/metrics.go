package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported by sensorlog. Each instance owns its
// registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	MeasurementsInserted *prometheus.CounterVec
	MeasurementsDeleted  prometheus.Counter
	StoreFeeds           prometheus.Gauge
	SensorRegistrations  *prometheus.GaugeVec
	SensorReadings       *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MeasurementsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorlog",
			Name:      "measurements_inserted_total",
			Help:      "Measurements persisted, by sensor type.",
		}, []string{"sensor_type"}),
		MeasurementsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorlog",
			Name:      "measurements_deleted_total",
			Help:      "Measurements removed by single or bulk deletion.",
		}),
		StoreFeeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensorlog",
			Name:      "store_feeds",
			Help:      "Live reactive queries registered with the store.",
		}),
		SensorRegistrations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sensorlog",
			Name:      "sensor_registrations",
			Help:      "Active platform registrations, by sensor.",
		}, []string{"sensor"}),
		SensorReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensorlog",
			Name:      "sensor_readings_total",
			Help:      "Live readings delivered by adapters, by sensor.",
		}, []string{"sensor"}),
	}

	m.registry.MustRegister(
		m.MeasurementsInserted,
		m.MeasurementsDeleted,
		m.StoreFeeds,
		m.SensorRegistrations,
		m.SensorReadings,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
