package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sensorlog/internal/logger"
	"sensorlog/internal/metrics"
	"sensorlog/internal/model"
	"sensorlog/internal/reactive"
)

const accelerationLabel = "acceleration"

// AccelerometerAdapter turns a MotionSensorSource into a feed of samples.
type AccelerometerAdapter struct {
	source    MotionSensorSource
	available bool
	rate      SamplingRate
	now       func() time.Time
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	active *reactive.Feed[model.Acceleration]
}

// AccelerometerOption customizes an AccelerometerAdapter.
type AccelerometerOption func(*AccelerometerAdapter)

// WithClock replaces the clock used to stamp samples.
func WithClock(now func() time.Time) AccelerometerOption {
	return func(a *AccelerometerAdapter) {
		a.now = now
	}
}

// WithSamplingRate overrides the default SamplingNormal rate.
func WithSamplingRate(rate SamplingRate) AccelerometerOption {
	return func(a *AccelerometerAdapter) {
		a.rate = rate
	}
}

// NewAccelerometerAdapter creates an adapter. Hardware presence is checked
// once, here.
func NewAccelerometerAdapter(source MotionSensorSource, logger *logger.Logger, metrics *metrics.Metrics, opts ...AccelerometerOption) *AccelerometerAdapter {
	a := &AccelerometerAdapter{
		source:    source,
		available: source != nil && source.HasAccelerometer(),
		rate:      SamplingNormal,
		now:       time.Now,
		logger:    logger,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type accelerationListener struct {
	feed    *reactive.Feed[model.Acceleration]
	now     func() time.Time
	metrics *metrics.Metrics
}

// OnAcceleration stamps the sample with the adapter clock; the event's own
// timestamp is ignored.
func (l *accelerationListener) OnAcceleration(x, y, z float64, _ time.Time) {
	sample := model.Acceleration{X: x, Y: y, Z: z, Time: l.now()}
	if l.feed.Publish(sample) {
		l.metrics.SensorReadings.WithLabelValues(accelerationLabel).Inc()
	}
}

// IsAvailable reports whether the hardware exists.
func (a *AccelerometerAdapter) IsAvailable() bool {
	return a.available
}

// Updates registers a listener at the configured rate. Closing the returned
// feed, or cancelling ctx, unregisters it.
func (a *AccelerometerAdapter) Updates(ctx context.Context) (*reactive.Feed[model.Acceleration], error) {
	if !a.available {
		return nil, ErrUnavailable
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		return nil, ErrAlreadyActive
	}

	listener := &accelerationListener{now: a.now, metrics: a.metrics}
	var feed *reactive.Feed[model.Acceleration]
	feed = reactive.New[model.Acceleration](func() { a.release(listener, feed) })
	listener.feed = feed

	if err := a.source.RegisterListener(listener, a.rate); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	a.active = feed
	a.metrics.SensorRegistrations.WithLabelValues(accelerationLabel).Inc()
	a.logger.Info("Accelerometer listener registered")

	return feed.Bind(ctx), nil
}

func (a *AccelerometerAdapter) release(listener *accelerationListener, feed *reactive.Feed[model.Acceleration]) {
	a.source.UnregisterListener(listener)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == feed {
		a.active = nil
		a.metrics.SensorRegistrations.WithLabelValues(accelerationLabel).Dec()
		a.logger.Info("Accelerometer listener unregistered")
	}
}

// Active reports whether a listener is currently registered.
func (a *AccelerometerAdapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}
