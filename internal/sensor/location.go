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

// DefaultLocationInterval is the update interval used when none is configured.
const DefaultLocationInterval = 5 * time.Second

const locationLabel = "location"

// LocationAdapter turns a LocationProvider into a feed of fixes.
// At most one registration is held at a time.
type LocationAdapter struct {
	provider LocationProvider
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	active *reactive.Feed[model.Location]
}

// NewLocationAdapter creates an adapter. A nil provider yields an adapter whose
// Updates always report ErrUnavailable.
func NewLocationAdapter(provider LocationProvider, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *LocationAdapter {
	if interval <= 0 {
		interval = DefaultLocationInterval
	}
	return &LocationAdapter{
		provider: provider,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

type locationListener struct {
	feed    *reactive.Feed[model.Location]
	metrics *metrics.Metrics
}

func (l *locationListener) OnLocation(loc model.Location) {
	if l.feed.Publish(loc) {
		l.metrics.SensorReadings.WithLabelValues(locationLabel).Inc()
	}
}

// Available reports whether a provider is configured at all. Permission
// problems only show up when Updates is called.
func (a *LocationAdapter) Available() bool {
	return a.provider != nil
}

// Updates registers for periodic high-accuracy fixes. Closing the returned
// feed, or cancelling ctx, removes the registration.
func (a *LocationAdapter) Updates(ctx context.Context) (*reactive.Feed[model.Location], error) {
	if a.provider == nil {
		return nil, ErrUnavailable
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		return nil, ErrAlreadyActive
	}

	listener := &locationListener{metrics: a.metrics}
	var feed *reactive.Feed[model.Location]
	feed = reactive.New[model.Location](func() { a.release(listener, feed) })
	listener.feed = feed

	req := LocationRequest{Interval: a.interval, Priority: PriorityHighAccuracy}
	if err := a.provider.RequestLocationUpdates(req, listener); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	a.active = feed
	a.metrics.SensorRegistrations.WithLabelValues(locationLabel).Inc()
	a.logger.Info("Location updates registered (interval %v)", a.interval)

	return feed.Bind(ctx), nil
}

// release deregisters before clearing the active slot, so a new registration
// can never overlap the old one.
func (a *LocationAdapter) release(listener *locationListener, feed *reactive.Feed[model.Location]) {
	if err := a.provider.RemoveLocationUpdates(listener); err != nil {
		a.logger.Warning("Failed to remove location updates: %v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == feed {
		a.active = nil
		a.metrics.SensorRegistrations.WithLabelValues(locationLabel).Dec()
		a.logger.Info("Location updates removed")
	}
}

// Active reports whether a registration is currently held.
func (a *LocationAdapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

// CurrentLocation asks the provider for its last known fix. Any failure
// yields nil.
func (a *LocationAdapter) CurrentLocation(ctx context.Context) *model.Location {
	if a.provider == nil {
		return nil
	}
	loc, err := a.provider.LastLocation(ctx)
	if err != nil {
		a.logger.Warning("Current location unavailable: %v", err)
		return nil
	}
	return loc
}
