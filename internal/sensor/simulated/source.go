// Package simulated provides a fake device that produces plausible location
// fixes and accelerometer samples on timers.
package simulated

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"sensorlog/internal/logger"
	"sensorlog/internal/model"
	"sensorlog/internal/sensor"
)

const (
	gravity = 9.80665
	// step is the maximum random-walk move per fix, in degrees.
	step = 0.0001
)

type worker struct {
	stop chan struct{}
	done chan struct{}
}

func (w *worker) halt() {
	close(w.stop)
	<-w.done
}

// Source implements sensor.LocationProvider and sensor.MotionSensorSource.
type Source struct {
	hasAccelerometer bool
	logger           *logger.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	lat     float64
	lon     float64
	lastFix *model.Location
	loc     map[sensor.LocationListener]*worker
	acc     map[sensor.AccelerationListener]*worker
}

// NewSource creates a source walking around (lat, lon).
func NewSource(lat, lon float64, hasAccelerometer bool, logger *logger.Logger) *Source {
	return &Source{
		hasAccelerometer: hasAccelerometer,
		logger:           logger,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		lat:              lat,
		lon:              lon,
		loc:              make(map[sensor.LocationListener]*worker),
		acc:              make(map[sensor.AccelerationListener]*worker),
	}
}

// RequestLocationUpdates starts emitting a fix every req.Interval.
func (s *Source) RequestLocationUpdates(req sensor.LocationRequest, listener sensor.LocationListener) error {
	interval := req.Interval
	if interval <= 0 {
		interval = sensor.DefaultLocationInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loc[listener]; ok {
		return nil
	}
	w := &worker{stop: make(chan struct{}), done: make(chan struct{})}
	s.loc[listener] = w
	go s.run(w, interval, func() { listener.OnLocation(s.nextFix()) })
	return nil
}

// RemoveLocationUpdates stops the listener's timer. No callback runs after it
// returns.
func (s *Source) RemoveLocationUpdates(listener sensor.LocationListener) error {
	s.mu.Lock()
	w, ok := s.loc[listener]
	delete(s.loc, listener)
	s.mu.Unlock()

	if ok {
		w.halt()
	}
	return nil
}

// LastLocation returns the last emitted fix, or ErrNoFix.
func (s *Source) LastLocation(ctx context.Context) (*model.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFix == nil {
		return nil, sensor.ErrNoFix
	}
	fix := *s.lastFix
	return &fix, nil
}

func (s *Source) HasAccelerometer() bool {
	return s.hasAccelerometer
}

// RegisterListener starts emitting samples at rate.
func (s *Source) RegisterListener(listener sensor.AccelerationListener, rate sensor.SamplingRate) error {
	if !s.hasAccelerometer {
		return sensor.ErrProviderUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.acc[listener]; ok {
		return nil
	}
	w := &worker{stop: make(chan struct{}), done: make(chan struct{})}
	s.acc[listener] = w
	go s.run(w, rate.Period(), func() {
		x, y, z := s.nextSample()
		listener.OnAcceleration(x, y, z, time.Now())
	})
	return nil
}

// UnregisterListener stops the listener's timer.
func (s *Source) UnregisterListener(listener sensor.AccelerationListener) {
	s.mu.Lock()
	w, ok := s.acc[listener]
	delete(s.acc, listener)
	s.mu.Unlock()

	if ok {
		w.halt()
	}
}

// Close stops every running timer.
func (s *Source) Close() {
	s.mu.Lock()
	workers := make([]*worker, 0, len(s.loc)+len(s.acc))
	for l, w := range s.loc {
		workers = append(workers, w)
		delete(s.loc, l)
	}
	for l, w := range s.acc {
		workers = append(workers, w)
		delete(s.acc, l)
	}
	s.mu.Unlock()

	for _, w := range workers {
		w.halt()
	}
}

func (s *Source) run(w *worker, period time.Duration, emit func()) {
	defer close(w.done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			emit()
		}
	}
}

func (s *Source) nextFix() model.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lat = clamp(s.lat+(s.rng.Float64()*2-1)*step, -90, 90)
	s.lon = clamp(s.lon+(s.rng.Float64()*2-1)*step, -180, 180)
	fix := model.Location{Latitude: s.lat, Longitude: s.lon, Time: time.Now()}
	s.lastFix = &fix
	return fix
}

// nextSample returns a device lying flat with some hand jitter.
func (s *Source) nextSample() (x, y, z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jitter := func() float64 { return s.rng.NormFloat64() * 0.05 }
	return jitter(), jitter(), gravity + jitter()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
