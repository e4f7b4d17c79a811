package viewmodel

import (
	"context"
	"fmt"
	"sync"

	"sensorlog/internal/model"
	"sensorlog/internal/reactive"
	"sensorlog/internal/sensor"
)

// Dashboard combines the stored measurements and counts with live sensor
// readings. Each sensor has an Idle/Collecting toggle; collecting holds an
// adapter registration that is released when collection stops.
type Dashboard struct {
	deps Dependencies

	// ctx scopes every feed the dashboard opens.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	store      storeSnapshot
	live       liveSnapshot
	toggles    toggles
	state      DashboardState
	locFeed    *reactive.Feed[model.Location]
	accFeed    *reactive.Feed[model.Acceleration]
	storeFeeds []func()
	observers  observers[DashboardState]
}

// NewDashboard opens the store queries and waits for their first results, so
// State is complete when it returns. Both sensors start Idle.
func NewDashboard(ctx context.Context, deps Dependencies) (*Dashboard, error) {
	deps = deps.withDefaults()
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	d := &Dashboard{
		deps:      deps,
		ctx:       hctx,
		cancel:    cancel,
		observers: newObservers[DashboardState](),
	}
	d.live.locationAvailable = deps.Location != nil && deps.Location.Available()
	d.live.accelerometerAvailable = deps.Acceleration != nil && deps.Acceleration.IsAvailable()
	d.live.cameraAvailable = deps.Camera != nil && deps.Camera.Available()

	if err := d.openStoreFeeds(); err != nil {
		d.Close()
		return nil, err
	}

	d.mu.Lock()
	d.recompute()
	d.mu.Unlock()
	return d, nil
}

func (d *Dashboard) openStoreFeeds() error {
	repo := d.deps.Repository

	all, err := repo.AllMeasurements(d.ctx)
	if err != nil {
		return err
	}
	d.track(all.Close)
	if d.store.measurements, err = first(all); err != nil {
		return err
	}

	gps, err := repo.MeasurementCountByType(d.ctx, model.SensorGPS)
	if err != nil {
		return err
	}
	d.track(gps.Close)
	if d.store.gpsCount, err = first(gps); err != nil {
		return err
	}

	acc, err := repo.MeasurementCountByType(d.ctx, model.SensorAccelerometer)
	if err != nil {
		return err
	}
	d.track(acc.Close)
	if d.store.accelerometerCount, err = first(acc); err != nil {
		return err
	}

	total, err := repo.MeasurementCount(d.ctx)
	if err != nil {
		return err
	}
	d.track(total.Close)
	if d.store.totalCount, err = first(total); err != nil {
		return err
	}

	consume(d, all, "measurements", func(v []model.Measurement) bool { d.store.measurements = v; return true }, d.storeEnded("measurements"))
	consume(d, gps, "gps count", func(v int) bool { d.store.gpsCount = v; return true }, d.storeEnded("gps count"))
	consume(d, acc, "accelerometer count", func(v int) bool { d.store.accelerometerCount = v; return true }, d.storeEnded("accelerometer count"))
	consume(d, total, "total count", func(v int) bool { d.store.totalCount = v; return true }, d.storeEnded("total count"))
	return nil
}

// storeEnded records the first store query failure in the state.
func (d *Dashboard) storeEnded(name string) func(error) {
	return func(err error) {
		if err == nil || d.store.err != nil {
			return
		}
		d.store.err = fmt.Errorf("%s: %w: %w", name, ErrQueryFailed, err)
		d.recompute()
	}
}

func (d *Dashboard) track(closeFn func()) {
	d.mu.Lock()
	d.storeFeeds = append(d.storeFeeds, closeFn)
	d.mu.Unlock()
}

// first takes the value a store feed emits on subscription.
func first[T any](feed *reactive.Feed[T]) (T, error) {
	v, ok := <-feed.Updates()
	if !ok {
		var zero T
		if err := feed.Err(); err != nil {
			return zero, err
		}
		return zero, ErrClosed
	}
	return v, nil
}

// consume applies every value of feed under the dashboard lock. apply reports
// whether the value was used; stale values are dropped. onEnd runs under the
// lock once the feed ends, with the feed's failure or nil.
func consume[T any](d *Dashboard, feed *reactive.Feed[T], name string, apply func(T) bool, onEnd func(error)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for v := range feed.Updates() {
			d.mu.Lock()
			if !d.closed && apply(v) {
				d.recompute()
			}
			d.mu.Unlock()
		}
		err := feed.Err()
		if err != nil {
			d.deps.Logger.Error("Dashboard %s feed failed: %v", name, err)
		}
		d.mu.Lock()
		if !d.closed {
			onEnd(err)
		}
		d.mu.Unlock()
	}()
}

// recompute rebuilds the state and pushes it to observers. Callers hold mu.
func (d *Dashboard) recompute() {
	d.state = deriveDashboardState(d.store, d.live, d.toggles)
	d.observers.publish(d.state)
}

// State returns the current dashboard state.
func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Observe returns a feed that emits the current state and every change.
func (d *Dashboard) Observe(ctx context.Context) *reactive.Feed[DashboardState] {
	var feed *reactive.Feed[DashboardState]
	feed = reactive.New[DashboardState](func() {
		d.mu.Lock()
		delete(d.observers.feeds, feed.ID())
		d.mu.Unlock()
	})

	d.mu.Lock()
	feed.Publish(d.state)
	closed := d.closed
	if !closed {
		d.observers.feeds[feed.ID()] = feed
	}
	d.mu.Unlock()

	if closed {
		feed.Close()
		return feed
	}
	return feed.Bind(ctx)
}

// ToggleLocation starts or stops location collection and returns the new state.
func (d *Dashboard) ToggleLocation(ctx context.Context) (CollectState, error) {
	if err := ctx.Err(); err != nil {
		return Idle, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Idle, ErrClosed
	}

	if d.toggles.location == Collecting {
		feed := d.locFeed
		d.locFeed = nil
		d.live.location = nil
		d.toggles.location = Idle
		d.recompute()
		d.mu.Unlock()

		feed.Close()
		d.deps.Logger.Info("Location collection stopped")
		return Idle, nil
	}
	defer d.mu.Unlock()

	if d.deps.Location == nil {
		return Idle, fmt.Errorf("location: %w", sensor.ErrUnavailable)
	}
	feed, err := d.deps.Location.Updates(d.ctx)
	if err != nil {
		return Idle, err
	}
	d.locFeed = feed
	d.toggles.location = Collecting
	d.recompute()

	consume(d, feed, "location", func(loc model.Location) bool {
		if d.locFeed != feed {
			return false
		}
		d.live.location = &loc
		return true
	}, func(error) {
		if d.locFeed == feed {
			d.locFeed = nil
			d.live.location = nil
			d.toggles.location = Idle
			d.recompute()
		}
	})
	d.deps.Logger.Info("Location collection started")
	return Collecting, nil
}

// ToggleAcceleration starts or stops accelerometer collection and returns the
// new state.
func (d *Dashboard) ToggleAcceleration(ctx context.Context) (CollectState, error) {
	if err := ctx.Err(); err != nil {
		return Idle, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Idle, ErrClosed
	}

	if d.toggles.acceleration == Collecting {
		feed := d.accFeed
		d.accFeed = nil
		d.live.acceleration = nil
		d.toggles.acceleration = Idle
		d.recompute()
		d.mu.Unlock()

		feed.Close()
		d.deps.Logger.Info("Accelerometer collection stopped")
		return Idle, nil
	}
	defer d.mu.Unlock()

	if d.deps.Acceleration == nil {
		return Idle, fmt.Errorf("accelerometer: %w", sensor.ErrUnavailable)
	}
	feed, err := d.deps.Acceleration.Updates(d.ctx)
	if err != nil {
		return Idle, err
	}
	d.accFeed = feed
	d.toggles.acceleration = Collecting
	d.recompute()

	consume(d, feed, "acceleration", func(sample model.Acceleration) bool {
		if d.accFeed != feed {
			return false
		}
		d.live.acceleration = &sample
		return true
	}, func(error) {
		if d.accFeed == feed {
			d.accFeed = nil
			d.live.acceleration = nil
			d.toggles.acceleration = Idle
			d.recompute()
		}
	})
	d.deps.Logger.Info("Accelerometer collection started")
	return Collecting, nil
}

// SaveGPS persists a GPS record stamped with the holder clock.
func (d *Dashboard) SaveGPS(ctx context.Context, latitude, longitude float64) (int64, error) {
	m := model.NewGPSMeasurement(d.deps.Clock().UnixMilli(), latitude, longitude)
	return d.deps.Repository.InsertMeasurement(ctx, m)
}

// SaveAcceleration persists an accelerometer record stamped with the holder clock.
func (d *Dashboard) SaveAcceleration(ctx context.Context, x, y, z float64) (int64, error) {
	m := model.NewAccelerationMeasurement(d.deps.Clock().UnixMilli(), x, y, z)
	return d.deps.Repository.InsertMeasurement(ctx, m)
}

// SaveLatestLocation persists the live location currently shown.
func (d *Dashboard) SaveLatestLocation(ctx context.Context) (int64, error) {
	loc := d.State().Location
	if loc == nil {
		return 0, fmt.Errorf("location: %w", ErrNoReading)
	}
	return d.SaveGPS(ctx, loc.Latitude, loc.Longitude)
}

// SaveLatestAcceleration persists the live acceleration currently shown.
func (d *Dashboard) SaveLatestAcceleration(ctx context.Context) (int64, error) {
	acc := d.State().Acceleration
	if acc == nil {
		return 0, fmt.Errorf("acceleration: %w", ErrNoReading)
	}
	return d.SaveAcceleration(ctx, acc.X, acc.Y, acc.Z)
}

// SavePhoto captures a photo and records it as a CAMERA measurement.
func (d *Dashboard) SavePhoto(ctx context.Context, notes string) (int64, error) {
	if d.deps.Camera == nil || !d.deps.Camera.Available() {
		return 0, ErrCameraUnavailable
	}
	at := d.deps.Clock()
	path, err := d.deps.Camera.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to capture photo: %w", err)
	}
	id, err := d.deps.Repository.InsertMeasurement(ctx, model.NewPhotoMeasurement(at.UnixMilli(), path, notes))
	if err != nil {
		removePhoto(d.deps.Photos, d.deps.Logger, model.Measurement{SensorType: model.SensorCamera, PhotoPath: &path})
		return 0, err
	}
	return id, nil
}

// Delete removes m. Deleting a record that is already gone is a no-op.
func (d *Dashboard) Delete(ctx context.Context, m model.Measurement) error {
	return deleteOne(ctx, d.deps, m)
}

// DeleteAll removes every record.
func (d *Dashboard) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, d.deps)
}

// CurrentLocation asks for a one-shot fix; nil when none is available.
func (d *Dashboard) CurrentLocation(ctx context.Context) *model.Location {
	if d.deps.Location == nil {
		return nil
	}
	return d.deps.Location.CurrentLocation(ctx)
}

// Close stops any collection, ends the store queries and closes observers.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	locFeed, accFeed := d.locFeed, d.accFeed
	d.locFeed, d.accFeed = nil, nil
	d.toggles = toggles{}
	d.live.location, d.live.acceleration = nil, nil
	d.state = deriveDashboardState(d.store, d.live, d.toggles)
	d.observers.publish(d.state)

	storeFeeds := d.storeFeeds
	d.storeFeeds = nil
	observers := d.observers.drain()
	d.mu.Unlock()

	if locFeed != nil {
		locFeed.Close()
	}
	if accFeed != nil {
		accFeed.Close()
	}
	for _, closeFn := range storeFeeds {
		closeFn()
	}
	d.cancel()
	d.wg.Wait()

	for _, f := range observers {
		f.Close()
	}
}
