package viewmodel

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sensorlog/internal/logger"
	"sensorlog/internal/metrics"
	"sensorlog/internal/model"
	"sensorlog/internal/reactive"
	"sensorlog/internal/repository"
	"sensorlog/internal/repository/sqlite"
	"sensorlog/internal/sensor"
	"sensorlog/internal/service"
	"sensorlog/internal/store"
)

func newTestRepository(t *testing.T) *service.SensorRepository {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(sqlite.NewMeasurementRepository(db), logger.Discard(), metrics.New())
	t.Cleanup(s.Close)
	return service.NewSensorRepository(s)
}

var errDiskGone = errors.New("disk gone")

// failingReads fails list reads while failing is set.
type failingReads struct {
	repository.MeasurementRepository
	failing atomic.Bool
}

func (r *failingReads) GetAll(ctx context.Context, filter *model.MeasurementFilter) ([]model.Measurement, error) {
	if r.failing.Load() {
		return nil, errDiskGone
	}
	return r.MeasurementRepository.GetAll(ctx, filter)
}

func newFailingRepository(t *testing.T) (*service.SensorRepository, *failingReads) {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reads := &failingReads{MeasurementRepository: sqlite.NewMeasurementRepository(db)}
	s := store.New(reads, logger.Discard(), metrics.New())
	t.Cleanup(s.Close)
	return service.NewSensorRepository(s), reads
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

type fakeLocation struct {
	mu         sync.Mutex
	available  bool
	updatesErr error
	current    *model.Location
	feed       *reactive.Feed[model.Location]
	releases   int
}

func (f *fakeLocation) Available() bool { return f.available }

func (f *fakeLocation) Updates(ctx context.Context) (*reactive.Feed[model.Location], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updatesErr != nil {
		return nil, f.updatesErr
	}
	f.feed = reactive.New[model.Location](func() {
		f.mu.Lock()
		f.releases++
		f.mu.Unlock()
	})
	return f.feed.Bind(ctx), nil
}

func (f *fakeLocation) CurrentLocation(context.Context) *model.Location { return f.current }

func (f *fakeLocation) emit(loc model.Location) {
	f.mu.Lock()
	feed := f.feed
	f.mu.Unlock()
	feed.Publish(loc)
}

func (f *fakeLocation) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases
}

type fakeAcceleration struct {
	mu   sync.Mutex
	feed *reactive.Feed[model.Acceleration]
}

func (f *fakeAcceleration) IsAvailable() bool { return true }

func (f *fakeAcceleration) Updates(ctx context.Context) (*reactive.Feed[model.Acceleration], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feed = reactive.New[model.Acceleration](nil)
	return f.feed.Bind(ctx), nil
}

func (f *fakeAcceleration) current() *reactive.Feed[model.Acceleration] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feed
}

type fakeCamera struct {
	path string
	err  error
}

func (c *fakeCamera) Available() bool { return true }

func (c *fakeCamera) Snapshot(context.Context) (string, error) { return c.path, c.err }

type fakePhotos struct {
	mu      sync.Mutex
	removed []string
}

func (p *fakePhotos) Remove(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, path)
	return nil
}

func fixedClock(ms ...int64) func() time.Time {
	var mu sync.Mutex
	i := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		v := ms[i]
		if i < len(ms)-1 {
			i++
		}
		return time.UnixMilli(v)
	}
}

func TestDeriveDashboardState_HidesLiveReadingsWhenIdle(t *testing.T) {
	loc := &model.Location{Latitude: 1, Longitude: 2}
	acc := &model.Acceleration{X: 0, Y: 0, Z: 9.8}
	live := liveSnapshot{location: loc, acceleration: acc, locationAvailable: true}

	idle := deriveDashboardState(storeSnapshot{totalCount: 3}, live, toggles{})
	if idle.Location != nil || idle.Acceleration != nil {
		t.Error("Idle dashboard must not show live readings")
	}
	if idle.TotalCount != 3 || !idle.LocationAvailable {
		t.Errorf("Unexpected state %+v", idle)
	}
	if idle.Measurements == nil {
		t.Error("Measurements should be an empty list, not nil")
	}

	collecting := deriveDashboardState(storeSnapshot{}, live, toggles{location: Collecting})
	if collecting.Location == nil || collecting.Location.Latitude != 1 {
		t.Error("Collecting location should be shown")
	}
	if collecting.Acceleration != nil {
		t.Error("Acceleration toggle is idle")
	}
	if !collecting.CollectingLocation || collecting.CollectingAcceleration {
		t.Errorf("Unexpected toggle flags %+v", collecting)
	}
}

func TestDashboard_Scenario(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{Repository: repo, Clock: fixedClock(1000, 2000)})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer d.Close()

	if st := d.State(); st.TotalCount != 0 || len(st.Measurements) != 0 {
		t.Fatalf("Expected empty dashboard, got %+v", st)
	}

	if _, err := d.SaveGPS(ctx, 52.2297, 21.0122); err != nil {
		t.Fatalf("SaveGPS failed: %v", err)
	}
	if _, err := d.SaveAcceleration(ctx, 0.1, 0.2, 9.8); err != nil {
		t.Fatalf("SaveAcceleration failed: %v", err)
	}

	eventually(t, "two records", func() bool {
		st := d.State()
		return st.TotalCount == 2 && st.GPSCount == 1 && st.AccelerometerCount == 1 && len(st.Measurements) == 2
	})

	st := d.State()
	if st.Measurements[0].SensorType != model.SensorAccelerometer || st.Measurements[0].Timestamp != 2000 {
		t.Errorf("Expected newest ACC first, got %+v", st.Measurements[0])
	}
	if st.Measurements[1].SensorType != model.SensorGPS || st.Measurements[1].Timestamp != 1000 {
		t.Errorf("Expected GPS second, got %+v", st.Measurements[1])
	}

	n, err := d.DeleteAll(ctx)
	if err != nil || n != 2 {
		t.Fatalf("DeleteAll = %d, %v", n, err)
	}
	eventually(t, "empty dashboard", func() bool {
		st := d.State()
		return st.TotalCount == 0 && st.GPSCount == 0 && len(st.Measurements) == 0
	})
}

func TestDashboard_ToggleLocation(t *testing.T) {
	repo := newTestRepository(t)
	loc := &fakeLocation{available: true}
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{Repository: repo, Location: loc})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer d.Close()

	if !d.State().LocationAvailable {
		t.Error("Location should be reported available")
	}

	state, err := d.ToggleLocation(ctx)
	if err != nil || state != Collecting {
		t.Fatalf("ToggleLocation = %v, %v", state, err)
	}
	if !d.State().CollectingLocation {
		t.Error("State should show collecting")
	}

	loc.emit(model.Location{Latitude: 10, Longitude: 20})
	eventually(t, "live location", func() bool {
		l := d.State().Location
		return l != nil && l.Latitude == 10
	})

	state, err = d.ToggleLocation(ctx)
	if err != nil || state != Idle {
		t.Fatalf("ToggleLocation = %v, %v", state, err)
	}
	if loc.releaseCount() != 1 {
		t.Errorf("Expected feed released once on stop, got %d", loc.releaseCount())
	}
	st := d.State()
	if st.CollectingLocation || st.Location != nil {
		t.Errorf("Idle dashboard should hide location, got %+v", st)
	}
}

func TestDashboard_ToggleUnavailable(t *testing.T) {
	repo := newTestRepository(t)
	loc := &fakeLocation{updatesErr: sensor.ErrUnavailable}
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{Repository: repo, Location: loc})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer d.Close()

	if _, err := d.ToggleLocation(ctx); !errors.Is(err, sensor.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
	if _, err := d.ToggleAcceleration(ctx); !errors.Is(err, sensor.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable without accelerometer, got %v", err)
	}
	if st := d.State(); st.CollectingLocation || st.CollectingAcceleration {
		t.Errorf("Failed toggles must stay idle, got %+v", st)
	}
}

func TestDashboard_SaveLatestReadings(t *testing.T) {
	repo := newTestRepository(t)
	acc := &fakeAcceleration{}
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{Repository: repo, Acceleration: acc, Clock: fixedClock(5000)})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer d.Close()

	if _, err := d.SaveLatestAcceleration(ctx); !errors.Is(err, ErrNoReading) {
		t.Errorf("Expected ErrNoReading, got %v", err)
	}
	if _, err := d.SaveLatestLocation(ctx); !errors.Is(err, ErrNoReading) {
		t.Errorf("Expected ErrNoReading, got %v", err)
	}

	if _, err := d.ToggleAcceleration(ctx); err != nil {
		t.Fatalf("ToggleAcceleration failed: %v", err)
	}
	acc.current().Publish(model.Acceleration{X: 1, Y: 2, Z: 3})
	eventually(t, "live acceleration", func() bool { return d.State().Acceleration != nil })

	id, err := d.SaveLatestAcceleration(ctx)
	if err != nil {
		t.Fatalf("SaveLatestAcceleration failed: %v", err)
	}

	m, err := repo.MeasurementByID(ctx, id)
	if err != nil || m == nil {
		t.Fatalf("Saved record not found: %v", err)
	}
	if *m.AccelerationX != 1 || *m.AccelerationY != 2 || *m.AccelerationZ != 3 || m.Timestamp != 5000 {
		t.Errorf("Unexpected saved record %+v", m)
	}
}

func TestDashboard_CloseStopsCollection(t *testing.T) {
	repo := newTestRepository(t)
	loc := &fakeLocation{available: true}
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{Repository: repo, Location: loc})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	if _, err := d.ToggleLocation(ctx); err != nil {
		t.Fatalf("ToggleLocation failed: %v", err)
	}

	obs := d.Observe(ctx)
	d.Close()

	if loc.releaseCount() != 1 {
		t.Errorf("Close should release the location feed, got %d releases", loc.releaseCount())
	}
	if d.State().CollectingLocation {
		t.Error("Close should force Idle")
	}
	if _, err := d.ToggleLocation(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}

	for range obs.Updates() {
	}
	d.Close()
}

func TestDashboard_PhotoLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	photos := &fakePhotos{}
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{
		Repository: repo,
		Camera:     &fakeCamera{path: "/photos/a.jpg"},
		Photos:     photos,
	})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer d.Close()

	if !d.State().CameraAvailable {
		t.Error("Camera should be reported available")
	}

	id, err := d.SavePhoto(ctx, "porch")
	if err != nil {
		t.Fatalf("SavePhoto failed: %v", err)
	}
	m, err := repo.MeasurementByID(ctx, id)
	if err != nil || m == nil || m.SensorType != model.SensorCamera || *m.PhotoPath != "/photos/a.jpg" || *m.Notes != "porch" {
		t.Fatalf("Unexpected photo record %+v, %v", m, err)
	}

	if err := d.Delete(ctx, *m); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(photos.removed) != 1 || photos.removed[0] != "/photos/a.jpg" {
		t.Errorf("Expected photo file removal, got %v", photos.removed)
	}

	noCam, err := NewDashboard(ctx, Dependencies{Repository: repo})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer noCam.Close()
	if _, err := noCam.SavePhoto(ctx, ""); !errors.Is(err, ErrCameraUnavailable) {
		t.Errorf("Expected ErrCameraUnavailable, got %v", err)
	}
}

func TestDashboard_CurrentLocation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{Repository: repo, Location: &fakeLocation{current: &model.Location{Latitude: 5}}})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer d.Close()

	if loc := d.CurrentLocation(ctx); loc == nil || loc.Latitude != 5 {
		t.Errorf("Unexpected location %+v", loc)
	}
}

func TestParseFilter(t *testing.T) {
	tests := map[string]Filter{"": FilterAll, "all": FilterAll, "GPS": FilterGPS, "accelerometer": FilterAccelerometer}
	for in, want := range tests {
		got, err := ParseFilter(in)
		if err != nil || got != want {
			t.Errorf("ParseFilter(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFilter("CAMERA"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter, got %v", err)
	}
}

func TestHistory_FilterSwitchShowsOnlyLatestQuery(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, m := range []model.Measurement{
		model.NewGPSMeasurement(1000, 1, 1),
		model.NewAccelerationMeasurement(2000, 0, 0, 9.8),
		model.NewGPSMeasurement(3000, 2, 2),
	} {
		if _, err := repo.InsertMeasurement(ctx, m); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	h, err := NewHistory(ctx, Dependencies{Repository: repo})
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}
	defer h.Close()

	if st := h.State(); st.Filter != FilterAll || len(st.Measurements) != 3 {
		t.Fatalf("Expected all 3 records, got %+v", st)
	}

	if err := h.SetFilter(ctx, FilterGPS); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}
	st := h.State()
	if st.Filter != FilterGPS || len(st.Measurements) != 2 {
		t.Fatalf("Expected 2 GPS records right after switching, got %+v", st)
	}

	if err := h.SetFilter(ctx, FilterAccelerometer); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}

	// A GPS insert re-runs queries; only the accelerometer query may reach the state.
	if _, err := repo.InsertMeasurement(ctx, model.NewGPSMeasurement(4000, 3, 3)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := repo.InsertMeasurement(ctx, model.NewAccelerationMeasurement(5000, 1, 1, 1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	eventually(t, "two accelerometer records", func() bool {
		return len(h.State().Measurements) == 2
	})
	for _, m := range h.State().Measurements {
		if m.SensorType != model.SensorAccelerometer {
			t.Errorf("Superseded query leaked record %+v", m)
		}
	}
	if h.Filter() != FilterAccelerometer {
		t.Errorf("Unexpected filter %s", h.Filter())
	}
}

func TestHistory_ObserveAndDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.InsertMeasurement(ctx, model.NewGPSMeasurement(1000, 1, 1))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	h, err := NewHistory(ctx, Dependencies{Repository: repo})
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}
	defer h.Close()

	obs := h.Observe(ctx)
	defer obs.Close()

	if st := <-obs.Updates(); len(st.Measurements) != 1 {
		t.Fatalf("Expected current state first, got %+v", st)
	}

	m := model.Measurement{ID: id}
	if err := h.Delete(ctx, m); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := h.Delete(ctx, m); err != nil {
		t.Fatalf("Second delete should be a no-op, got %v", err)
	}

	select {
	case st := <-obs.Updates():
		if len(st.Measurements) != 0 {
			t.Errorf("Expected empty history, got %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No update after delete")
	}
}

func TestFactory(t *testing.T) {
	repo := newTestRepository(t)
	f := NewFactory(Dependencies{Repository: repo})
	ctx := context.Background()

	for _, kind := range []Kind{KindDashboard, KindHistory} {
		h, err := f.Create(ctx, kind)
		if err != nil {
			t.Fatalf("Create(%s) failed: %v", kind, err)
		}
		h.Close()
	}

	h := f.MustCreate(ctx, KindHistory)
	if _, ok := h.(*History); !ok {
		t.Error("Expected a *History")
	}
	h.Close()

	if _, err := f.Create(ctx, Kind("settings")); !errors.Is(err, ErrUnknownHolder) {
		t.Errorf("Expected ErrUnknownHolder, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustCreate should panic on an unknown kind")
		}
	}()
	f.MustCreate(ctx, Kind("settings"))
}

func TestDashboard_StoreFailureIsSurfaced(t *testing.T) {
	repo, reads := newFailingRepository(t)
	ctx := context.Background()

	d, err := NewDashboard(ctx, Dependencies{Repository: repo, Clock: fixedClock(1000, 2000)})
	if err != nil {
		t.Fatalf("NewDashboard failed: %v", err)
	}
	defer d.Close()
	if d.State().Err != nil {
		t.Fatalf("Fresh dashboard should have no error, got %v", d.State().Err)
	}

	feed := d.Observe(ctx)
	defer feed.Close()

	reads.failing.Store(true)
	if _, err := d.SaveGPS(ctx, 1, 1); err != nil {
		t.Fatalf("SaveGPS failed: %v", err)
	}

	eventually(t, "query failure in state", func() bool {
		return errors.Is(d.State().Err, ErrQueryFailed)
	})
	if !errors.Is(d.State().Err, errDiskGone) {
		t.Errorf("State error should carry the cause, got %v", d.State().Err)
	}

	eventually(t, "observers to see the failure", func() bool {
		st, ok := feed.Latest()
		return ok && errors.Is(st.Err, ErrQueryFailed)
	})

	// Recovery of the repository does not bring the list back silently.
	reads.failing.Store(false)
	if _, err := d.SaveGPS(ctx, 2, 2); err != nil {
		t.Fatalf("SaveGPS failed: %v", err)
	}
	eventually(t, "counts to reach 2", func() bool { return d.State().TotalCount == 2 })
	if st := d.State(); !errors.Is(st.Err, ErrQueryFailed) {
		t.Errorf("Stale list must stay flagged, got %+v", st)
	}
}

func TestHistory_StoreFailureIsSurfaced(t *testing.T) {
	repo, reads := newFailingRepository(t)
	ctx := context.Background()

	if _, err := repo.InsertMeasurement(ctx, model.NewGPSMeasurement(1000, 1, 1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	h, err := NewHistory(ctx, Dependencies{Repository: repo})
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}
	defer h.Close()

	reads.failing.Store(true)
	if _, err := repo.InsertMeasurement(ctx, model.NewGPSMeasurement(2000, 2, 2)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	eventually(t, "query failure in history state", func() bool {
		return errors.Is(h.State().Err, ErrQueryFailed)
	})

	// A switch that cannot start lands on the new filter with no records.
	if err := h.SetFilter(ctx, FilterGPS); !errors.Is(err, errDiskGone) {
		t.Fatalf("Expected the storage error, got %v", err)
	}
	st := h.State()
	if st.Filter != FilterGPS || len(st.Measurements) != 0 || !errors.Is(st.Err, ErrQueryFailed) {
		t.Errorf("Unexpected state after failed switch %+v", st)
	}

	reads.failing.Store(false)
	if err := h.SetFilter(ctx, FilterGPS); err != nil {
		t.Fatalf("SetFilter failed: %v", err)
	}
	st = h.State()
	if st.Err != nil || len(st.Measurements) != 2 {
		t.Errorf("Expected a clean GPS list of 2, got %+v", st)
	}

	if err := h.SetFilter(ctx, Filter("CAMERA")); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter, got %v", err)
	}
	if h.Filter() != FilterGPS || h.State().Err != nil {
		t.Error("Rejected filter must leave the current query running")
	}
}
