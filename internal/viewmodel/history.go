package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"sensorlog/internal/model"
	"sensorlog/internal/reactive"
)

// Filter selects which records the history screen lists.
type Filter string

const (
	FilterAll           Filter = "ALL"
	FilterGPS           Filter = "GPS"
	FilterAccelerometer Filter = "ACCELEROMETER"
)

// ErrUnknownFilter is returned by ParseFilter.
var ErrUnknownFilter = errors.New("unknown history filter")

// ParseFilter accepts ALL, GPS or ACCELEROMETER in any case. Empty means ALL.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToUpper(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterGPS, FilterAccelerometer:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// HistoryState is what the history screen renders.
type HistoryState struct {
	Filter       Filter
	Measurements []model.Measurement

	// Err wraps ErrQueryFailed when the query for Filter failed or stopped.
	Err error
}

// History lists stored measurements under a switchable filter. Switching the
// filter abandons the previous query; its late results are never shown.
type History struct {
	deps Dependencies

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	state     HistoryState
	feed      *reactive.Feed[[]model.Measurement]
	observers observers[HistoryState]
}

// NewHistory opens the ALL query and waits for its first result.
func NewHistory(ctx context.Context, deps Dependencies) (*History, error) {
	deps = deps.withDefaults()
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	h := &History{
		deps:      deps,
		ctx:       hctx,
		cancel:    cancel,
		state:     HistoryState{Filter: FilterAll, Measurements: []model.Measurement{}},
		observers: newObservers[HistoryState](),
	}
	if err := h.SetFilter(ctx, FilterAll); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) open(f Filter) (*reactive.Feed[[]model.Measurement], error) {
	switch f {
	case FilterGPS:
		return h.deps.Repository.MeasurementsByType(h.ctx, model.SensorGPS)
	case FilterAccelerometer:
		return h.deps.Repository.MeasurementsByType(h.ctx, model.SensorAccelerometer)
	case FilterAll:
		return h.deps.Repository.AllMeasurements(h.ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, f)
}

// SetFilter closes the current query, opens one for f and applies its first
// result before returning. If the new query cannot start, the state switches
// to f with no records and Err set.
func (h *History) SetFilter(ctx context.Context, f Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	switch f {
	case FilterAll, FilterGPS, FilterAccelerometer:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFilter, f)
	}

	if old := h.feed; old != nil {
		h.feed = nil
		old.Close()
	}

	feed, err := h.open(f)
	if err == nil {
		var initial []model.Measurement
		if initial, err = first(feed); err == nil {
			h.feed = feed
			h.state = HistoryState{Filter: f, Measurements: nonNil(initial)}
		} else {
			feed.Close()
		}
	}
	if err != nil {
		h.state = HistoryState{
			Filter:       f,
			Measurements: []model.Measurement{},
			Err:          fmt.Errorf("%s: %w: %w", f, ErrQueryFailed, err),
		}
		h.observers.publish(h.state)
		return err
	}
	h.observers.publish(h.state)

	h.wg.Add(1)
	go h.pump(feed)
	return nil
}

func (h *History) pump(feed *reactive.Feed[[]model.Measurement]) {
	defer h.wg.Done()

	for v := range feed.Updates() {
		h.mu.Lock()
		if !h.closed && h.feed == feed {
			h.state = HistoryState{Filter: h.state.Filter, Measurements: nonNil(v)}
			h.observers.publish(h.state)
		}
		h.mu.Unlock()
	}
	err := feed.Err()
	if err == nil {
		return
	}
	h.deps.Logger.Error("History query failed: %v", err)

	h.mu.Lock()
	if !h.closed && h.feed == feed {
		h.feed = nil
		h.state.Err = fmt.Errorf("%s: %w: %w", h.state.Filter, ErrQueryFailed, err)
		h.observers.publish(h.state)
	}
	h.mu.Unlock()
}

func nonNil(ms []model.Measurement) []model.Measurement {
	if ms == nil {
		return []model.Measurement{}
	}
	return ms
}

// Filter returns the active filter.
func (h *History) Filter() Filter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Filter
}

// State returns the current history state.
func (h *History) State() HistoryState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Observe returns a feed that emits the current state and every change.
func (h *History) Observe(ctx context.Context) *reactive.Feed[HistoryState] {
	var feed *reactive.Feed[HistoryState]
	feed = reactive.New[HistoryState](func() {
		h.mu.Lock()
		delete(h.observers.feeds, feed.ID())
		h.mu.Unlock()
	})

	h.mu.Lock()
	feed.Publish(h.state)
	closed := h.closed
	if !closed {
		h.observers.feeds[feed.ID()] = feed
	}
	h.mu.Unlock()

	if closed {
		feed.Close()
		return feed
	}
	return feed.Bind(ctx)
}

// Delete removes m. Deleting a record that is already gone is a no-op.
func (h *History) Delete(ctx context.Context, m model.Measurement) error {
	return deleteOne(ctx, h.deps, m)
}

// DeleteAll removes every record, whatever the filter.
func (h *History) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, h.deps)
}

// Close ends the query and closes observers.
func (h *History) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	feed := h.feed
	h.feed = nil
	observers := h.observers.drain()
	h.mu.Unlock()

	if feed != nil {
		feed.Close()
	}
	h.cancel()
	h.wg.Wait()

	for _, f := range observers {
		f.Close()
	}
}
