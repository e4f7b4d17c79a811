// Package store owns the persisted measurements and the live queries over them.
//
// All writes go through Store. After each committed write the store re-runs
// every registered query and publishes the result before the write returns,
// so observers never need to poll.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sensorlog/internal/logger"
	"sensorlog/internal/metrics"
	"sensorlog/internal/model"
	"sensorlog/internal/reactive"
	"sensorlog/internal/repository"
)

// watcher is a registered live query.
type watcher interface {
	refresh(ctx context.Context)
	close()
}

type query[T any] struct {
	name string
	run  func(context.Context) (T, error)
	feed *reactive.Feed[T]
	log  *logger.Logger
}

func (q *query[T]) refresh(ctx context.Context) {
	if q.feed.Closed() {
		return
	}
	v, err := q.run(ctx)
	if err != nil {
		q.log.Error("Live query %s failed: %v", q.name, err)
		q.feed.Fail(err)
		return
	}
	q.feed.Publish(v)
}

func (q *query[T]) close() {
	q.feed.Close()
}

// Store is the measurement store.
type Store struct {
	repo    repository.MeasurementRepository
	logger  *logger.Logger
	metrics *metrics.Metrics

	// writeMu orders mutations and the notifications that follow them.
	writeMu sync.Mutex

	watchersMu sync.Mutex
	watchers   map[uuid.UUID]watcher
}

// New creates a Store over repo.
func New(repo repository.MeasurementRepository, logger *logger.Logger, metrics *metrics.Metrics) *Store {
	return &Store{
		repo:     repo,
		logger:   logger,
		metrics:  metrics,
		watchers: make(map[uuid.UUID]watcher),
	}
}

// Insert validates m, persists it and returns the id assigned to it.
func (s *Store) Insert(ctx context.Context, m model.Measurement) (int64, error) {
	if m.ID != 0 {
		return 0, model.ErrIDAssigned
	}
	if err := m.Validate(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	id, err := s.repo.Insert(ctx, &m)
	if err != nil {
		return 0, err
	}
	s.metrics.MeasurementsInserted.WithLabelValues(string(m.SensorType)).Inc()
	s.notify(ctx)
	return id, nil
}

// InsertBatch persists ms in one transaction and notifies observers once.
func (s *Store) InsertBatch(ctx context.Context, ms []model.Measurement) error {
	for i, m := range ms {
		if m.ID != 0 {
			return fmt.Errorf("record %d: %w", i, model.ErrIDAssigned)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	if len(ms) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.InsertBatch(ctx, ms); err != nil {
		return err
	}
	for _, m := range ms {
		s.metrics.MeasurementsInserted.WithLabelValues(string(m.SensorType)).Inc()
	}
	s.notify(ctx)
	return nil
}

// GetByID looks up one measurement. It returns nil, nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*model.Measurement, error) {
	return s.repo.GetByID(ctx, id)
}

// DeleteOne removes the record with m's id. Deleting an absent record is a no-op.
func (s *Store) DeleteOne(ctx context.Context, m model.Measurement) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deleted, err := s.repo.Delete(ctx, m.ID)
	if err != nil {
		return err
	}
	if deleted {
		s.metrics.MeasurementsDeleted.Inc()
		s.notify(ctx)
	}
	return nil
}

// DeleteAll removes every record and returns how many were removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.MeasurementsDeleted.Add(float64(n))
	s.notify(ctx)
	return n, nil
}

// Query runs a one-shot filtered read.
func (s *Store) Query(ctx context.Context, filter model.MeasurementFilter) ([]model.Measurement, error) {
	return s.repo.GetAll(ctx, &filter)
}

// Count runs a one-shot filtered count.
func (s *Store) Count(ctx context.Context, filter model.MeasurementFilter) (int, error) {
	return s.repo.GetTotalCount(ctx, &filter)
}

// ObserveAll emits every record, newest first, and again after each mutation.
func (s *Store) ObserveAll(ctx context.Context) (*reactive.Feed[[]model.Measurement], error) {
	return observe(ctx, s, "all", func(ctx context.Context) ([]model.Measurement, error) {
		return s.repo.GetAll(ctx, nil)
	})
}

// ObserveByType is ObserveAll restricted to one sensor type.
func (s *Store) ObserveByType(ctx context.Context, t model.SensorType) (*reactive.Feed[[]model.Measurement], error) {
	filter := &model.MeasurementFilter{SensorType: t}
	return observe(ctx, s, "by_type:"+string(t), func(ctx context.Context) ([]model.Measurement, error) {
		return s.repo.GetAll(ctx, filter)
	})
}

// ObserveCount emits the number of stored records.
func (s *Store) ObserveCount(ctx context.Context) (*reactive.Feed[int], error) {
	return observe(ctx, s, "count", func(ctx context.Context) (int, error) {
		return s.repo.GetTotalCount(ctx, nil)
	})
}

// ObserveCountByType emits the number of stored records of type t.
func (s *Store) ObserveCountByType(ctx context.Context, t model.SensorType) (*reactive.Feed[int], error) {
	filter := &model.MeasurementFilter{SensorType: t}
	return observe(ctx, s, "count_by_type:"+string(t), func(ctx context.Context) (int, error) {
		return s.repo.GetTotalCount(ctx, filter)
	})
}

// FeedCount reports how many live queries are registered.
func (s *Store) FeedCount() int {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	return len(s.watchers)
}

// Close ends every live query.
func (s *Store) Close() {
	s.watchersMu.Lock()
	watchers := make([]watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.watchersMu.Unlock()

	for _, w := range watchers {
		w.close()
	}
}

// observe registers a live query, emits its first value and binds it to ctx.
// The first value is computed under writeMu so no mutation can slip between
// registration and the initial read.
func observe[T any](ctx context.Context, s *Store, name string, run func(context.Context) (T, error)) (*reactive.Feed[T], error) {
	q := &query[T]{name: name, run: run, log: s.logger}

	var feed *reactive.Feed[T]
	feed = reactive.New[T](func() { s.unregister(feed.ID()) })
	q.feed = feed

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	initial, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s query: %w", name, err)
	}

	s.watchersMu.Lock()
	s.watchers[feed.ID()] = q
	s.watchersMu.Unlock()
	s.metrics.StoreFeeds.Inc()

	feed.Publish(initial)
	return feed.Bind(ctx), nil
}

func (s *Store) unregister(id uuid.UUID) {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	if _, ok := s.watchers[id]; ok {
		delete(s.watchers, id)
		s.metrics.StoreFeeds.Dec()
	}
}

// notify re-runs every live query. Callers hold writeMu.
// Live queries run on a context detached from the caller's cancellation.
func (s *Store) notify(ctx context.Context) {
	s.watchersMu.Lock()
	watchers := make([]watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.watchersMu.Unlock()

	qctx := context.WithoutCancel(ctx)
	for _, w := range watchers {
		w.refresh(qctx)
	}
}
