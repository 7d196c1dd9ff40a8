package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/civicportal/internal/database/memory"
	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/pkg/keylock"
	"github.com/ds124wfegd/civicportal/pkg/queue"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []*queue.Task
	err   error
}

func (q *recordingQueue) Publish(ctx context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) types() []queue.TaskType {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.TaskType, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Type)
	}
	return out
}

type fixture struct {
	store     *memory.Store
	catalog   CatalogService
	admission *admissionService
	booking   *bookingService
	queue     *recordingQueue
	hook      *test.Hook
	locker    keylock.Locker
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	admission AdmissionConfig
	locker    keylock.Locker
}

func withAdmission(cfg AdmissionConfig) fixtureOption {
	return func(c *fixtureConfig) { c.admission = cfg }
}

func withLocker(l keylock.Locker) fixtureOption {
	return func(c *fixtureConfig) { c.locker = l }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		admission: AdmissionConfig{MaxPartySize: 5, AutoPromote: true},
		locker:    keylock.NewLocalLocker(3 * time.Second),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	tracer := noop.NewTracerProvider().Tracer("test")

	store := memory.NewStore()
	repos := store.Repositories()
	q := &recordingQueue{}
	publisher := NewDecisionPublisher(q, logger)
	catalog := NewCatalogService(repos.Catalog, logger)

	f := &fixture{
		store:     store,
		catalog:   catalog,
		admission: NewAdmissionService(catalog, repos.Registrations, cfg.locker, publisher, cfg.admission, logger, tracer).(*admissionService),
		booking:   NewBookingService(catalog, repos.Bookings, cfg.locker, publisher, logger, tracer).(*bookingService),
		queue:     q,
		hook:      hook,
		locker:    cfg.locker,
	}
	return f
}

func (f *fixture) addResource(t *testing.T, id string, kind entity.ResourceKind, capacity int) {
	t.Helper()
	require.NoError(t, f.store.UpsertResource(context.Background(), &entity.Resource{
		ID:       id,
		Kind:     kind,
		Title:    id,
		Capacity: capacity,
	}))
}

func (f *fixture) addVenue(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, f.store.UpsertVenue(context.Background(), &entity.Venue{Name: name}))
}

// steppingClock advances one second per call so registrations get distinct,
// increasing CreatedAt values.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2025, 1, 18, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func TestAcquire_MapsTimeoutToBusy(t *testing.T) {
	locker := keylock.NewLocalLocker(20 * time.Millisecond)
	unlock, err := locker.Lock(context.Background(), "resource:r1")
	require.NoError(t, err)
	defer unlock()

	_, err = acquire(context.Background(), locker, "resource:r1")
	assert.ErrorIs(t, err, entity.ErrBusy)
	assert.ErrorIs(t, err, keylock.ErrTimeout)
}

func TestAcquire_PassesCancellationThrough(t *testing.T) {
	locker := keylock.NewLocalLocker(time.Second)
	unlock, err := locker.Lock(context.Background(), "resource:r1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = acquire(ctx, locker, "resource:r1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, entity.ErrBusy))
}

func TestKeys(t *testing.T) {
	date, err := entity.ParseDate("2025-01-18")
	require.NoError(t, err)

	assert.Equal(t, "resource:summer-concert", resourceKey("summer-concert"))
	assert.Equal(t, "venue:Hall:2025-01-18", venueKey("Hall", date))
}
