package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ds124wfegd/civicportal/internal/database/memory"
	"github.com/ds124wfegd/civicportal/internal/entity"
	"github.com/ds124wfegd/civicportal/internal/service"
	"github.com/ds124wfegd/civicportal/pkg/keylock"
	"github.com/ds124wfegd/civicportal/pkg/queue"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestPromotionWorker_SweepHealsOpenResources(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	store := memory.NewStore()
	repos := store.Repositories()

	catalog := service.NewCatalogService(repos.Catalog, logger)
	require.NoError(t, catalog.Seed(ctx, []entity.Resource{
		{ID: "open", Kind: entity.ResourceKindEvent, Capacity: 4},
		{ID: "closed", Kind: entity.ResourceKindEvent, Capacity: 4, Closed: true},
	}, nil))

	// waitlisted rows with free seats, as left behind by an interrupted cancel
	for _, r := range []*entity.Registration{
		{ID: "a", ResourceID: "open", PartySize: 3, Status: entity.RegistrationStatusWaitlisted, CreatedAt: time.Unix(1, 0)},
		{ID: "b", ResourceID: "open", PartySize: 2, Status: entity.RegistrationStatusWaitlisted, CreatedAt: time.Unix(2, 0)},
		{ID: "c", ResourceID: "closed", PartySize: 1, Status: entity.RegistrationStatusWaitlisted, CreatedAt: time.Unix(3, 0)},
	} {
		require.NoError(t, store.AppendRegistration(ctx, r))
	}

	admission := service.NewAdmissionService(catalog, repos.Registrations, keylock.NewLocalLocker(time.Second), nil,
		service.AdmissionConfig{MaxPartySize: 5, AutoPromote: true}, logger, noop.NewTracerProvider().Tracer("test"))
	w := NewPromotionWorker(catalog, admission, time.Minute, logger)

	assert.Equal(t, 1, w.sweep(ctx))
	assert.Equal(t, 0, w.sweep(ctx), "second sweep finds nothing that fits")

	a, err := store.RegistrationByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, entity.RegistrationStatusConfirmed, a.Status)

	c, err := store.RegistrationByID(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, entity.RegistrationStatusWaitlisted, c.Status, "closed resources are skipped")
}

func TestPromotionWorker_StopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := memory.NewStore()
	catalog := service.NewCatalogService(store.Repositories().Catalog, logger)
	w := NewPromotionWorker(catalog, nil, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type recordingNotifier struct {
	mu    sync.Mutex
	tasks []*queue.Task
}

func (n *recordingNotifier) Notify(ctx context.Context, task *queue.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, task)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tasks)
}

func TestNotificationWorker_DeliversPublishedDecisions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger, _ := test.NewNullLogger()
	cfg := queue.DefaultRedisQueueConfig("test")
	cfg.PopTimeout = 50 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	q := queue.NewRedisQueue(client, cfg, logger)

	publisher := service.NewDecisionPublisher(q, logger)
	notifier := &recordingNotifier{}
	w := NewNotificationWorker(q, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	publisher.RegistrationDecided(ctx, &entity.Registration{ID: "r1", ResourceID: "concert", PartySize: 1, Status: entity.RegistrationStatusConfirmed})
	publisher.BookingDecided(ctx, &entity.VenueBooking{ID: "b1", Venue: "Hall", Status: entity.BookingStatusRejected})

	require.Eventually(t, func() bool { return notifier.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, q.Close())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, queue.TaskTypeRegistrationDecided, notifier.tasks[0].Type)
	assert.Equal(t, "b1", notifier.tasks[1].GetString("booking_id"))
}
