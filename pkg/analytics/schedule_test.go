package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pulse/pkg/api"
)

type listOnlyUserStore struct {
	users []*api.User
}

func (s *listOnlyUserStore) EnsureUser(ctx context.Context, email string) (*api.User, error) {
	return nil, nil
}

func (s *listOnlyUserStore) ListUsers(ctx context.Context) ([]*api.User, error) {
	return s.users, nil
}

func TestEnqueueAllCreatesJobMatrix(t *testing.T) {
	queue := &fakeQueue{}
	users := &listOnlyUserStore{users: []*api.User{
		{ID: 1, Email: "a@example.com"},
		{ID: 2, Email: "b@example.com"},
	}}
	enqueuer := NewEnqueuer(users, queue, "@hourly", nil, testLogger())

	count, err := enqueuer.EnqueueAll(context.Background())
	require.NoError(t, err)

	// 2 users x 4 time ranges.
	assert.Equal(t, 8, count)
	assert.Len(t, queue.jobs, 8)
}

func TestEnqueueAllSkipsInFlightKeys(t *testing.T) {
	queue := &fakeQueue{}
	users := &listOnlyUserStore{users: []*api.User{{ID: 1, Email: "a@example.com"}}}
	enqueuer := NewEnqueuer(users, queue, "@hourly", nil, testLogger())

	count, err := enqueuer.EnqueueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	// Nothing processed yet: the second tick must not duplicate keys.
	count, err = enqueuer.EnqueueAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, queue.jobs, 4)
}

func TestEnqueueAllReenqueuesAfterCompletion(t *testing.T) {
	queue := &fakeQueue{}
	users := &listOnlyUserStore{users: []*api.User{{ID: 1, Email: "a@example.com"}}}
	enqueuer := NewEnqueuer(users, queue, "@hourly", nil, testLogger())

	_, err := enqueuer.EnqueueAll(context.Background())
	require.NoError(t, err)

	for {
		job, err := queue.ClaimNext(context.Background(), "worker-1")
		require.NoError(t, err)
		if job == nil {
			break
		}
		require.NoError(t, queue.Complete(context.Background(), job.ID))
	}

	count, err := enqueuer.EnqueueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count, "completed keys are recomputed next tick")
}

func TestWindowFor(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

	start, end := api.RangeWeek.Window(now)
	assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), end, "window ends at the next midnight, today inclusive")
	assert.Equal(t, time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC), start)

	start, end = api.RangeDay.Window(now)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
