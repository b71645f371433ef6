package notification

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openon-app/capsule-api/internal/model"
	"github.com/openon-app/capsule-api/pkg/logger"
)

type fakeNotificationRepo struct {
	mu   sync.Mutex
	rows []*model.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.CapsuleID == n.CapsuleID && existing.UserID == n.UserID && existing.Kind == n.Kind {
			return false, nil
		}
	}
	cp := *n
	r.rows = append(r.rows, &cp)
	return true, nil
}

func (r *fakeNotificationRepo) ListPending(_ context.Context, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.rows {
		if n.Status == model.NotificationStatusPending {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			at := sentAt
			n.Status = model.NotificationStatusSent
			n.SentAt = &at
		}
	}
	return nil
}

func (r *fakeNotificationRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			msg := errMsg
			n.Status = model.NotificationStatusFailed
			n.LastError = &msg
		}
	}
	return nil
}

func (r *fakeNotificationRepo) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func newTestService() (*Service, *fakeNotificationRepo) {
	repo := &fakeNotificationRepo{}
	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	return NewService(repo, log, nil), repo
}

func TestEmitDeduplicates(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	userID := uuid.New()
	capsuleID := uuid.New()

	inserted, err := svc.Emit(ctx, userID, capsuleID, model.NotificationKindUnlockSoon, "t", "b", now)
	require.NoError(t, err)
	assert.True(t, inserted)

	// The same triple again, later and with different text, is still a
	// duplicate.
	inserted, err = svc.Emit(ctx, userID, capsuleID, model.NotificationKindUnlockSoon, "other", "text", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.Len(t, repo.rows, 1)
}

func TestEmitDistinguishesKindAndUser(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	userA := uuid.New()
	userB := uuid.New()
	capsuleID := uuid.New()

	for _, emit := range []struct {
		user uuid.UUID
		kind model.NotificationKind
	}{
		{userA, model.NotificationKindUnlockSoon},
		{userA, model.NotificationKindUnlocked},
		{userB, model.NotificationKindUnlocked},
	} {
		inserted, err := svc.Emit(ctx, emit.user, capsuleID, emit.kind, "t", "b", now)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	assert.Len(t, repo.rows, 3)
}

func TestEmitConcurrentSameTripleOnce(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	userID := uuid.New()
	capsuleID := uuid.New()

	const n = 16
	var wg sync.WaitGroup
	insertedCount := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, err := svc.Emit(ctx, userID, capsuleID, model.NotificationKindUnlocked, "t", "b", now)
			assert.NoError(t, err)
			insertedCount[i] = inserted
		}(i)
	}
	wg.Wait()

	var wins int
	for _, inserted := range insertedCount {
		if inserted {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, repo.rows, 1)
}
