package capsule

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openon-app/capsule-api/internal/model"
	"github.com/openon-app/capsule-api/internal/repository"
	"github.com/openon-app/capsule-api/internal/service/notification"
	recipientsvc "github.com/openon-app/capsule-api/internal/service/recipient"
	"github.com/openon-app/capsule-api/pkg/logger"
)

// memCapsuleRepo mirrors the conditional-update semantics of the SQL
// implementation, mutex included, so the open race is real in tests.
type memCapsuleRepo struct {
	mu       sync.Mutex
	capsules map[uuid.UUID]*model.Capsule

	// recipients backs the inbox join the SQL implementation does.
	recipients *memRecipientRepo
}

func newMemCapsuleRepo(recipients *memRecipientRepo) *memCapsuleRepo {
	return &memCapsuleRepo{
		capsules:   make(map[uuid.UUID]*model.Capsule),
		recipients: recipients,
	}
}

func (r *memCapsuleRepo) clone(c *model.Capsule) *model.Capsule {
	cp := *c
	return &cp
}

func (r *memCapsuleRepo) Create(_ context.Context, c *model.Capsule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capsules[c.ID] = r.clone(c)
	return nil
}

func (r *memCapsuleRepo) Get(_ context.Context, id uuid.UUID) (*model.Capsule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capsules[id]
	if !ok {
		return nil, repository.ErrCapsuleNotFound
	}
	return r.clone(c), nil
}

func (r *memCapsuleRepo) UpdateContent(_ context.Context, id uuid.UUID, title, body string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capsules[id]
	if !ok {
		return repository.ErrCapsuleNotFound
	}
	c.Title = title
	c.Body = body
	c.UpdatedAt = updatedAt
	return nil
}

func (r *memCapsuleRepo) SoftDelete(_ context.Context, id uuid.UUID, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capsules[id]
	if !ok {
		return repository.ErrCapsuleNotFound
	}
	del := deletedAt
	c.DeletedAt = &del
	c.Status = model.CapsuleStatusExpired
	return nil
}

func (r *memCapsuleRepo) Open(_ context.Context, id uuid.UUID, openedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capsules[id]
	if !ok {
		return false, nil
	}
	if c.OpenedAt != nil || c.DeletedAt != nil {
		return false, nil
	}
	if openedAt.Before(c.UnlocksAt) {
		return false, nil
	}
	if c.ExpiresAt != nil && !openedAt.Before(*c.ExpiresAt) {
		return false, nil
	}
	at := openedAt
	c.OpenedAt = &at
	c.Status = model.CapsuleStatusOpened
	return true, nil
}

func (r *memCapsuleRepo) ListBySender(_ context.Context, senderID uuid.UUID) ([]*model.Capsule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Capsule
	for _, c := range r.capsules {
		if c.SenderID == senderID {
			out = append(out, r.clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memCapsuleRepo) ListForRecipientUser(ctx context.Context, userID uuid.UUID, email string) ([]*model.Capsule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Capsule
	for _, c := range r.capsules {
		rec, err := r.recipients.Get(ctx, c.RecipientID)
		if err != nil {
			continue
		}
		linked := rec.LinkedUserID != nil && *rec.LinkedUserID == userID
		if linked || (email != "" && strings.EqualFold(rec.Email, email)) {
			out = append(out, r.clone(c))
		}
	}
	return out, nil
}

func (r *memCapsuleRepo) ListSealedUnlockingBetween(_ context.Context, from, to time.Time) ([]*model.Capsule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Capsule
	for _, c := range r.capsules {
		if c.OpenedAt != nil || c.DeletedAt != nil {
			continue
		}
		if c.UnlocksAt.After(from) && !c.UnlocksAt.After(to) {
			out = append(out, r.clone(c))
		}
	}
	return out, nil
}

func (r *memCapsuleRepo) MarkReady(_ context.Context, id uuid.UUID, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.capsules[id]
	if !ok || c.Status != model.CapsuleStatusSealed {
		return false, nil
	}
	c.Status = model.CapsuleStatusReady
	return true, nil
}

func (r *memCapsuleRepo) MarkExpiredDue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.capsules {
		if c.OpenedAt == nil && c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) && c.Status != model.CapsuleStatusExpired {
			c.Status = model.CapsuleStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *memCapsuleRepo) ListDisappearingExpiringBetween(_ context.Context, from, to time.Time) ([]*model.Capsule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Capsule
	for _, c := range r.capsules {
		if !c.IsDisappearing || c.OpenedAt == nil || c.DeletedAt != nil {
			continue
		}
		deadline := c.OpenedAt.Add(c.DisappearingDuration())
		if deadline.After(from) && !deadline.After(to) {
			out = append(out, r.clone(c))
		}
	}
	return out, nil
}

func (r *memCapsuleRepo) SoftDeleteDueDisappearing(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.capsules {
		if !c.IsDisappearing || c.OpenedAt == nil || c.DeletedAt != nil {
			continue
		}
		deadline := c.OpenedAt.Add(c.DisappearingDuration())
		if !now.Before(deadline) {
			c.DeletedAt = &deadline
			c.Status = model.CapsuleStatusExpired
			n++
		}
	}
	return n, nil
}

type memRecipientRepo struct {
	mu         sync.Mutex
	recipients map[uuid.UUID]*model.Recipient
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{recipients: make(map[uuid.UUID]*model.Recipient)}
}

func (r *memRecipientRepo) Create(_ context.Context, rec *model.Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.recipients[rec.ID] = &cp
	return nil
}

func (r *memRecipientRepo) Get(_ context.Context, id uuid.UUID) (*model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok {
		return nil, repository.ErrRecipientNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memRecipientRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Recipient
	for _, rec := range r.recipients {
		if rec.OwnerUserID == ownerID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRecipientRepo) LinkUser(_ context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recipients[id]
	if !ok {
		return repository.ErrRecipientNotFound
	}
	uid := userID
	rec.LinkedUserID = &uid
	return nil
}

type memNotificationRepo struct {
	mu            sync.Mutex
	notifications []*model.Notification
}

func (r *memNotificationRepo) Create(_ context.Context, n *model.Notification) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.notifications {
		if existing.CapsuleID == n.CapsuleID && existing.UserID == n.UserID && existing.Kind == n.Kind {
			return false, nil
		}
	}
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return true, nil
}

func (r *memNotificationRepo) ListPending(_ context.Context, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.Status == model.NotificationStatusPending {
			cp := *n
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memNotificationRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			at := sentAt
			n.Status = model.NotificationStatusSent
			n.SentAt = &at
		}
	}
	return nil
}

func (r *memNotificationRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			msg := errMsg
			n.Status = model.NotificationStatusFailed
			n.LastError = &msg
			n.RetryCount++
		}
	}
	return nil
}

func (r *memNotificationRepo) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memNotificationRepo) byKind(kind model.NotificationKind) []*model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type testEnv struct {
	svc        *Service
	capsules   *memCapsuleRepo
	recipients *memRecipientRepo
	intents    *memNotificationRepo

	senderID    uuid.UUID
	userID      uuid.UUID
	userEmail   string
	recipientID uuid.UUID
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	log := logger.NewLogger(&logger.Config{Output: io.Discard})
	recipients := newMemRecipientRepo()
	capsules := newMemCapsuleRepo(recipients)
	intents := &memNotificationRepo{}

	recipientSvc := recipientsvc.NewService(recipients)
	notifierSvc := notification.NewService(intents, log, nil)

	svc := NewService(capsules, recipientSvc, notifierSvc, log, nil)
	svc.now = func() time.Time { return now }

	env := &testEnv{
		svc:        svc,
		capsules:   capsules,
		recipients: recipients,
		intents:    intents,
		senderID:   uuid.New(),
		userID:     uuid.New(),
		userEmail:  "alice@example.com",
	}

	linked := env.userID
	recipient := &model.Recipient{
		Base:         model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		OwnerUserID:  env.senderID,
		DisplayName:  "Alice",
		Email:        env.userEmail,
		LinkedUserID: &linked,
	}
	require.NoError(t, recipients.Create(context.Background(), recipient))
	env.recipientID = recipient.ID

	return env
}

func (e *testEnv) setNow(now time.Time) {
	e.svc.now = func() time.Time { return now }
}

func (e *testEnv) createCapsule(t *testing.T, req *model.CreateCapsuleRequest) *model.Capsule {
	t.Helper()
	c, err := e.svc.Create(context.Background(), e.senderID, req)
	require.NoError(t, err)
	return c
}

func TestCreateValidation(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     model.CreateCapsuleRequest
		wantErr error
	}{
		{
			name: "unlock in the past",
			req: model.CreateCapsuleRequest{
				RecipientID: env.recipientID,
				Title:       "t", Body: "b",
				UnlocksAt: now.Add(-time.Minute),
			},
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "unlock exactly now",
			req: model.CreateCapsuleRequest{
				RecipientID: env.recipientID,
				Title:       "t", Body: "b",
				UnlocksAt: now,
			},
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "disappearing without duration",
			req: model.CreateCapsuleRequest{
				RecipientID: env.recipientID,
				Title:       "t", Body: "b",
				UnlocksAt:      now.Add(time.Hour),
				IsDisappearing: true,
			},
			wantErr: ErrInvalidDisappearingConfig,
		},
		{
			name: "duration without disappearing flag",
			req: model.CreateCapsuleRequest{
				RecipientID: env.recipientID,
				Title:       "t", Body: "b",
				UnlocksAt:                now.Add(time.Hour),
				DisappearingAfterSeconds: ptrInt64(60),
			},
			wantErr: ErrInvalidDisappearingConfig,
		},
		{
			name: "zero disappearing duration",
			req: model.CreateCapsuleRequest{
				RecipientID: env.recipientID,
				Title:       "t", Body: "b",
				UnlocksAt:                now.Add(time.Hour),
				IsDisappearing:           true,
				DisappearingAfterSeconds: ptrInt64(0),
			},
			wantErr: ErrInvalidDisappearingConfig,
		},
		{
			name: "expiry before unlock",
			req: model.CreateCapsuleRequest{
				RecipientID: env.recipientID,
				Title:       "t", Body: "b",
				UnlocksAt: now.Add(2 * time.Hour),
				ExpiresAt: ptrTime(now.Add(time.Hour)),
			},
			wantErr: ErrInvalidExpiry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, env.senderID, &tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateRejectsForeignRecipient(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)

	stranger := uuid.New()
	_, err := env.svc.Create(context.Background(), stranger, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrRecipientNotOwned)
}

func TestCreateEmitsNewCapsuleIntent(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "hello", Body: "future",
		UnlocksAt: now.Add(time.Hour),
	})
	assert.Equal(t, model.CapsuleStatusSealed, c.Status)

	intents := env.intents.byKind(model.NotificationKindNewCapsule)
	require.Len(t, intents, 1)
	assert.Equal(t, env.userID, intents[0].UserID)
	assert.Equal(t, c.ID, intents[0].CapsuleID)
}

func TestUpdateContentOnlyWhileSealed(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "draft", Body: "v1",
		UnlocksAt: now.Add(time.Hour),
	})

	newBody := "v2"
	updated, err := env.svc.UpdateContent(ctx, c.ID, env.senderID, &model.UpdateCapsuleContentRequest{Body: &newBody})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Body)

	// Someone else's edit is rejected before any status check.
	_, err = env.svc.UpdateContent(ctx, c.ID, uuid.New(), &model.UpdateCapsuleContentRequest{Body: &newBody})
	assert.ErrorIs(t, err, ErrNotSender)

	// Once the unlock time passes the capsule is immutable, even
	// though nobody has opened it yet.
	env.setNow(now.Add(2 * time.Hour))
	_, err = env.svc.UpdateContent(ctx, c.ID, env.senderID, &model.UpdateCapsuleContentRequest{Body: &newBody})
	assert.ErrorIs(t, err, ErrImmutableAfterSeal)
}

func TestDeleteRules(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})

	assert.ErrorIs(t, env.svc.Delete(ctx, c.ID, uuid.New()), ErrNotSender)

	require.NoError(t, env.svc.Delete(ctx, c.ID, env.senderID))

	// Deleted capsules read as absent, for the sender too.
	_, _, err := env.svc.GetForUser(ctx, c.ID, env.senderID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOpenedCapsuleRefused(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})

	env.setNow(now.Add(2 * time.Hour))
	_, err := env.svc.Open(ctx, c.ID, env.userID, env.userEmail)
	require.NoError(t, err)

	err = env.svc.Delete(ctx, c.ID, env.senderID)
	assert.ErrorIs(t, err, ErrCannotDeleteOpened)
}

func TestOpenLifecycle(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})

	// Too early.
	_, err := env.svc.Open(ctx, c.ID, env.userID, env.userEmail)
	assert.ErrorIs(t, err, ErrNotYetUnlocked)

	// Not the recipient.
	env.setNow(now.Add(2 * time.Hour))
	_, err = env.svc.Open(ctx, c.ID, uuid.New(), "mallory@example.com")
	assert.ErrorIs(t, err, ErrUnauthorizedRecipient)

	// The recipient opens it.
	opened, err := env.svc.Open(ctx, c.ID, env.userID, env.userEmail)
	require.NoError(t, err)
	require.NotNil(t, opened.OpenedAt)
	assert.Equal(t, model.CapsuleStatusOpened, opened.Status)
	assert.Equal(t, now.Add(2*time.Hour), *opened.OpenedAt)

	// The sender is told, exactly once.
	intents := env.intents.byKind(model.NotificationKindUnlocked)
	require.Len(t, intents, 1)
	assert.Equal(t, env.senderID, intents[0].UserID)

	// A second open is a conflict that still hands back the capsule.
	again, err := env.svc.Open(ctx, c.ID, env.userID, env.userEmail)
	assert.ErrorIs(t, err, ErrAlreadyOpened)
	require.NotNil(t, again)
	assert.Equal(t, opened.OpenedAt.Unix(), again.OpenedAt.Unix())
}

func TestOpenExpiredCapsule(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
		ExpiresAt: ptrTime(now.Add(2 * time.Hour)),
	})

	env.setNow(now.Add(3 * time.Hour))
	_, err := env.svc.Open(ctx, c.ID, env.userID, env.userEmail)
	assert.ErrorIs(t, err, ErrCapsuleExpired)
}

func TestOpenRaceOneWinner(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})
	env.setNow(now.Add(2 * time.Hour))

	const attempts = 32
	var wg sync.WaitGroup
	results := make([]error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := env.svc.Open(ctx, c.ID, env.userID, env.userEmail)
			results[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyOpened):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins, "exactly one open attempt must win")
	assert.Equal(t, attempts-1, conflicts)

	// The race produced one opened_at and one sender intent.
	stored, err := env.capsules.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.OpenedAt)
	assert.Len(t, env.intents.byKind(model.NotificationKindUnlocked), 1)
}

func TestDisappearingCapsuleReadSide(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt:                now.Add(time.Hour),
		IsDisappearing:           true,
		DisappearingAfterSeconds: ptrInt64(60),
	})

	openTime := now.Add(2 * time.Hour)
	env.setNow(openTime)
	opened, err := env.svc.Open(ctx, c.ID, env.userID, env.userEmail)
	require.NoError(t, err)
	// Opening never persists the deletion marker; the deadline is
	// derived from opened_at until the sweep stamps it.
	assert.Nil(t, opened.DeletedAt)

	// Half way through the window the capsule is still readable.
	env.setNow(openTime.Add(30 * time.Second))
	got, _, err := env.svc.GetForUser(ctx, c.ID, env.userID, env.userEmail)
	require.NoError(t, err)
	assert.Equal(t, model.CapsuleStatusOpened, got.Status)

	// At the deadline it reads as absent even before any sweep ran.
	env.setNow(openTime.Add(60 * time.Second))
	_, _, err = env.svc.GetForUser(ctx, c.ID, env.userID, env.userEmail)
	assert.ErrorIs(t, err, ErrNotFound)

	// The sweep stamps deleted_at with exactly opened_at + duration.
	swept, err := env.capsules.SoftDeleteDueDisappearing(ctx, openTime.Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	stored, err := env.capsules.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DeletedAt)
	assert.Equal(t, openTime.Add(60*time.Second), *stored.DeletedAt)
}

func TestGetForUserHidesFromStrangers(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})

	_, isSender, err := env.svc.GetForUser(ctx, c.ID, env.senderID, "")
	require.NoError(t, err)
	assert.True(t, isSender)

	_, isSender, err = env.svc.GetForUser(ctx, c.ID, env.userID, env.userEmail)
	require.NoError(t, err)
	assert.False(t, isSender)

	_, _, err = env.svc.GetForUser(ctx, c.ID, uuid.New(), "stranger@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSentRecomputesStatus(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	c := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "t", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})

	// The stored status cache still says sealed, but the list reflects
	// the clock.
	env.setNow(now.Add(2 * time.Hour))
	sent, err := env.svc.ListSent(ctx, env.senderID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, c.ID, sent[0].ID)
	assert.Equal(t, model.CapsuleStatusReady, sent[0].Status)
}

func TestListInboxFiltersDisappeared(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	ctx := context.Background()

	keep := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "keep", Body: "b",
		UnlocksAt: now.Add(time.Hour),
	})
	gone := env.createCapsule(t, &model.CreateCapsuleRequest{
		RecipientID: env.recipientID,
		Title:       "gone", Body: "b",
		UnlocksAt:                now.Add(time.Hour),
		IsDisappearing:           true,
		DisappearingAfterSeconds: ptrInt64(60),
	})

	env.setNow(now.Add(2 * time.Hour))
	_, err := env.svc.Open(ctx, gone.ID, env.userID, env.userEmail)
	require.NoError(t, err)

	// Inside the window both capsules are listed.
	env.setNow(now.Add(2*time.Hour + 30*time.Second))
	inbox, err := env.svc.ListInbox(ctx, env.userID, env.userEmail)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)

	// Past the window the disappearing one drops out of the inbox.
	env.setNow(now.Add(2*time.Hour + 2*time.Minute))
	inbox, err = env.svc.ListInbox(ctx, env.userID, env.userEmail)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, keep.ID, inbox[0].ID)
}
