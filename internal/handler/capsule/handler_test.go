package capsule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openon-app/capsule-api/internal/model"
)

func testCapsule() *model.Capsule {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &model.Capsule{
		Base:        model.Base{ID: uuid.New(), CreatedAt: now},
		SenderID:    uuid.New(),
		RecipientID: uuid.New(),
		Title:       "happy birthday",
		Body:        "open me later",
		Status:      model.CapsuleStatusSealed,
		UnlocksAt:   now.Add(24 * time.Hour),
	}
}

func TestRenderCapsuleSenderSeesEverything(t *testing.T) {
	c := testCapsule()
	c.IsAnonymous = true

	v := renderCapsule(c, true)
	require.NotNil(t, v.SenderID)
	assert.Equal(t, c.SenderID, *v.SenderID)
	require.NotNil(t, v.Body)
	assert.Equal(t, c.Body, *v.Body)
}

func TestRenderCapsuleRecipientBodyHiddenUntilOpened(t *testing.T) {
	c := testCapsule()

	v := renderCapsule(c, false)
	assert.Nil(t, v.Body, "sealed body must not leak to the recipient")
	assert.Equal(t, c.Title, v.Title)

	c.Status = model.CapsuleStatusReady
	v = renderCapsule(c, false)
	assert.Nil(t, v.Body, "ready but unopened body must not leak")

	openedAt := c.UnlocksAt.Add(time.Hour)
	c.OpenedAt = &openedAt
	c.Status = model.CapsuleStatusOpened
	v = renderCapsule(c, false)
	require.NotNil(t, v.Body)
	assert.Equal(t, c.Body, *v.Body)
}

func TestRenderCapsuleAnonymousSenderHidden(t *testing.T) {
	c := testCapsule()
	c.IsAnonymous = true

	v := renderCapsule(c, false)
	assert.Nil(t, v.SenderID)

	c.IsAnonymous = false
	v = renderCapsule(c, false)
	require.NotNil(t, v.SenderID)
	assert.Equal(t, c.SenderID, *v.SenderID)
}

func TestRenderCapsuleDeleteDeadline(t *testing.T) {
	c := testCapsule()
	c.IsDisappearing = true
	seconds := int64(60)
	c.DisappearingAfterSeconds = &seconds

	v := renderCapsule(c, false)
	assert.Nil(t, v.DeleteAt, "no deadline before opening")

	openedAt := c.UnlocksAt.Add(time.Hour)
	c.OpenedAt = &openedAt
	c.Status = model.CapsuleStatusOpened
	v = renderCapsule(c, false)
	require.NotNil(t, v.DeleteAt)
	assert.Equal(t, openedAt.Add(60*time.Second), *v.DeleteAt)
}
