package notify_test

import (
	"context"
	"testing"

	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/notify"
	"github.com/diewo77/arte/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyAndMarkRead(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.User(t, db, models.RoleStagiaire, "s@arte.test")
	n := notify.New(db)
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, nil, u.ID, notify.Event{Kind: models.NotificationMessage, Title: "Hello"}))
	require.NoError(t, n.Notify(ctx, nil, u.ID, notify.Event{Kind: models.NotificationMessage, Title: "Again"}))
	require.NoError(t, n.Notify(ctx, nil, 0, notify.Event{Kind: models.NotificationMessage, Title: "nobody"}))

	unread, err := n.Unread(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	var first models.Notification
	require.NoError(t, db.Where("user_id = ?", u.ID).Order("id").First(&first).Error)

	got, err := n.MarkRead(ctx, u.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.NotNil(t, got.ReadAt)

	_, err = n.MarkRead(ctx, u.ID+1, first.ID)
	assert.Error(t, err, "someone else's notification is not found")

	changed, err := n.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	unread, err = n.Unread(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
