package services

import (
	"context"
	"testing"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPullNotificationsCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "plumbing", "w1")
	first := f.create(t, "requester", "plumbing")
	f.create(t, "requester", "plumbing")
	_, err := f.selection.CancelRequest(ctx, "requester", first.Request.ID)
	require.NoError(t, err)

	all, err := f.inboxes.PullNotifications(ctx, "w1", "", "", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, n := range all {
		assert.Equal(t, int64(i+1), n.Seq)
	}

	after, err := f.inboxes.PullNotifications(ctx, "w1", "1", "1", nil)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(2), after[0].Seq)

	closed, err := f.inboxes.PullNotifications(ctx, "w1", "", "", []string{"request.closed,request.selected"})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, models.RequestClosedKind, closed[0].Kind)
	assert.Equal(t, first.Request.ID, closed[0].Payload.RequestID)

	empty, err := f.inboxes.PullNotifications(ctx, "w1", "3", "", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPullNotificationsValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "plumbing")

	var tests = []struct {
		name  string
		after string
		limit string
		kinds []string
	}{
		{"negative cursor", "-1", "", nil},
		{"bad cursor", "abc", "", nil},
		{"zero limit", "", "0", nil},
		{"limit too large", "", "1000", nil},
		{"unknown kind", "", "", []string{"request.deleted"}},
	}

	for _, tt := range tests {
		_, err := f.inboxes.PullNotifications(ctx, "w1", tt.after, tt.limit, tt.kinds)
		assert.ErrorIs(t, err, models.ErrInvalidInput, tt.name)
	}
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "plumbing", "w1")
	f.create(t, "requester", "plumbing")

	list := f.inboxOf(t, "w1")
	require.Len(t, list, 1)
	require.False(t, list[0].Read)

	require.NoError(t, f.inboxes.MarkRead(ctx, "w1", list[0].ID))
	assert.True(t, f.inboxOf(t, "w1")[0].Read)

	assert.ErrorIs(t, f.inboxes.MarkRead(ctx, "w2", list[0].ID), models.ErrNotificationNotFound)
	assert.ErrorIs(t, f.inboxes.MarkRead(ctx, "w1", ""), models.ErrInvalidInput)
}
