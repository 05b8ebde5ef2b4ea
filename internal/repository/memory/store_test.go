package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRequest(t *testing.T, store *Store, id string, recipients ...string) {
	t.Helper()
	_, err := store.CreateRequest(context.Background(), models.Request{
		ID:          id,
		RequesterID: "requester",
		CategoryID:  "plumbing",
		Status:      models.OpenRequest,
		CreatedAt:   time.Now(),
	}, recipients)
	require.NoError(t, err)
}

func TestWithinTxRollsBack(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	openRequest(t, store, "r1", "w1")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := store.UpsertEstimate(ctx, models.Estimate{ID: "e1", RequestID: "r1", WorkerID: "w1", Price: 10}); err != nil {
			return err
		}
		if _, err := store.CloseRequest(ctx, "r1", models.CancelledRequest, "", time.Now()); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	req, err := store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.OpenRequest, req.Status)

	list, err := store.ListEstimates(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWithinTxRecoversAfterPanic(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	openRequest(t, store, "r1", "w1")

	hookRan := false
	assert.Panics(t, func() {
		_ = store.WithinTx(ctx, func(ctx context.Context) error {
			repository.AfterCommit(ctx, func() { hookRan = true })
			if _, err := store.CloseRequest(ctx, "r1", models.CancelledRequest, "", time.Now()); err != nil {
				return err
			}
			panic("handler bug")
		})
	})
	assert.False(t, hookRan)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := store.GetRequest(ctx, "r1")
		assert.NoError(t, err)
		assert.Equal(t, models.OpenRequest, req.Status)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("store stayed locked after panic")
	}

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := store.CloseRequest(ctx, "r1", models.CancelledRequest, "", time.Now())
		return err
	})
	require.NoError(t, err)
}

func TestUpsertEstimateKeepsOneLiveEstimatePerWorker(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	openRequest(t, store, "r1", "w1")

	first, err := store.UpsertEstimate(ctx, models.Estimate{ID: "e1", RequestID: "r1", WorkerID: "w1", Price: 10})
	require.NoError(t, err)
	second, err := store.UpsertEstimate(ctx, models.Estimate{ID: "e2", RequestID: "r1", WorkerID: "w1", Price: 12})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 12.0, second.Price)

	_, err = store.MarkSelected(ctx, "e1")
	require.NoError(t, err)
	_, err = store.UpsertEstimate(ctx, models.Estimate{ID: "e3", RequestID: "r1", WorkerID: "w1", Price: 8})
	assert.ErrorIs(t, err, models.ErrRequestNotOpen)
}

func TestCloseRequestOnlyFromOpen(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	openRequest(t, store, "r1")

	_, err := store.CloseRequest(ctx, "r1", models.CancelledRequest, "", time.Now())
	require.NoError(t, err)
	_, err = store.CloseRequest(ctx, "r1", models.ExpiredRequest, "", time.Now())
	assert.ErrorIs(t, err, models.ErrRequestNotOpen)
	_, err = store.CloseRequest(ctx, "missing", models.ExpiredRequest, "", time.Now())
	assert.ErrorIs(t, err, models.ErrRequestNotFound)
}

func TestPullNotificationsFiltersAndLimits(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, kind := range []models.NotificationKind{models.RequestCreatedKind, models.RequestClosedKind, models.RequestCreatedKind} {
		_, err := store.AppendNotification(ctx, models.Notification{ID: string(kind) + time.Now().String(), RecipientID: "w1", Kind: kind})
		require.NoError(t, err)
	}

	limited, err := store.PullNotifications(ctx, "w1", 0, 2, nil)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(1), limited[0].Seq)

	created, err := store.PullNotifications(ctx, "w1", 1, 10, []string{string(models.RequestCreatedKind)})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(3), created[0].Seq)
}
