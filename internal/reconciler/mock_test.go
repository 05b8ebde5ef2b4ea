package reconciler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

// fakeServer отвечает статусом заявки и входящими из памяти.
type fakeServer struct {
	mu          sync.Mutex
	statuses    map[string]models.RequestStatus
	inbox       []models.Notification
	statusCalls int
	pullCalls   int
	statusErr   error
}

func (s *fakeServer) RequestStatus(ctx context.Context, requestId string) (models.RequestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.statusErr != nil {
		return "", s.statusErr
	}
	status, ok := s.statuses[requestId]
	if !ok {
		return "", models.ErrRequestNotFound
	}
	return status, nil
}

func (s *fakeServer) PullNotifications(ctx context.Context, after int64, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pullCalls++
	var page []models.Notification
	for _, n := range s.inbox {
		if n.Seq > after && len(page) < limit {
			page = append(page, n)
		}
	}
	return page, nil
}

func (s *fakeServer) append(kind models.NotificationKind, payload models.NotificationPayload) models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := models.Notification{
		ID:          "n" + time.Now().Format("150405.000000000"),
		RecipientID: "requester",
		Seq:         int64(len(s.inbox)) + 1,
		Kind:        kind,
		Payload:     payload,
	}
	s.inbox = append(s.inbox, n)
	return n
}

// fakeStream отдаёт события из канала, закрытие канала означает разрыв.
type fakeStream struct {
	events chan models.Notification
}

func (s *fakeStream) Next(ctx context.Context) (models.Notification, error) {
	select {
	case <-ctx.Done():
		return models.Notification{}, ctx.Err()
	case n, ok := <-s.events:
		if !ok {
			return models.Notification{}, errors.New("connection closed")
		}
		return n, nil
	}
}

func (s *fakeStream) Close() error { return nil }

type fakeDialer struct {
	mu      sync.Mutex
	streams []*fakeStream
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.streams) == 0 {
		return nil, errors.New("no route to host")
	}
	s := d.streams[0]
	d.streams = d.streams[1:]
	return s, nil
}

func openMemStore(t *testing.T, fs vfs.FS) *PebbleStore {
	t.Helper()
	store, err := OpenPebbleStore("state", &pebble.Options{FS: fs})
	require.NoError(t, err)
	return store
}

func newTestReconciler(t *testing.T, server Server, store Store, now time.Time) *Reconciler {
	t.Helper()
	rec := New(server, store, log.New(io.Discard, "", 0))
	rec.now = func() time.Time { return now }
	return rec
}

func estimatePayload(requestId, workerId string, price float64, at time.Time) models.NotificationPayload {
	return models.NotificationPayload{
		RequestID:   requestId,
		EstimateID:  "e-" + workerId,
		WorkerID:    workerId,
		Price:       price,
		SubmittedAt: &at,
	}
}
