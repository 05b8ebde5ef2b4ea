package services

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/notify"
	"github.com/senyabanana/instant-call-service/internal/repository"
	"github.com/senyabanana/instant-call-service/internal/repository/memory"
)

var errInboxDown = errors.New("inbox is down")

// recordingLive запоминает живые отправки и может имитировать отказ канала.
type recordingLive struct {
	mu   sync.Mutex
	sent []models.Notification
	fail bool
}

func (l *recordingLive) Send(recipientId string, n models.Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errors.New("connection reset")
	}
	l.sent = append(l.sent, n)
	return nil
}

func (l *recordingLive) kindsFor(recipientId string) []models.NotificationKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var kinds []models.NotificationKind
	for _, n := range l.sent {
		if n.RecipientID == recipientId {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

// failingInbox отказывает в записи, пока fail выставлен.
type failingInbox struct {
	repository.NotificationRepository
	fail bool
}

func (f *failingInbox) AppendNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if f.fail {
		return nil, errInboxDown
	}
	return f.NotificationRepository.AppendNotification(ctx, n)
}

type fixture struct {
	store     *memory.Store
	live      *recordingLive
	inbox     *failingInbox
	requests  *RequestService
	estimates *EstimateService
	selection *SelectionService
	inboxes   *NotificationService
}

func newFixture(t *testing.T, category string, workers ...string) *fixture {
	t.Helper()

	store := memory.NewStore()
	for _, workerId := range workers {
		store.SetAvailable(category, workerId, true)
	}

	live := &recordingLive{}
	inbox := &failingInbox{NotificationRepository: store}
	delivery := notify.NewDelivery(inbox, live, log.New(io.Discard, "", 0))

	return &fixture{
		store:     store,
		live:      live,
		inbox:     inbox,
		requests:  NewRequestService(store, store, store, delivery),
		estimates: NewEstimateService(store, store, store, delivery),
		selection: NewSelectionService(store, store, store, delivery),
		inboxes:   NewNotificationService(store, 50),
	}
}

func (f *fixture) create(t *testing.T, requesterId, category string) *models.CreatedRequest {
	t.Helper()
	created, err := f.requests.CreateRequest(context.Background(), requesterId, models.RequestInput{
		CategoryID:  category,
		Description: "leaking kitchen tap",
		Location:    models.Location{Lat: 41.31, Lng: 69.28, Address: "Amir Temur 1"},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return created
}

func (f *fixture) inboxOf(t *testing.T, recipientId string) []models.Notification {
	t.Helper()
	list, err := f.store.PullNotifications(context.Background(), recipientId, 0, 100, nil)
	if err != nil {
		t.Fatalf("pull notifications: %v", err)
	}
	return list
}

func kinds(list []models.Notification) []models.NotificationKind {
	out := make([]models.NotificationKind, 0, len(list))
	for _, n := range list {
		out = append(out, n.Kind)
	}
	return out
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
