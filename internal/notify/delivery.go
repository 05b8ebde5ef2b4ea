// Package notify доставляет события получателям двумя путями:
// сначала запись во входящие, затем попытка отправки в живой канал.
package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/senyabanana/instant-call-service/internal/metrics"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"

	"github.com/google/uuid"
)

// LiveSender - живой канал. Отправка не блокирует и не гарантирует доставку.
type LiveSender interface {
	Send(recipientId string, n models.Notification) error
}

// Delivery объединяет входящие и живой канал в одну операцию.
type Delivery struct {
	Inbox  repository.NotificationRepository
	Live   LiveSender
	Logger *log.Logger
	now    func() time.Time
}

// NewDelivery создает новый экземпляр Delivery.
func NewDelivery(inbox repository.NotificationRepository, live LiveSender, logger *log.Logger) *Delivery {
	return &Delivery{
		Inbox:  inbox,
		Live:   live,
		Logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Push записывает событие во входящие получателя и планирует живую отправку.
// Внутри транзакции живая отправка выполняется после коммита, ошибка записи откатывает транзакцию.
func (d *Delivery) Push(ctx context.Context, recipientId string, kind models.NotificationKind, payload models.NotificationPayload) (*models.Notification, error) {
	entry := models.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientId,
		Kind:        kind,
		Payload:     payload,
		CreatedAt:   d.now(),
	}

	stored, err := d.Inbox.AppendNotification(ctx, entry)
	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("durable").Inc()
		return nil, fmt.Errorf("%w: %w", models.ErrDeliveryFailure, err)
	}

	sent := *stored
	repository.AfterCommit(ctx, func() {
		d.sendLive(sent)
	})
	return stored, nil
}

// PushAll рассылает одно событие нескольким получателям в порядке их ID.
func (d *Delivery) PushAll(ctx context.Context, recipientIds []string, kind models.NotificationKind, payload models.NotificationPayload) ([]models.Notification, error) {
	sorted := append([]string(nil), recipientIds...)
	sort.Strings(sorted)

	entries := make([]models.Notification, 0, len(sorted))
	for _, recipientId := range sorted {
		entry, err := d.Push(ctx, recipientId, kind, payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (d *Delivery) sendLive(n models.Notification) {
	if d.Live == nil {
		return
	}
	if err := d.Live.Send(n.RecipientID, n); err != nil {
		metrics.DeliveryFailures.WithLabelValues("live").Inc()
		d.Logger.Printf("live push of %s to %s failed: %v", n.Kind, n.RecipientID, err)
		return
	}
	metrics.LivePushes.WithLabelValues(string(n.Kind)).Inc()
}
