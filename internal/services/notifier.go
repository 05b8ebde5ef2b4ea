package services

import (
	"context"

	"github.com/senyabanana/instant-call-service/internal/models"
)

// Notifier - доставка уведомлений: запись во входящие и попытка живой отправки.
type Notifier interface {
	Push(ctx context.Context, recipientId string, kind models.NotificationKind, payload models.NotificationPayload) (*models.Notification, error)
	PushAll(ctx context.Context, recipientIds []string, kind models.NotificationKind, payload models.NotificationPayload) ([]models.Notification, error)
}
