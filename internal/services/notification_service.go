package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"
	"github.com/senyabanana/instant-call-service/internal/utils"
)

// NotificationService отдаёт входящие получателя для сверки после пропущенных живых событий.
type NotificationService struct {
	Inbox        repository.NotificationRepository
	DefaultLimit int
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(inbox repository.NotificationRepository, defaultLimit int) *NotificationService {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &NotificationService{Inbox: inbox, DefaultLimit: defaultLimit}
}

// PullNotifications возвращает записи получателя после курсора в порядке создания.
func (s *NotificationService) PullNotifications(ctx context.Context, recipientId, afterStr, limitStr string, kinds []string) ([]models.Notification, error) {
	after, err := utils.ParseCursor(afterStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	limit, err := utils.ParseLimit(limitStr, s.DefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	allowedKinds := map[models.NotificationKind]bool{
		models.RequestCreatedKind:    true,
		models.EstimateSubmittedKind: true,
		models.RequestSelectedKind:   true,
		models.RequestClosedKind:     true,
	}
	var filter []string
	for _, raw := range kinds {
		for _, kind := range strings.Split(raw, ",") {
			kind = strings.TrimSpace(kind)
			if kind == "" {
				continue
			}
			if !allowedKinds[models.NotificationKind(kind)] {
				return nil, fmt.Errorf("%w: unsupported notification kind: %s", models.ErrInvalidInput, kind)
			}
			filter = append(filter, kind)
		}
	}

	return s.Inbox.PullNotifications(ctx, recipientId, after, limit, filter)
}

// MarkRead отмечает запись получателя прочитанной.
func (s *NotificationService) MarkRead(ctx context.Context, recipientId, notificationId string) error {
	if notificationId == "" {
		return fmt.Errorf("%w: missing notificationId", models.ErrInvalidInput)
	}
	return s.Inbox.MarkNotificationRead(ctx, recipientId, notificationId)
}
