package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/instant-call-service/internal/services"
	"github.com/senyabanana/instant-call-service/internal/utils"
)

// NotificationHandler - структура для обработки HTTP-запросов к входящим.
type NotificationHandler struct {
	Service *services.NotificationService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewNotificationHandler создает новый экземпляр NotificationHandler.
func NewNotificationHandler(service *services.NotificationService, logger *log.Logger, timeout time.Duration) *NotificationHandler {
	return &NotificationHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// PullNotifications обрабатывает запросы на получение входящих после курсора.
func (h *NotificationHandler) PullNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}
	userId, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	afterStr := r.URL.Query().Get("after")
	limitStr := r.URL.Query().Get("limit")
	kinds := r.URL.Query()["kind"]

	notifications, err := h.Service.PullNotifications(ctx, userId, afterStr, limitStr, kinds)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to retrieve notifications")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, notifications)
}

// MarkRead обрабатывает запросы на отметку уведомления прочитанным.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}
	userId, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Service.MarkRead(ctx, userId, r.PathValue("notificationId")); err != nil {
		utils.SendError(w, h.Logger, err, "failed to mark notification as read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
