package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/instant-call-service/internal/auth"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/services"
	"github.com/senyabanana/instant-call-service/internal/utils"
)

// RequestHandler - структура для обработки HTTP-запросов по заявкам.
type RequestHandler struct {
	Service   *services.RequestService
	Selection *services.SelectionService
	Logger    *log.Logger
	Timeout   time.Duration
}

// NewRequestHandler создаёт новый экземпляр RequestHandler.
func NewRequestHandler(service *services.RequestService, selection *services.SelectionService, logger *log.Logger, timeout time.Duration) *RequestHandler {
	return &RequestHandler{
		Service:   service,
		Selection: selection,
		Logger:    logger,
		Timeout:   timeout,
	}
}

// currentUser возвращает пользователя запроса или пишет 401.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userId, ok := auth.UserFromContext(r.Context())
	if !ok {
		utils.SendErrorResponse(w, http.StatusUnauthorized, models.ErrUnauthorized.Message)
	}
	return userId, ok
}

// CreateRequest обрабатывает запросы для создания заявки.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}
	userId, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var input models.RequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Service.CreateRequest(ctx, userId, input)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to create request")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, created)
}

// GetRequest обрабатывает запросы для получения заявки.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
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

	req, err := h.Service.GetRequest(ctx, userId, r.PathValue("requestId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to retrieve request")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, req)
}

// GetRequestStatus обрабатывает запросы для получения статуса заявки.
func (h *RequestHandler) GetRequestStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.Service.GetRequestStatus(ctx, userId, r.PathValue("requestId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to retrieve request status")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, status)
}

// CancelRequest обрабатывает запросы на отмену заявки.
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
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

	req, err := h.Selection.CancelRequest(ctx, userId, r.PathValue("requestId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to cancel request")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, req)
}

// SelectWinner обрабатывает запросы на выбор исполнителя.
func (h *RequestHandler) SelectWinner(w http.ResponseWriter, r *http.Request) {
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

	requestId := r.PathValue("requestId")
	workerId := r.URL.Query().Get("workerId")

	selection, err := h.Selection.SelectWinner(ctx, userId, requestId, workerId)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to select worker")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, selection)
}
