package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/services"
	"github.com/senyabanana/instant-call-service/internal/utils"
)

// EstimateHandler - структура для обработки HTTP-запросов по предложениям.
type EstimateHandler struct {
	Service *services.EstimateService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewEstimateHandler создает новый экземпляр EstimateHandler.
func NewEstimateHandler(service *services.EstimateService, logger *log.Logger, timeout time.Duration) *EstimateHandler {
	return &EstimateHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// SubmitEstimate обрабатывает запросы на подачу предложения исполнителем.
func (h *EstimateHandler) SubmitEstimate(w http.ResponseWriter, r *http.Request) {
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

	var input models.EstimateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	estimate, err := h.Service.SubmitEstimate(ctx, userId, r.PathValue("requestId"), input)
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to submit estimate")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, estimate)
}

// ListEstimates обрабатывает запросы для получения предложений по заявке.
func (h *EstimateHandler) ListEstimates(w http.ResponseWriter, r *http.Request) {
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

	estimates, err := h.Service.ListEstimates(ctx, userId, r.PathValue("requestId"))
	if err != nil {
		utils.SendError(w, h.Logger, err, "failed to retrieve estimates")
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, estimates)
}
