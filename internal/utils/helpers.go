package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/senyabanana/instant-call-service/internal/models"
)

const maxPullLimit = 200

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// SendError пишет ответ для ошибки сервиса. Ожидаемые ошибки отдаются со своим кодом,
// остальные логируются и превращаются в 500 с сообщением fallback.
func SendError(w http.ResponseWriter, logger *log.Logger, err error, fallback string) {
	logger.Println(err)

	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		message := err.Error()
		if errorResponse.StatusCode >= http.StatusInternalServerError {
			message = errorResponse.Message
		}
		SendErrorResponse(w, errorResponse.StatusCode, message)
		return
	}
	SendErrorResponse(w, http.StatusInternalServerError, fallback)
}

// SendJSON отправляет успешный ответ в формате JSON
func SendJSON(w http.ResponseWriter, logger *log.Logger, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Println(err)
	}
}

// ParseLimit обрабатывает limit для выборки уведомлений
func ParseLimit(limitStr string, defaultLimit int) (int, error) {
	if limitStr == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxPullLimit {
		return 0, fmt.Errorf("invalid limit parameter, must be a positive integer [1:%d]", maxPullLimit)
	}
	return limit, nil
}

// ParseCursor обрабатывает курсор after
func ParseCursor(afterStr string) (int64, error) {
	if afterStr == "" {
		return 0, nil
	}
	after, err := strconv.ParseInt(afterStr, 10, 64)
	if err != nil || after < 0 {
		return 0, fmt.Errorf("invalid after parameter, must be a non-negative integer")
	}
	return after, nil
}
