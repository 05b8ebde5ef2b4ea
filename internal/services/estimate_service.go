package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/senyabanana/instant-call-service/internal/metrics"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"

	"github.com/google/uuid"
)

const (
	maxPrice      = 9999999999.99
	maxNoteLength = 1000
)

// EstimateService принимает и хранит ценовые предложения исполнителей.
type EstimateService struct {
	Requests  repository.RequestRepository
	Estimates repository.EstimateRepository
	Tx        repository.Transactor
	Notifier  Notifier
	now       func() time.Time
}

// NewEstimateService создает новый экземпляр EstimateService.
func NewEstimateService(requests repository.RequestRepository, estimates repository.EstimateRepository, tx repository.Transactor, notifier Notifier) *EstimateService {
	return &EstimateService{
		Requests:  requests,
		Estimates: estimates,
		Tx:        tx,
		Notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitEstimate сохраняет предложение исполнителя по открытой заявке.
// Повторная подача заменяет активное предложение того же исполнителя.
func (s *EstimateService) SubmitEstimate(ctx context.Context, workerId, requestId string, input models.EstimateInput) (*models.Estimate, error) {
	if requestId == "" {
		return nil, fmt.Errorf("%w: missing requestId", models.ErrInvalidInput)
	}
	price, err := normalizePrice(input.Price)
	if err != nil {
		return nil, err
	}
	note := strings.TrimSpace(input.Note)
	if len(note) > maxNoteLength {
		return nil, fmt.Errorf("%w: note is longer than %d characters", models.ErrInvalidInput, maxNoteLength)
	}

	var saved *models.Estimate
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.Requests.LockRequest(ctx, requestId)
		if err != nil {
			return err
		}
		if req.Status != models.OpenRequest {
			return models.ErrRequestNotOpen
		}

		isRecipient, err := s.Requests.IsRecipient(ctx, requestId, workerId)
		if err != nil {
			return err
		}
		if !isRecipient {
			return models.ErrNotRecipient
		}

		saved, err = s.Estimates.UpsertEstimate(ctx, models.Estimate{
			ID:          uuid.New().String(),
			RequestID:   requestId,
			WorkerID:    workerId,
			Price:       price,
			Note:        note,
			Status:      models.ActiveEstimate,
			SubmittedAt: s.now(),
		})
		if err != nil {
			return err
		}

		_, err = s.Notifier.Push(ctx, req.RequesterID, models.EstimateSubmittedKind, models.EstimateSummary(*req, *saved))
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.EstimatesSubmitted.Inc()
	return saved, nil
}

// ListEstimates возвращает владельцу заявки неотклонённые предложения в порядке подачи.
func (s *EstimateService) ListEstimates(ctx context.Context, requesterId, requestId string) ([]models.Estimate, error) {
	if requestId == "" {
		return nil, fmt.Errorf("%w: missing requestId", models.ErrInvalidInput)
	}
	req, err := s.Requests.GetRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterId {
		return nil, models.ErrForbidden
	}
	return s.Estimates.ListEstimates(ctx, requestId)
}

func normalizePrice(price float64) (float64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, models.ErrInvalidPrice
	}
	rounded := math.Round(price*100) / 100
	if rounded <= 0 {
		return 0, models.ErrInvalidPrice
	}
	if rounded > maxPrice {
		return 0, fmt.Errorf("%w: price exceeds %.2f", models.ErrInvalidInput, maxPrice)
	}
	return rounded, nil
}
