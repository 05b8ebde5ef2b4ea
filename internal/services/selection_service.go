package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/senyabanana/instant-call-service/internal/metrics"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"
)

// SelectionService закрывает заявки: выбор исполнителя, отмена и истечение срока.
// Все переходы выполняются в одной транзакции под блокировкой строки заявки.
type SelectionService struct {
	Requests  repository.RequestRepository
	Estimates repository.EstimateRepository
	Tx        repository.Transactor
	Notifier  Notifier
	now       func() time.Time
}

// NewSelectionService создает новый экземпляр SelectionService.
func NewSelectionService(requests repository.RequestRepository, estimates repository.EstimateRepository, tx repository.Transactor, notifier Notifier) *SelectionService {
	return &SelectionService{
		Requests:  requests,
		Estimates: estimates,
		Tx:        tx,
		Notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SelectWinner выбирает предложение исполнителя workerId, отклоняет остальные и назначает заявку.
// Из двух одновременных вызовов успешен ровно один, второй получает ErrRequestAlreadyAssigned.
func (s *SelectionService) SelectWinner(ctx context.Context, requesterId, requestId, workerId string) (*models.Selection, error) {
	if requestId == "" || workerId == "" {
		return nil, fmt.Errorf("%w: missing required parameters: requestId or workerId", models.ErrInvalidInput)
	}

	var selection models.Selection
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.lockOpenRequest(ctx, requestId, requesterId, true)
		if err != nil {
			return err
		}

		active, err := s.Estimates.GetActiveEstimate(ctx, requestId, workerId)
		if err != nil {
			return err
		}
		winner, err := s.Estimates.MarkSelected(ctx, active.ID)
		if err != nil {
			return err
		}
		if _, err = s.Estimates.RejectActiveEstimates(ctx, requestId); err != nil {
			return err
		}

		closed, err := s.Requests.CloseRequest(ctx, req.ID, models.AssignedRequest, winner.ID, s.now())
		if err != nil {
			return err
		}

		if err = s.closeOut(ctx, closed, winner); err != nil {
			return err
		}

		selection = models.Selection{Request: *closed, Estimate: *winner}
		return nil
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	metrics.RequestsClosed.WithLabelValues(string(models.AssignedRequest)).Inc()
	return &selection, nil
}

// CancelRequest отменяет открытую заявку без выбора исполнителя.
func (s *SelectionService) CancelRequest(ctx context.Context, requesterId, requestId string) (*models.Request, error) {
	if requestId == "" {
		return nil, fmt.Errorf("%w: missing requestId", models.ErrInvalidInput)
	}
	return s.closeWithoutWinner(ctx, requestId, requesterId, models.CancelledRequest)
}

// ExpireRequest закрывает открытую заявку по истечении срока.
func (s *SelectionService) ExpireRequest(ctx context.Context, requestId string) (*models.Request, error) {
	return s.closeWithoutWinner(ctx, requestId, "", models.ExpiredRequest)
}

func (s *SelectionService) closeWithoutWinner(ctx context.Context, requestId, requesterId string, status models.RequestStatus) (*models.Request, error) {
	var closed *models.Request
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		req, err := s.lockOpenRequest(ctx, requestId, requesterId, false)
		if err != nil {
			return err
		}
		if _, err = s.Estimates.RejectActiveEstimates(ctx, requestId); err != nil {
			return err
		}

		closed, err = s.Requests.CloseRequest(ctx, req.ID, status, "", s.now())
		if err != nil {
			return err
		}
		return s.closeOut(ctx, closed, nil)
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	metrics.RequestsClosed.WithLabelValues(string(status)).Inc()
	return closed, nil
}

// lockOpenRequest блокирует строку заявки и проверяет владельца и статус.
// Пустой requesterId отключает проверку владельца. ErrRequestAlreadyAssigned возвращается
// только при выборе исполнителя, остальные операции над закрытой заявкой получают ErrRequestNotOpen.
func (s *SelectionService) lockOpenRequest(ctx context.Context, requestId, requesterId string, selecting bool) (*models.Request, error) {
	req, err := s.Requests.LockRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if requesterId != "" && req.RequesterID != requesterId {
		return nil, models.ErrForbidden
	}
	switch req.Status {
	case models.OpenRequest:
		return req, nil
	case models.AssignedRequest:
		if selecting {
			return nil, models.ErrRequestAlreadyAssigned
		}
		return nil, models.ErrRequestNotOpen
	default:
		return nil, models.ErrRequestNotOpen
	}
}

// closeOut уведомляет участников о закрытии заявки: победитель и заказчик получают
// request.selected, остальные оповещённые исполнители request.closed. Получатели обходятся в порядке ID.
func (s *SelectionService) closeOut(ctx context.Context, req *models.Request, winner *models.Estimate) error {
	recipients, err := s.Requests.ListRecipients(ctx, req.ID)
	if err != nil {
		return err
	}
	recipients = append(recipients, req.RequesterID)
	sort.Strings(recipients)

	for _, recipientId := range recipients {
		if winner != nil && (recipientId == winner.WorkerID || recipientId == req.RequesterID) {
			payload := models.EstimateSummary(*req, *winner)
			payload.Outcome = req.Status
			_, err = s.Notifier.Push(ctx, recipientId, models.RequestSelectedKind, payload)
		} else {
			_, err = s.Notifier.Push(ctx, recipientId, models.RequestClosedKind, closedPayload(req))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func closedPayload(req *models.Request) models.NotificationPayload {
	return models.NotificationPayload{
		RequestID:  req.ID,
		RequestSeq: req.Seq,
		CategoryID: req.CategoryID,
		Outcome:    req.Status,
	}
}

func (s *SelectionService) countConflict(err error) {
	if errors.Is(err, models.ErrRequestAlreadyAssigned) || errors.Is(err, models.ErrRequestNotOpen) {
		metrics.SelectionConflicts.Inc()
	}
}
