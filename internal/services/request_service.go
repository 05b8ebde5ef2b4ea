package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/instant-call-service/internal/metrics"
	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"

	"github.com/google/uuid"
)

const maxDescriptionLength = 2000

// RequestService создаёт заявки и рассылает их доступным исполнителям.
type RequestService struct {
	Requests     repository.RequestRepository
	Availability repository.AvailabilityRepository
	Tx           repository.Transactor
	Notifier     Notifier
	now          func() time.Time
}

// NewRequestService создаёт новый экземпляр RequestService.
func NewRequestService(requests repository.RequestRepository, availability repository.AvailabilityRepository, tx repository.Transactor, notifier Notifier) *RequestService {
	return &RequestService{
		Requests:     requests,
		Availability: availability,
		Tx:           tx,
		Notifier:     notifier,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest сохраняет заявку со статусом OPEN и оповещает исполнителей категории.
// Набор исполнителей фиксируется в момент создания и больше не пересчитывается.
func (s *RequestService) CreateRequest(ctx context.Context, requesterId string, input models.RequestInput) (*models.CreatedRequest, error) {
	if err := validateRequestInput(&input); err != nil {
		return nil, err
	}

	available, err := s.Availability.AvailableWorkers(ctx, input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("query available workers: %w", err)
	}
	recipients := make([]string, 0, len(available))
	for _, workerId := range available {
		if workerId != requesterId {
			recipients = append(recipients, workerId)
		}
	}

	newRequest := models.Request{
		ID:          uuid.New().String(),
		RequesterID: requesterId,
		CategoryID:  input.CategoryID,
		Description: input.Description,
		Location:    input.Location,
		Media:       input.Media,
		Settlement:  input.Settlement,
		Status:      models.OpenRequest,
		CreatedAt:   s.now(),
	}

	var created *models.Request
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.Requests.CreateRequest(ctx, newRequest, recipients)
		if err != nil {
			return err
		}
		_, err = s.Notifier.PushAll(ctx, recipients, models.RequestCreatedKind, models.RequestSummary(*created))
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RequestsCreated.Inc()
	metrics.WorkersNotified.Observe(float64(len(recipients)))
	return &models.CreatedRequest{Request: *created, NotifiedCount: len(recipients)}, nil
}

// GetRequest возвращает заявку владельцу или оповещённому исполнителю.
func (s *RequestService) GetRequest(ctx context.Context, userId, requestId string) (*models.Request, error) {
	if requestId == "" {
		return nil, fmt.Errorf("%w: missing requestId", models.ErrInvalidInput)
	}
	req, err := s.Requests.GetRequest(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if req.RequesterID == userId {
		return req, nil
	}

	isRecipient, err := s.Requests.IsRecipient(ctx, requestId, userId)
	if err != nil {
		return nil, err
	}
	if !isRecipient {
		return nil, models.ErrAccessDenied
	}
	return req, nil
}

// GetRequestStatus возвращает текущий статус заявки.
func (s *RequestService) GetRequestStatus(ctx context.Context, userId, requestId string) (models.RequestStatus, error) {
	req, err := s.GetRequest(ctx, userId, requestId)
	if err != nil {
		return "", err
	}
	return req.Status, nil
}

func validateRequestInput(input *models.RequestInput) error {
	input.CategoryID = strings.TrimSpace(input.CategoryID)
	input.Description = strings.TrimSpace(input.Description)

	if input.CategoryID == "" || input.Description == "" {
		return fmt.Errorf("%w: missing required fields: categoryId or description", models.ErrInvalidInput)
	}
	if len(input.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description is longer than %d characters", models.ErrInvalidInput, maxDescriptionLength)
	}
	if input.Location.Lat < -90 || input.Location.Lat > 90 || input.Location.Lng < -180 || input.Location.Lng > 180 {
		return fmt.Errorf("%w: location coordinates are out of range", models.ErrInvalidInput)
	}

	allowedSettlements := map[models.SettlementMethod]bool{
		models.Cash:         true,
		models.Card:         true,
		models.MobileWallet: true,
	}
	if input.Settlement == "" {
		input.Settlement = models.Cash
	}
	if !allowedSettlements[input.Settlement] {
		return fmt.Errorf("%w: unsupported settlement method: %s", models.ErrInvalidInput, input.Settlement)
	}
	return nil
}
