package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"
)

const expiryBatchSize = 100

// ExpirySweeper периодически закрывает открытые заявки старше TTL.
type ExpirySweeper struct {
	Requests repository.RequestRepository
	Arbiter  *SelectionService
	TTL      time.Duration
	Interval time.Duration
	Logger   *log.Logger
	now      func() time.Time
}

// NewExpirySweeper создает новый экземпляр ExpirySweeper.
func NewExpirySweeper(requests repository.RequestRepository, arbiter *SelectionService, ttl, interval time.Duration, logger *log.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		Requests: requests,
		Arbiter:  arbiter,
		TTL:      ttl,
		Interval: interval,
		Logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start запускает цикл очистки до отмены ctx. При нулевом TTL ничего не делает.
func (s *ExpirySweeper) Start(ctx context.Context) {
	if s.TTL <= 0 || s.Interval <= 0 {
		s.Logger.Println("request expiry is disabled")
		return
	}
	s.Logger.Printf("request expiry started: ttl=%s interval=%s", s.TTL, s.Interval)

	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					s.Logger.Printf("request expiry sweep failed: %v", err)
				}
			}
		}
	}()
}

// SweepOnce закрывает одну партию просроченных заявок и возвращает их число.
// Заявки, которые успели закрыться другим путём, пропускаются.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.Requests.ListStaleOpenRequests(ctx, s.now().Add(-s.TTL), expiryBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		_, err := s.Arbiter.ExpireRequest(ctx, id)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, models.ErrRequestNotOpen):
		default:
			return expired, err
		}
	}
	return expired, nil
}
