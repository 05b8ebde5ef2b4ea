// Package memory хранит заявки, предложения и уведомления в памяти процесса.
// Транзакции сериализуются одним мьютексом и откатываются по снимку состояния.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
	"github.com/senyabanana/instant-call-service/internal/repository"
)

type session struct {
	userId    string
	expiresAt time.Time
}

type state struct {
	requests      map[string]models.Request
	recipients    map[string][]string
	estimates     map[string]models.Estimate
	notifications map[string][]models.Notification
	nextSeq       int64
}

// Store - реализация репозиториев и Transactor в памяти.
type Store struct {
	mu           sync.Mutex
	st           state
	availability map[string]map[string]bool
	sessions     map[string]session
}

type txKey struct{}

// NewStore создает пустое хранилище.
func NewStore() *Store {
	return &Store{
		st: state{
			requests:      map[string]models.Request{},
			recipients:    map[string][]string{},
			estimates:     map[string]models.Estimate{},
			notifications: map[string][]models.Notification{},
		},
		availability: map[string]map[string]bool{},
		sessions:     map[string]session{},
	}
}

var (
	_ repository.Transactor             = (*Store)(nil)
	_ repository.RequestRepository      = (*Store)(nil)
	_ repository.EstimateRepository     = (*Store)(nil)
	_ repository.NotificationRepository = (*Store)(nil)
	_ repository.AvailabilityRepository = (*Store)(nil)
)

// WithinTx выполняет fn под мьютексом хранилища. При ошибке или панике состояние восстанавливается.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	txCtx, hooks := repository.BeginHooks(context.WithValue(ctx, txKey{}, s))
	if err := s.runLocked(txCtx, fn); err != nil {
		return err
	}
	hooks.Run()
	return nil
}

func (s *Store) runLocked(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st state) clone() state {
	c := state{
		requests:      make(map[string]models.Request, len(st.requests)),
		recipients:    make(map[string][]string, len(st.recipients)),
		estimates:     make(map[string]models.Estimate, len(st.estimates)),
		notifications: make(map[string][]models.Notification, len(st.notifications)),
		nextSeq:       st.nextSeq,
	}
	for k, v := range st.requests {
		c.requests[k] = v
	}
	for k, v := range st.recipients {
		c.recipients[k] = v
	}
	for k, v := range st.estimates {
		c.estimates[k] = v
	}
	for k, v := range st.notifications {
		c.notifications[k] = append([]models.Notification(nil), v...)
	}
	return c
}

// SetAvailable отмечает доступность исполнителя в категории.
func (s *Store) SetAvailable(categoryId, workerId string, available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.availability[categoryId] == nil {
		s.availability[categoryId] = map[string]bool{}
	}
	s.availability[categoryId][workerId] = available
}

// AddSession регистрирует токен, выпущенный вне сервиса.
func (s *Store) AddSession(token, userId string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = session{userId: userId, expiresAt: expiresAt}
}

// AvailableWorkers возвращает доступных исполнителей категории в порядке ID.
func (s *Store) AvailableWorkers(ctx context.Context, categoryId string) ([]string, error) {
	unlock := s.lock(ctx)
	defer unlock()

	var workers []string
	for workerId, available := range s.availability[categoryId] {
		if available {
			workers = append(workers, workerId)
		}
	}
	sort.Strings(workers)
	return workers, nil
}

// LookupSession возвращает владельца действующего токена.
func (s *Store) LookupSession(ctx context.Context, token string) (string, time.Time, error) {
	unlock := s.lock(ctx)
	defer unlock()

	sess, ok := s.sessions[token]
	if !ok || !sess.expiresAt.After(time.Now()) {
		return "", time.Time{}, models.ErrUnauthorized
	}
	return sess.userId, sess.expiresAt, nil
}

// CreateRequest сохраняет заявку и набор оповещённых исполнителей.
func (s *Store) CreateRequest(ctx context.Context, req models.Request, recipients []string) (*models.Request, error) {
	unlock := s.lock(ctx)
	defer unlock()

	s.st.nextSeq++
	req.Seq = s.st.nextSeq
	req.NotifiedCount = len(recipients)
	if req.Media == nil {
		req.Media = []string{}
	}
	s.st.requests[req.ID] = req

	sorted := append([]string(nil), recipients...)
	sort.Strings(sorted)
	s.st.recipients[req.ID] = sorted
	return &req, nil
}

// GetRequest возвращает заявку по ID.
func (s *Store) GetRequest(ctx context.Context, requestId string) (*models.Request, error) {
	unlock := s.lock(ctx)
	defer unlock()

	req, ok := s.st.requests[requestId]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	return &req, nil
}

// LockRequest в памяти совпадает с GetRequest: транзакция уже держит мьютекс.
func (s *Store) LockRequest(ctx context.Context, requestId string) (*models.Request, error) {
	return s.GetRequest(ctx, requestId)
}

// CloseRequest переводит открытую заявку в конечный статус.
func (s *Store) CloseRequest(ctx context.Context, requestId string, status models.RequestStatus, winningEstimateId string, closedAt time.Time) (*models.Request, error) {
	unlock := s.lock(ctx)
	defer unlock()

	req, ok := s.st.requests[requestId]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	if req.Status != models.OpenRequest {
		return nil, models.ErrRequestNotOpen
	}
	req.Status = status
	req.WinningEstimateID = winningEstimateId
	req.ClosedAt = &closedAt
	s.st.requests[requestId] = req
	return &req, nil
}

// ListRecipients возвращает исполнителей, оповещённых о заявке.
func (s *Store) ListRecipients(ctx context.Context, requestId string) ([]string, error) {
	unlock := s.lock(ctx)
	defer unlock()
	return append([]string(nil), s.st.recipients[requestId]...), nil
}

// IsRecipient проверяет, входит ли исполнитель в набор оповещённых.
func (s *Store) IsRecipient(ctx context.Context, requestId, workerId string) (bool, error) {
	unlock := s.lock(ctx)
	defer unlock()

	recipients := s.st.recipients[requestId]
	i := sort.SearchStrings(recipients, workerId)
	return i < len(recipients) && recipients[i] == workerId, nil
}

// ListStaleOpenRequests возвращает открытые заявки старше createdBefore.
func (s *Store) ListStaleOpenRequests(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	unlock := s.lock(ctx)
	defer unlock()

	var stale []models.Request
	for _, req := range s.st.requests {
		if req.Status == models.OpenRequest && req.CreatedAt.Before(createdBefore) {
			stale = append(stale, req)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })

	var ids []string
	for _, req := range stale {
		if len(ids) == limit {
			break
		}
		ids = append(ids, req.ID)
	}
	return ids, nil
}

// UpsertEstimate создаёт предложение или заменяет активное предложение того же исполнителя.
func (s *Store) UpsertEstimate(ctx context.Context, est models.Estimate) (*models.Estimate, error) {
	unlock := s.lock(ctx)
	defer unlock()

	for id, existing := range s.st.estimates {
		if existing.RequestID != est.RequestID || existing.WorkerID != est.WorkerID {
			continue
		}
		switch existing.Status {
		case models.SelectedEstimate:
			return nil, models.ErrRequestNotOpen
		case models.ActiveEstimate:
			existing.Price = est.Price
			existing.Note = est.Note
			existing.SubmittedAt = est.SubmittedAt
			s.st.estimates[id] = existing
			return &existing, nil
		}
	}

	est.Status = models.ActiveEstimate
	s.st.estimates[est.ID] = est
	return &est, nil
}

// GetActiveEstimate возвращает активное предложение исполнителя по заявке.
func (s *Store) GetActiveEstimate(ctx context.Context, requestId, workerId string) (*models.Estimate, error) {
	unlock := s.lock(ctx)
	defer unlock()

	for _, est := range s.st.estimates {
		if est.RequestID == requestId && est.WorkerID == workerId && est.Status == models.ActiveEstimate {
			return &est, nil
		}
	}
	return nil, models.ErrEstimateNotFound
}

// ListEstimates возвращает неотклонённые предложения по заявке в порядке подачи.
func (s *Store) ListEstimates(ctx context.Context, requestId string) ([]models.Estimate, error) {
	unlock := s.lock(ctx)
	defer unlock()

	estimates := []models.Estimate{}
	for _, est := range s.st.estimates {
		if est.RequestID == requestId && est.Status != models.RejectedEstimate {
			estimates = append(estimates, est)
		}
	}
	sort.Slice(estimates, func(i, j int) bool {
		if estimates[i].SubmittedAt.Equal(estimates[j].SubmittedAt) {
			return estimates[i].ID < estimates[j].ID
		}
		return estimates[i].SubmittedAt.Before(estimates[j].SubmittedAt)
	})
	return estimates, nil
}

// MarkSelected переводит активное предложение в статус SELECTED.
func (s *Store) MarkSelected(ctx context.Context, estimateId string) (*models.Estimate, error) {
	unlock := s.lock(ctx)
	defer unlock()

	est, ok := s.st.estimates[estimateId]
	if !ok || est.Status != models.ActiveEstimate {
		return nil, models.ErrEstimateNotFound
	}
	est.Status = models.SelectedEstimate
	s.st.estimates[estimateId] = est
	return &est, nil
}

// RejectActiveEstimates отклоняет все активные предложения по заявке.
func (s *Store) RejectActiveEstimates(ctx context.Context, requestId string) (int64, error) {
	unlock := s.lock(ctx)
	defer unlock()

	var rejected int64
	for id, est := range s.st.estimates {
		if est.RequestID == requestId && est.Status == models.ActiveEstimate {
			est.Status = models.RejectedEstimate
			s.st.estimates[id] = est
			rejected++
		}
	}
	return rejected, nil
}

// AppendNotification добавляет запись во входящие получателя со следующим seq.
func (s *Store) AppendNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	unlock := s.lock(ctx)
	defer unlock()

	inbox := s.st.notifications[n.RecipientID]
	n.Seq = int64(len(inbox)) + 1
	n.Read = false
	s.st.notifications[n.RecipientID] = append(inbox, n)
	return &n, nil
}

// PullNotifications возвращает записи получателя с seq больше after.
func (s *Store) PullNotifications(ctx context.Context, recipientId string, after int64, limit int, kinds []string) ([]models.Notification, error) {
	unlock := s.lock(ctx)
	defer unlock()

	allowed := map[string]bool{}
	for _, kind := range kinds {
		allowed[strings.TrimSpace(kind)] = true
	}

	notifications := []models.Notification{}
	for _, n := range s.st.notifications[recipientId] {
		if n.Seq <= after {
			continue
		}
		if len(allowed) > 0 && !allowed[string(n.Kind)] {
			continue
		}
		if len(notifications) == limit {
			break
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// MarkNotificationRead отмечает запись прочитанной.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientId, notificationId string) error {
	unlock := s.lock(ctx)
	defer unlock()

	inbox := s.st.notifications[recipientId]
	for i := range inbox {
		if inbox[i].ID == notificationId {
			inbox[i].Read = true
			return nil
		}
	}
	return models.ErrNotificationNotFound
}
