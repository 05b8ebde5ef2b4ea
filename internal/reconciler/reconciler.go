package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
)

const (
	defaultPullLimit  = 100
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

// Server - запросы, которые реконсилятору нужны от сервера.
type Server interface {
	RequestStatus(ctx context.Context, requestId string) (models.RequestStatus, error)
	PullNotifications(ctx context.Context, after int64, limit int) ([]models.Notification, error)
}

// Stream - открытый живой канал.
type Stream interface {
	Next(ctx context.Context) (models.Notification, error)
	Close() error
}

// Dialer открывает живой канал.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Reconciler ведёт локальное состояние активной заявки.
// Live-события принимаются только после того, как после подключения выполнен проход pull.
type Reconciler struct {
	Server     Server
	Store      Store
	Logger     *log.Logger
	StaleAfter time.Duration
	PullLimit  int
	now        func() time.Time

	mu     sync.Mutex
	state  *CallState
	cursor int64
	loaded bool
}

// New создает новый экземпляр Reconciler.
func New(server Server, store Store, logger *log.Logger) *Reconciler {
	return &Reconciler{
		Server:     server,
		Store:      store,
		Logger:     logger,
		StaleAfter: DefaultStaleAfter,
		PullLimit:  defaultPullLimit,
		now:        time.Now,
	}
}

// State возвращает копию текущего состояния или nil.
func (r *Reconciler) State() *CallState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return nil
	}
	cp := r.state.clone()
	return &cp
}

// Cursor возвращает seq, до которого включительно все записи входящих применены.
func (r *Reconciler) Cursor() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Load читает сохранённое состояние и курсор. Остальные методы вызывают его сами при первом обращении.
func (r *Reconciler) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked()
}

func (r *Reconciler) loadLocked() error {
	if r.loaded {
		return nil
	}
	state, err := r.Store.LoadCall()
	if err != nil {
		return err
	}
	cursor, err := r.Store.LoadCursor()
	if err != nil {
		return err
	}
	r.state, r.cursor, r.loaded = state, cursor, true
	return nil
}

// Begin сохраняет состояние только что созданной заявки до любых других действий.
func (r *Reconciler) Begin(created models.CreatedRequest) (*CallState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return nil, err
	}

	state := CallState{
		RequestID:     created.Request.ID,
		RequestSeq:    created.Request.Seq,
		NotifiedCount: created.NotifiedCount,
		Status:        created.Request.Status,
		CreatedAt:     r.now(),
		Estimates:     map[string]EstimateView{},
	}
	if err := r.Store.SaveCall(state); err != nil {
		return nil, fmt.Errorf("persist call state: %w", err)
	}
	r.state = &state
	cp := state.clone()
	return &cp, nil
}

// Resume загружает сохранённое состояние и проверяет его. Устаревшее состояние отбрасывается
// без обращения к серверу, иначе статус заявки запрашивается явно.
// Возвращает либо действующее состояние, либо описание сброса, либо оба nil, если заявки нет.
func (r *Reconciler) Resume(ctx context.Context) (*CallState, *Discard, error) {
	r.mu.Lock()
	if err := r.loadLocked(); err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	if r.state == nil {
		r.mu.Unlock()
		return nil, nil, nil
	}
	if r.now().Sub(r.state.CreatedAt) > r.StaleAfter {
		discard, err := r.clearLocked(ReasonStale, r.state.Status)
		r.mu.Unlock()
		return nil, discard, err
	}
	requestId := r.state.RequestID
	r.mu.Unlock()

	status, err := r.Server.RequestStatus(ctx, requestId)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil || r.state.RequestID != requestId {
		return nil, nil, nil
	}
	switch {
	case errors.Is(err, models.ErrRequestNotFound):
		discard, clearErr := r.clearLocked(ReasonMissing, "")
		return nil, discard, clearErr
	case err != nil:
		return nil, nil, fmt.Errorf("verify request %s: %w", requestId, err)
	case status != models.OpenRequest:
		discard, clearErr := r.clearLocked(ReasonNotOpen, status)
		return nil, discard, clearErr
	}

	r.state.Status = status
	if err := r.Store.SaveCall(*r.state); err != nil {
		return nil, nil, fmt.Errorf("persist call state: %w", err)
	}
	cp := r.state.clone()
	return &cp, nil, nil
}

// Settle сбрасывает состояние после того, как заказчик сам выбрал исполнителя или отменил заявку.
func (r *Reconciler) Settle(req models.Request) (*Discard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	if r.state == nil || r.state.RequestID != req.ID || req.Status == models.OpenRequest {
		return nil, nil
	}
	return r.clearLocked(ReasonSettled, req.Status)
}

// Apply применяет запись, полученную из входящих через pull. Повторное и запоздавшее применение безопасно.
// Курсор сдвигается до seq записи: pull отдаёт записи подряд, без пропусков.
// Если запись закрывает отслеживаемую заявку, возвращается описание сброса.
func (r *Reconciler) Apply(n models.Notification) (*Discard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	discard, err := r.applyLocked(n)
	if err != nil {
		return nil, err
	}
	if n.Seq > r.cursor {
		if err := r.saveCursorLocked(n.Seq); err != nil {
			return discard, err
		}
	}
	return discard, nil
}

// applyLive применяет событие живого канала. Живой канал может терять и переставлять события,
// поэтому курсор сдвигается только на следующий по порядку seq.
// gap сообщает, что перед событием есть пропущенные записи и нужен pull.
func (r *Reconciler) applyLive(n models.Notification) (discard *Discard, gap bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err = r.loadLocked(); err != nil {
		return nil, false, err
	}
	if discard, err = r.applyLocked(n); err != nil {
		return nil, false, err
	}
	switch {
	case n.Seq == r.cursor+1:
		err = r.saveCursorLocked(n.Seq)
	case n.Seq > r.cursor+1:
		gap = true
	}
	return discard, gap, err
}

func (r *Reconciler) applyLocked(n models.Notification) (*Discard, error) {
	if r.state == nil || n.Payload.RequestID != r.state.RequestID {
		return nil, nil
	}
	switch n.Kind {
	case models.EstimateSubmittedKind:
		if r.state.merge(estimateFromPayload(n.Payload)) {
			if err := r.Store.SaveCall(*r.state); err != nil {
				return nil, fmt.Errorf("persist call state: %w", err)
			}
		}
	case models.RequestSelectedKind:
		return r.clearLocked(ReasonSelected, n.Payload.Outcome)
	case models.RequestClosedKind:
		return r.clearLocked(ReasonClosed, n.Payload.Outcome)
	}
	return nil, nil
}

func (r *Reconciler) saveCursorLocked(seq int64) error {
	if err := r.Store.SaveCursor(seq); err != nil {
		return fmt.Errorf("persist cursor: %w", err)
	}
	r.cursor = seq
	return nil
}

func (r *Reconciler) clearLocked(reason DiscardReason, status models.RequestStatus) (*Discard, error) {
	if r.state == nil {
		return nil, nil
	}
	discard := &Discard{RequestID: r.state.RequestID, Reason: reason, Status: status}
	if err := r.Store.ClearCall(); err != nil {
		return nil, fmt.Errorf("clear call state: %w", err)
	}
	r.state = nil
	if r.Logger != nil {
		r.Logger.Printf("local call state for %s cleared: %s %s", discard.RequestID, reason, status)
	}
	return discard, nil
}

// Sync забирает из входящих всё после курсора и применяет по порядку.
// Вызывается после каждого подключения живого канала.
func (r *Reconciler) Sync(ctx context.Context) (*Discard, error) {
	r.mu.Lock()
	if err := r.loadLocked(); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	limit := r.PullLimit
	if limit <= 0 {
		limit = defaultPullLimit
	}

	var discard *Discard
	for {
		page, err := r.Server.PullNotifications(ctx, r.Cursor(), limit)
		if err != nil {
			return discard, fmt.Errorf("pull notifications: %w", err)
		}
		for _, n := range page {
			d, err := r.Apply(n)
			if err != nil {
				return discard, err
			}
			if d != nil {
				discard = d
			}
		}
		if len(page) < limit {
			return discard, nil
		}
	}
}

// Watch держит живой канал открытым: подключается, выполняет Sync и только потом применяет
// live-события. При разрыве переподключается с нарастающей паузой.
// Завершается, когда отслеживаемая заявка закрыта или отменён ctx.
// Без отслеживаемой заявки работает до отмены ctx, передавая события в observe.
func (r *Reconciler) Watch(ctx context.Context, dialer Dialer, observe func(models.Notification)) (*Discard, error) {
	tracking := r.State() != nil
	delay := minReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stream, err := dialer.Dial(ctx)
		if err != nil {
			r.logf("live channel dial failed: %v, retrying in %s", err, delay)
			if !sleep(ctx, delay) {
				return nil, ctx.Err()
			}
			delay = nextDelay(delay)
			continue
		}

		discard, err := r.Sync(ctx)
		if discard != nil && tracking {
			stream.Close()
			return discard, err
		}
		if err != nil {
			stream.Close()
			r.logf("pull after reconnect failed: %v, retrying in %s", err, delay)
			if !sleep(ctx, delay) {
				return nil, ctx.Err()
			}
			delay = nextDelay(delay)
			continue
		}
		delay = minReconnectDelay

		discard, err = r.consume(ctx, stream, observe, tracking)
		stream.Close()
		if discard != nil && tracking {
			return discard, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logf("live channel lost: %v, reconnecting", err)
		if !sleep(ctx, delay) {
			return nil, ctx.Err()
		}
	}
}

func (r *Reconciler) consume(ctx context.Context, stream Stream, observe func(models.Notification), stopOnDiscard bool) (*Discard, error) {
	for {
		n, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		discard, gap, err := r.applyLive(n)
		if err != nil {
			return nil, err
		}
		if observe != nil {
			observe(n)
		}
		if discard != nil && stopOnDiscard {
			return discard, nil
		}
		if !gap {
			continue
		}

		r.logf("live event %d arrived ahead of cursor %d, pulling", n.Seq, r.Cursor())
		discard, err = r.Sync(ctx)
		if discard != nil && stopOnDiscard {
			return discard, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}
