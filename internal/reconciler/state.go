// Package reconciler хранит локальное состояние активной заявки клиента и сверяет его с сервером.
package reconciler

import (
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"
)

// DefaultStaleAfter - срок, после которого локальное состояние отбрасывается без обращения к серверу.
const DefaultStaleAfter = 24 * time.Hour

// EstimateView - предложение исполнителя в том виде, в каком его видел клиент.
type EstimateView struct {
	EstimateID  string    `json:"estimateId"`
	WorkerID    string    `json:"workerId"`
	Price       float64   `json:"price"`
	Note        string    `json:"note,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// CallState - локальное состояние активной заявки.
// CreatedAt записывается по часам клиента в момент создания и используется только для устаревания.
type CallState struct {
	RequestID     string                  `json:"requestId"`
	RequestSeq    int64                   `json:"requestSeq"`
	NotifiedCount int                     `json:"notifiedCount"`
	Status        models.RequestStatus    `json:"status"`
	CreatedAt     time.Time               `json:"createdAt"`
	Estimates     map[string]EstimateView `json:"estimates"`
}

// SortedEstimates возвращает предложения по времени подачи.
func (s CallState) SortedEstimates() []EstimateView {
	out := make([]EstimateView, 0, len(s.Estimates))
	for _, est := range s.Estimates {
		out = append(out, est)
	}
	sortEstimates(out)
	return out
}

func (s CallState) clone() CallState {
	cp := s
	cp.Estimates = make(map[string]EstimateView, len(s.Estimates))
	for k, v := range s.Estimates {
		cp.Estimates[k] = v
	}
	return cp
}

// merge применяет предложение. Повторная подача того же исполнителя заменяет предыдущую,
// более старое событие не перетирает более новое.
func (s *CallState) merge(est EstimateView) bool {
	if s.Estimates == nil {
		s.Estimates = map[string]EstimateView{}
	}
	current, ok := s.Estimates[est.WorkerID]
	if ok {
		if current.EstimateID == est.EstimateID && current.SubmittedAt.Equal(est.SubmittedAt) {
			return false
		}
		if est.SubmittedAt.Before(current.SubmittedAt) {
			return false
		}
	}
	s.Estimates[est.WorkerID] = est
	return true
}

// DiscardReason объясняет, почему состояние было сброшено.
type DiscardReason string

const (
	ReasonStale    DiscardReason = "stale"    // старше порога устаревания
	ReasonMissing  DiscardReason = "missing"  // заявка не найдена на сервере
	ReasonNotOpen  DiscardReason = "not_open" // сервер сообщил статус, отличный от OPEN
	ReasonSelected DiscardReason = "selected" // получено событие request.selected
	ReasonClosed   DiscardReason = "closed"   // получено событие request.closed
	ReasonSettled  DiscardReason = "settled"  // заказчик сам выбрал исполнителя или отменил заявку
)

// Discard описывает сброшенное состояние, чтобы клиент мог сообщить об этом пользователю.
type Discard struct {
	RequestID string               `json:"requestId"`
	Reason    DiscardReason        `json:"reason"`
	Status    models.RequestStatus `json:"status,omitempty"`
}

func estimateFromPayload(p models.NotificationPayload) EstimateView {
	view := EstimateView{
		EstimateID: p.EstimateID,
		WorkerID:   p.WorkerID,
		Price:      p.Price,
		Note:       p.Note,
	}
	if p.SubmittedAt != nil {
		view.SubmittedAt = *p.SubmittedAt
	}
	return view
}
