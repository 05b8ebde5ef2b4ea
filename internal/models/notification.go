package models

import "time"

// NotificationKind - тип события, он же имя события в живом канале.
type NotificationKind string

const (
	RequestCreatedKind    NotificationKind = "request.created"
	EstimateSubmittedKind NotificationKind = "estimate.submitted"
	RequestSelectedKind   NotificationKind = "request.selected"
	RequestClosedKind     NotificationKind = "request.closed"
)

// NotificationPayload содержит ссылки на заявку и предложение и поля для отображения.
type NotificationPayload struct {
	RequestID   string        `json:"requestId"`
	RequestSeq  int64         `json:"requestSeq,omitempty"`
	CategoryID  string        `json:"categoryId,omitempty"`
	Description string        `json:"description,omitempty"`
	Address     string        `json:"address,omitempty"`
	EstimateID  string        `json:"estimateId,omitempty"`
	WorkerID    string        `json:"workerId,omitempty"`
	Price       float64       `json:"price,omitempty"`
	Note        string        `json:"note,omitempty"`
	SubmittedAt *time.Time    `json:"submittedAt,omitempty"`
	Outcome     RequestStatus `json:"outcome,omitempty"`
}

// Notification представляет запись во входящих получателя.
// Seq возрастает в пределах одного получателя и служит курсором.
type Notification struct {
	ID          string              `json:"id"`
	RecipientID string              `json:"recipientId"`
	Seq         int64               `json:"seq"`
	Kind        NotificationKind    `json:"kind"`
	Payload     NotificationPayload `json:"payload"`
	Read        bool                `json:"read"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// RequestSummary собирает полезную нагрузку для события request.created.
func RequestSummary(req Request) NotificationPayload {
	return NotificationPayload{
		RequestID:   req.ID,
		RequestSeq:  req.Seq,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Address:     req.Location.Address,
	}
}

// EstimateSummary собирает полезную нагрузку для события estimate.submitted.
func EstimateSummary(req Request, est Estimate) NotificationPayload {
	submittedAt := est.SubmittedAt
	return NotificationPayload{
		RequestID:   req.ID,
		RequestSeq:  req.Seq,
		EstimateID:  est.ID,
		WorkerID:    est.WorkerID,
		Price:       est.Price,
		Note:        est.Note,
		SubmittedAt: &submittedAt,
	}
}
