package models

import "time"

// EstimateStatus - статус ценового предложения исполнителя.
type EstimateStatus string

const (
	ActiveEstimate   EstimateStatus = "ACTIVE"   // Предложение ждёт решения заказчика
	SelectedEstimate EstimateStatus = "SELECTED" // Предложение выбрано
	RejectedEstimate EstimateStatus = "REJECTED" // Предложение отклонено при закрытии заявки
)

// Estimate представляет модель ценового предложения.
type Estimate struct {
	ID          string         `json:"id"`
	RequestID   string         `json:"requestId"`
	WorkerID    string         `json:"workerId"`
	Price       float64        `json:"price"`
	Note        string         `json:"note,omitempty"`
	Status      EstimateStatus `json:"status"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// EstimateInput представляет тело запроса на подачу предложения.
type EstimateInput struct {
	Price float64 `json:"price"`
	Note  string  `json:"note"`
}
