package models

import "time"

type (
	RequestStatus    string // Статус заявки на вызов
	SettlementMethod string // Предпочтительный способ оплаты
)

const (
	OpenRequest      RequestStatus = "OPEN"      // Заявка разослана и принимает предложения
	AssignedRequest  RequestStatus = "ASSIGNED"  // Исполнитель выбран
	CancelledRequest RequestStatus = "CANCELLED" // Заявка отменена заказчиком
	ExpiredRequest   RequestStatus = "EXPIRED"   // Заявка закрыта по истечении срока

	Cash         SettlementMethod = "cash"
	Card         SettlementMethod = "card"
	MobileWallet SettlementMethod = "mobile_wallet"
)

// IsTerminal сообщает, что заявка больше не может менять статус.
func (s RequestStatus) IsTerminal() bool {
	return s == AssignedRequest || s == CancelledRequest || s == ExpiredRequest
}

// Location описывает место вызова. Координаты и адрес не интерпретируются.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Request представляет модель заявки на мгновенный вызов исполнителя.
type Request struct {
	ID                string           `json:"id"`
	Seq               int64            `json:"seq"`
	RequesterID       string           `json:"requesterId"`
	CategoryID        string           `json:"categoryId"`
	Description       string           `json:"description"`
	Location          Location         `json:"location"`
	Media             []string         `json:"media"`
	Settlement        SettlementMethod `json:"settlement"`
	Status            RequestStatus    `json:"status"`
	NotifiedCount     int              `json:"notifiedCount"`
	WinningEstimateID string           `json:"winningEstimateId,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	ClosedAt          *time.Time       `json:"closedAt,omitempty"`
}

// RequestInput представляет структуру запроса для создания заявки.
type RequestInput struct {
	CategoryID  string           `json:"categoryId"`
	Description string           `json:"description"`
	Location    Location         `json:"location"`
	Media       []string         `json:"media"`
	Settlement  SettlementMethod `json:"settlement"`
}

// CreatedRequest - результат создания заявки вместе с числом оповещённых исполнителей.
type CreatedRequest struct {
	Request       Request `json:"request"`
	NotifiedCount int     `json:"notifiedCount"`
}

// Selection - результат выбора исполнителя.
type Selection struct {
	Request  Request  `json:"request"`
	Estimate Estimate `json:"estimate"`
}
