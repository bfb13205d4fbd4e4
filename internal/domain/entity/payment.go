package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentWaitingForCapture PaymentStatus = "waiting_for_capture"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentCanceled          PaymentStatus = "canceled"
)

// Final статус больше не изменится на стороне шлюза.
func (s PaymentStatus) Final() bool {
	return s == PaymentSucceeded || s == PaymentCanceled
}

// Payment входящий платёж владельца за выкуп.
type Payment struct {
	ID              string
	DealID          string
	Status          PaymentStatus
	Amount          decimal.Decimal
	ConfirmationURL string
	PaidAt          *time.Time
	CreatedAt       time.Time
}

// PaymentRequest запрос на создание платежа выкупа.
type PaymentRequest struct {
	DealID      string
	Amount      decimal.Decimal
	Description string
	ReturnURL   string
}

// Payout исходящая выплата займа.
type Payout struct {
	ID     string
	Status PaymentStatus
	Reason string
}

// PayoutRequest запрос выплаты. IdempotenceKey одинаков для повторов
// одной попытки.
type PayoutRequest struct {
	DealID         string
	Amount         decimal.Decimal
	Destination    string
	Description    string
	IdempotenceKey string
}

// TradeOffer ответ торгового агента на запрос передачи предметов.
type TradeOffer struct {
	OfferID  string
	OfferURL string
	Status   TradeStatus
}

// TradeRequest запрос на передачу предметов между владельцем и хранилищем.
type TradeRequest struct {
	DealID         string
	PartnerSteamID string
	TradeURL       string
	Items          []string
}
