package entity

import (
	"strings"
	"time"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
)

type TradeDirection string

const (
	TradeIncoming TradeDirection = "INCOMING"
	TradeOutgoing TradeDirection = "OUTGOING"
)

type TradeStatus string

const (
	TradeStatusSent      TradeStatus = "SENT"
	TradeStatusAccepted  TradeStatus = "ACCEPTED"
	TradeStatusDeclined  TradeStatus = "DECLINED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
	TradeStatusExpired   TradeStatus = "EXPIRED"
)

// Active трейд отправлен и агент ещё не сообщил итог.
func (s TradeStatus) Active() bool {
	return s == TradeStatusSent
}

// ParseTradeStatus нормализует статус торгового агента.
func ParseTradeStatus(s string) (TradeStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SENT", "PENDING", "ACTIVE":
		return TradeStatusSent, nil
	case "ACCEPTED":
		return TradeStatusAccepted, nil
	case "DECLINED":
		return TradeStatusDeclined, nil
	case "CANCELLED", "CANCELED":
		return TradeStatusCancelled, nil
	case "EXPIRED":
		return TradeStatusExpired, nil
	default:
		return "", domain.NewErrorf(errcodes.ValidationError, "unknown trade status %q", s)
	}
}

// Trade одна попытка передачи предметов (залог или возврат).
type Trade struct {
	ID        string
	DealID    string
	OfferID   string
	OfferURL  string
	Direction TradeDirection
	Status    TradeStatus
	Items     value.Items
	CreatedAt time.Time
	UpdatedAt time.Time
}
