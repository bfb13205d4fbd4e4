package deal

import (
	"context"
	"time"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
)

type Repository interface {
	Create(ctx context.Context, deal entity.Deal) error
	Get(ctx context.Context, id string) (entity.Deal, error)
	// Update сериализует изменения одной сделки: fn получает текущее
	// состояние под блокировкой и меняет его на месте.
	Update(ctx context.Context, id string, fn func(*entity.Deal) error) (entity.Deal, error)
	// ListExpired возвращает страницу ACTIVE сделок с option_expiry < now,
	// следующих за курсором after.
	ListExpired(ctx context.Context, now time.Time, after entity.ExpiryCursor, limit int) ([]entity.Deal, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]entity.Deal, error)
	ListExpiring(ctx context.Context, now, until time.Time, limit int) ([]entity.Deal, error)
	ListByOwner(ctx context.Context, ownerID string) ([]entity.Deal, error)
	History(ctx context.Context, id string) ([]entity.StatusChange, error)
	Stats(ctx context.Context) (entity.DealStats, error)

	CreateTrade(ctx context.Context, trade entity.Trade) error
	TradeByOffer(ctx context.Context, offerID string) (entity.Trade, error)
	CloseTrade(ctx context.Context, offerID string, status entity.TradeStatus, now time.Time) (entity.Trade, bool, error)
}

type Pricer interface {
	Quote(ctx context.Context, items value.Items, termDays int) (entity.Quote, error)
}

type PayoutGateway interface {
	Payout(ctx context.Context, req entity.PayoutRequest) (entity.Payout, error)
}

type PaymentGateway interface {
	CreatePayment(ctx context.Context, req entity.PaymentRequest) (entity.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (entity.Payment, error)
}

type TradingAgent interface {
	RequestIncoming(ctx context.Context, req entity.TradeRequest) (entity.TradeOffer, error)
	RequestReturn(ctx context.Context, req entity.TradeRequest) (entity.TradeOffer, error)
}

// RetryScheduler откладывает повтор неудавшейся операции в фоновую очередь.
type RetryScheduler interface {
	SchedulePayoutRetry(ctx context.Context, dealID string) error
	ScheduleReturnRetry(ctx context.Context, dealID string) error
}
