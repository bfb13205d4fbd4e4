package persistence

import (
	"database/sql"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// dealSchema строка таблицы deals.
type dealSchema struct {
	ID               string          `db:"id"`
	OwnerID          string          `db:"owner_id"`
	Owner            []byte          `db:"owner"`
	MarketTotal      decimal.Decimal `db:"market_total"`
	LoanAmount       decimal.Decimal `db:"loan_amount"`
	BuybackPrice     decimal.Decimal `db:"buyback_price"`
	TermDays         int             `db:"term_days"`
	InterestRate     decimal.Decimal `db:"interest_rate"`
	PremiumRate      decimal.Decimal `db:"premium_rate"`
	OptionExpiry     time.Time       `db:"option_expiry"`
	Items            []byte          `db:"items"`
	Status           string          `db:"status"`
	PayoutState      string          `db:"payout_state"`
	PayoutID         string          `db:"payout_id"`
	PayoutError      string          `db:"payout_error"`
	PayoutAttempts   int             `db:"payout_attempts"`
	BuybackPaymentID string          `db:"buyback_payment_id"`
	BuybackPaidAt    sql.NullTime    `db:"buyback_paid_at"`
	ExpiryNotifiedAt sql.NullTime    `db:"expiry_notified_at"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
	ActivatedAt      sql.NullTime    `db:"activated_at"`
	ClosedAt         sql.NullTime    `db:"closed_at"`
}

func fromDeal(d *entity.Deal) (*dealSchema, error) {
	owner, err := json.Marshal(d.Owner)
	if err != nil {
		return nil, err
	}

	items, err := json.Marshal(d.Items)
	if err != nil {
		return nil, err
	}

	return &dealSchema{
		ID:               d.ID,
		OwnerID:          d.Owner.ID,
		Owner:            owner,
		MarketTotal:      d.MarketTotal,
		LoanAmount:       d.LoanAmount,
		BuybackPrice:     d.BuybackPrice,
		TermDays:         d.TermDays,
		InterestRate:     d.Rate.Interest,
		PremiumRate:      d.Rate.Premium,
		OptionExpiry:     d.OptionExpiry,
		Items:            items,
		Status:           string(d.Status),
		PayoutState:      string(d.PayoutState),
		PayoutID:         d.PayoutID,
		PayoutError:      d.PayoutError,
		PayoutAttempts:   d.PayoutAttempts,
		BuybackPaymentID: d.BuybackPaymentID,
		BuybackPaidAt:    nullTime(d.BuybackPaidAt),
		ExpiryNotifiedAt: nullTime(d.ExpiryNotifiedAt),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		ActivatedAt:      nullTime(d.ActivatedAt),
		ClosedAt:         nullTime(d.ClosedAt),
	}, nil
}

func (s dealSchema) decode() (entity.Deal, error) {
	return s.toDomain()
}

func (s *dealSchema) toDomain() (entity.Deal, error) {
	var owner value.Owner
	if err := json.Unmarshal(s.Owner, &owner); err != nil {
		return entity.Deal{}, err
	}

	var items entity.PledgedItems
	if err := json.Unmarshal(s.Items, &items); err != nil {
		return entity.Deal{}, err
	}

	return entity.Deal{
		ID:               s.ID,
		Owner:            owner,
		MarketTotal:      s.MarketTotal,
		LoanAmount:       s.LoanAmount,
		BuybackPrice:     s.BuybackPrice,
		TermDays:         s.TermDays,
		Rate:             entity.TermRate{Interest: s.InterestRate, Premium: s.PremiumRate},
		OptionExpiry:     s.OptionExpiry,
		Items:            items,
		Status:           entity.DealStatus(s.Status),
		PayoutState:      entity.PayoutState(s.PayoutState),
		PayoutID:         s.PayoutID,
		PayoutError:      s.PayoutError,
		PayoutAttempts:   s.PayoutAttempts,
		BuybackPaymentID: s.BuybackPaymentID,
		BuybackPaidAt:    timePtr(s.BuybackPaidAt),
		ExpiryNotifiedAt: timePtr(s.ExpiryNotifiedAt),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		ActivatedAt:      timePtr(s.ActivatedAt),
		ClosedAt:         timePtr(s.ClosedAt),
	}, nil
}

// tradeSchema строка таблицы trades.
type tradeSchema struct {
	ID        string    `db:"id"`
	DealID    string    `db:"deal_id"`
	OfferID   string    `db:"offer_id"`
	OfferURL  string    `db:"offer_url"`
	Direction string    `db:"direction"`
	Status    string    `db:"status"`
	Items     []byte    `db:"items"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func fromTrade(t *entity.Trade) (*tradeSchema, error) {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return nil, err
	}

	return &tradeSchema{
		ID:        t.ID,
		DealID:    t.DealID,
		OfferID:   t.OfferID,
		OfferURL:  t.OfferURL,
		Direction: string(t.Direction),
		Status:    string(t.Status),
		Items:     items,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, nil
}

func (s tradeSchema) decode() (entity.Trade, error) {
	return s.toDomain()
}

func (s *tradeSchema) toDomain() (entity.Trade, error) {
	var items value.Items
	if err := json.Unmarshal(s.Items, &items); err != nil {
		return entity.Trade{}, err
	}

	return entity.Trade{
		ID:        s.ID,
		DealID:    s.DealID,
		OfferID:   s.OfferID,
		OfferURL:  s.OfferURL,
		Direction: entity.TradeDirection(s.Direction),
		Status:    entity.TradeStatus(s.Status),
		Items:     items,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}, nil
}

type historySchema struct {
	DealID string    `db:"deal_id"`
	From   string    `db:"from_status"`
	To     string    `db:"to_status"`
	Reason string    `db:"reason"`
	At     time.Time `db:"at"`
}

func (s historySchema) toDomain() entity.StatusChange {
	return entity.StatusChange{
		DealID: s.DealID,
		From:   entity.DealStatus(s.From),
		To:     entity.DealStatus(s.To),
		Reason: s.Reason,
		At:     s.At,
	}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
