package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/value"
)

type ValuationSource string

const (
	ValuationMarket   ValuationSource = "market"
	ValuationEstimate ValuationSource = "estimate"
)

// Valuation оценка одного market_hash_name. Не хранится.
type Valuation struct {
	MarketHashName  string
	AcceptancePrice decimal.Decimal
	Acceptable      bool
	Source          ValuationSource
	ObservedAt      time.Time
}

// ValuedItem выбранный пользователем предмет вместе с оценкой.
type ValuedItem struct {
	value.Item
	Valuation Valuation
}

// TermRate ставки, действующие для срока опциона.
type TermRate struct {
	Interest decimal.Decimal
	Premium  decimal.Decimal
}

// Breakdown раскладывает выкупную цену на составляющие.
type Breakdown struct {
	InterestAmount    decimal.Decimal
	PremiumAmount     decimal.Decimal
	Profit            decimal.Decimal
	MarginPercent     decimal.Decimal
	AnnualRatePercent decimal.Decimal
}

type Quote struct {
	Items    PledgedItems
	Rejected []ValuedItem
	TermDays int

	MarketTotal   decimal.Decimal
	LoanAmount    decimal.Decimal
	BuybackAmount decimal.Decimal
	Rate          TermRate
	Breakdown     Breakdown

	QuotedAt  time.Time
	ExpiresAt time.Time
}
