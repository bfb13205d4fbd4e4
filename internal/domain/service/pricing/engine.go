package pricing

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain"
	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/errcodes"
)

const daysPerYear = 365

//nolint:gochecknoglobals
var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Engine считает сумму займа и цену выкупа. Суммы зависят только от
// входных данных, время влияет лишь на ExpiresAt.
type Engine struct {
	rates   RateTable
	loan    LoanPolicy
	minTerm int
	maxTerm int
	clock   clock.Clock
}

func NewEngine(rates RateTable, loan LoanPolicy, minTerm, maxTerm int) *Engine {
	return &Engine{
		rates:   rates,
		loan:    loan,
		minTerm: minTerm,
		maxTerm: maxTerm,
		clock:   clock.New(),
	}
}

func (e *Engine) WithClock(c clock.Clock) *Engine {
	e.clock = c
	return e
}

func (e *Engine) Rates() RateTable {
	return e.rates
}

func (e *Engine) TermBounds() (int, int) {
	return e.minTerm, e.maxTerm
}

// Quote строит котировку по оценённым предметам. Округление до копеек
// происходит только в итоговых суммах.
func (e *Engine) Quote(valued []entity.ValuedItem, termDays int) (entity.Quote, error) {
	if termDays < e.minTerm || termDays > e.maxTerm {
		return entity.Quote{}, domain.NewErrorf(errcodes.InvalidTerm,
			"option term %d days is outside [%d, %d]", termDays, e.minTerm, e.maxTerm)
	}

	var (
		marketTotal = decimal.Zero
		loanTotal   = decimal.Zero
		accepted    = make(entity.PledgedItems, 0, len(valued))
		rejected    []entity.ValuedItem
	)

	for _, v := range valued {
		if !v.Valuation.Acceptable {
			rejected = append(rejected, v)
			continue
		}

		price := v.Valuation.AcceptancePrice
		coef := e.loan.Coefficient(price)
		loanPrice := price.Mul(coef)

		accepted = append(accepted, entity.PledgedItem{
			Item:            v.Item,
			AcceptancePrice: price,
			LoanCoefficient: coef,
			LoanPrice:       loanPrice,
		})

		marketTotal = marketTotal.Add(price)
		loanTotal = loanTotal.Add(loanPrice)
	}

	if len(accepted) == 0 {
		return entity.Quote{}, domain.NewError(errcodes.NoAcceptableItems, "none of the items meets the minimum acceptable price")
	}

	rate := e.rates.ResolveDays(termDays)

	withInterest := loanTotal.Mul(one.Add(rate.Interest))
	buyback := withInterest.Mul(one.Add(rate.Premium))
	profit := buyback.Sub(loanTotal)
	margin := profit.Div(loanTotal).Mul(hundred)

	now := e.clock.Now()

	return entity.Quote{
		Items:         accepted,
		Rejected:      rejected,
		TermDays:      termDays,
		MarketTotal:   value.RoundMoney(marketTotal),
		LoanAmount:    value.RoundMoney(loanTotal),
		BuybackAmount: value.RoundMoney(buyback),
		Rate:          rate,
		Breakdown: entity.Breakdown{
			InterestAmount:    value.RoundMoney(withInterest.Sub(loanTotal)),
			PremiumAmount:     value.RoundMoney(buyback.Sub(withInterest)),
			Profit:            value.RoundMoney(profit),
			MarginPercent:     value.RoundMoney(margin),
			AnnualRatePercent: value.RoundMoney(margin.Mul(decimal.NewFromInt(daysPerYear)).Div(decimal.NewFromInt(int64(termDays)))),
		},
		QuotedAt:  now,
		ExpiresAt: now.Add(time.Duration(termDays) * 24 * time.Hour),
	}, nil
}
