package persistence

import (
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
)

type statsAccumulator struct {
	stats entity.DealStats
}

func newStatsAccumulator() *statsAccumulator {
	byStatus := make(map[entity.DealStatus]int, len(entity.DealStatuses))
	for _, s := range entity.DealStatuses {
		byStatus[s] = 0
	}

	return &statsAccumulator{stats: entity.DealStats{
		ByStatus:       byStatus,
		LoanedVolume:   decimal.Zero,
		BuybackVolume:  decimal.Zero,
		DefaultedValue: decimal.Zero,
	}}
}

// add учитывает группу сделок. Выданным считается заём по всем сделкам,
// прошедшим активацию.
func (a *statsAccumulator) add(status entity.DealStatus, count int, loan, buyback, market decimal.Decimal) {
	a.stats.ByStatus[status] += count
	a.stats.Total += count

	switch status {
	case entity.DealStatusActive, entity.DealStatusBuyback, entity.DealStatusDefault:
		a.stats.LoanedVolume = a.stats.LoanedVolume.Add(loan)
	case entity.DealStatusPending, entity.DealStatusCancelled:
	}

	switch status {
	case entity.DealStatusBuyback:
		a.stats.BuybackVolume = a.stats.BuybackVolume.Add(buyback)
	case entity.DealStatusDefault:
		a.stats.DefaultedValue = a.stats.DefaultedValue.Add(market)
	case entity.DealStatusPending, entity.DealStatusActive, entity.DealStatusCancelled:
	}
}
