package pricing

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
	"cyberlombard/pkg/logx"
	"cyberlombard/pkg/metrics"
)

type priceSource interface {
	// Lookup возвращает известные рыночные цены и момент снимка.
	Lookup(ctx context.Context, names []string) (map[string]decimal.Decimal, time.Time, error)
}

// Aggregator выдаёт оценку для каждого запрошенного предмета. Если рыночной
// цены нет или источник недоступен, используется Estimator.
type Aggregator struct {
	source    priceSource
	estimator Estimator
	minPrice  decimal.Decimal
	clock     clock.Clock
}

func NewAggregator(source priceSource, estimator Estimator, minPrice decimal.Decimal) *Aggregator {
	return &Aggregator{
		source:    source,
		estimator: estimator,
		minPrice:  minPrice,
		clock:     clock.New(),
	}
}

func (a *Aggregator) WithClock(c clock.Clock) *Aggregator {
	a.clock = c
	return a
}

func (a *Aggregator) MinPrice() decimal.Decimal {
	return a.minPrice
}

// GetPrices возвращает оценку для каждого уникального market_hash_name.
// Предметы дешевле порога возвращаются с Acceptable=false.
func (a *Aggregator) GetPrices(ctx context.Context, items value.Items) map[string]entity.Valuation {
	names := items.Names()

	rarity := make(map[string]value.Item, len(names))
	for _, it := range items {
		if prev, ok := rarity[it.MarketHashName]; !ok || prev.Rarity == "" {
			rarity[it.MarketHashName] = it
		}
	}

	prices, observedAt, err := a.source.Lookup(ctx, names)
	if err != nil {
		logger(ctx).Warn("price source unavailable, using estimator", logx.Error(err), slog.Int("items", len(names)))
		prices = nil
	}

	now := a.clock.Now()
	result := make(map[string]entity.Valuation, len(names))

	for _, name := range names {
		v := entity.Valuation{
			MarketHashName: name,
			Source:         entity.ValuationMarket,
			ObservedAt:     observedAt,
		}

		price, ok := prices[name]
		if ok && price.IsPositive() {
			v.AcceptancePrice = price
		} else {
			v.AcceptancePrice = a.estimator.Estimate(rarity[name])
			v.Source = entity.ValuationEstimate
			v.ObservedAt = now
			metrics.PriceFallbacks.Inc()
		}

		v.Acceptable = v.AcceptancePrice.GreaterThanOrEqual(a.minPrice)
		result[name] = v
	}

	return result
}
