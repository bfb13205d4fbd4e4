package pricing

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"cyberlombard/internal/domain/entity"
	"cyberlombard/internal/domain/value"
)

// Service связывает оценку предметов и расчёт котировки.
type Service struct {
	aggregator *Aggregator
	engine     *Engine
}

func NewService(aggregator *Aggregator, engine *Engine) *Service {
	return &Service{
		aggregator: aggregator,
		engine:     engine,
	}
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// Quote оценивает выбранные предметы и считает котировку на termDays.
// Повторяющиеся asset_id учитываются один раз.
func (s *Service) Quote(ctx context.Context, items value.Items, termDays int) (entity.Quote, error) {
	items = lo.UniqBy(items, func(i value.Item) string { return i.AssetID })

	valuations := s.aggregator.GetPrices(ctx, items)

	valued := make([]entity.ValuedItem, 0, len(items))
	for _, it := range items {
		valued = append(valued, entity.ValuedItem{Item: it, Valuation: valuations[it.MarketHashName]})
	}

	q, err := s.engine.Quote(valued, termDays)
	if err != nil {
		return entity.Quote{}, err
	}

	logger(ctx).Debug("quote computed",
		slog.Int("term-days", termDays),
		slog.Int("accepted", len(q.Items)),
		slog.Int("rejected", len(q.Rejected)),
		slog.String("loan-amount", q.LoanAmount.String()),
		slog.String("buyback-amount", q.BuybackAmount.String()),
	)

	return q, nil
}
