package pricesource

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot полная таблица цен на момент загрузки. После публикации
// в кэше не изменяется.
type Snapshot struct {
	Prices    map[string]decimal.Decimal `json:"prices"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

func NewSnapshot(prices map[string]decimal.Decimal, fetchedAt time.Time) Snapshot {
	return Snapshot{Prices: prices, FetchedAt: fetchedAt}
}

// Pick возвращает цены только для запрошенных имён.
func (s *Snapshot) Pick(names []string) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal, len(names))
	for _, name := range names {
		if price, ok := s.Prices[name]; ok {
			result[name] = price
		}
	}
	return result
}

func (s *Snapshot) Len() int {
	return len(s.Prices)
}
