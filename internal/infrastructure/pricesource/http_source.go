package pricesource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"cyberlombard/pkg/httpx"
	"cyberlombard/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const collaborator = "price_source"

type bulkPricesResponse struct {
	Items []bulkPriceItem `json:"items"`
}

type bulkPriceItem struct {
	MarketHashName string              `json:"market_hash_name"`
	Price          jsoniter.RawMessage `json:"price"`
}

// HTTPSource загружает всю таблицу цен одним запросом.
type HTTPSource struct {
	client *resty.Client
	path   string
	markup decimal.Decimal
	retry  httpx.RetryPolicy
}

func NewHTTPSource(client *resty.Client, path string, retry httpx.RetryPolicy) *HTTPSource {
	return &HTTPSource{
		client: client,
		path:   path,
		markup: decimal.NewFromInt(1),
		retry:  retry,
	}
}

// WithMarkup задаёт множитель над ценами площадки.
func (s *HTTPSource) WithMarkup(markup decimal.Decimal) *HTTPSource {
	if markup.IsPositive() {
		s.markup = markup
	}
	return s
}

// Fetch возвращает только предметы с положительной ценой.
func (s *HTTPSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	var body bulkPricesResponse

	err := httpx.Retry(ctx, s.retry, func() error {
		body = bulkPricesResponse{}
		resp, err := s.client.R().SetContext(ctx).Get(s.path)
		if err := httpx.CheckResponse(resp, err); err != nil {
			return err
		}
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return httpx.Permanent(fmt.Errorf("json.Unmarshal: %w", err))
		}
		return nil
	})
	metrics.UpstreamCalls.WithLabelValues(collaborator, "bulk_prices", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("fetch bulk prices: %w", err)
	}

	prices, skipped := body.prices(s.markup)
	logger(ctx).Info("bulk prices fetched", slog.Int("items", len(prices)), slog.Int("skipped", skipped))

	return prices, nil
}

// prices оставляет только предметы с именем и положительной ценой.
func (b bulkPricesResponse) prices(markup decimal.Decimal) (map[string]decimal.Decimal, int) {
	prices := make(map[string]decimal.Decimal, len(b.Items))
	skipped := 0

	for _, item := range b.Items {
		price, ok := parsePrice(item.Price)
		if item.MarketHashName == "" || !ok || !price.IsPositive() {
			skipped++
			continue
		}
		prices[item.MarketHashName] = price.Mul(markup)
	}

	return prices, skipped
}

// parsePrice принимает число, строку или объект с полем value/amount/price.
func parsePrice(raw jsoniter.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Zero, false
	}

	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err == nil {
		return d, true
	}

	var obj struct {
		Value  *decimal.Decimal `json:"value"`
		Amount *decimal.Decimal `json:"amount"`
		Price  *decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return decimal.Zero, false
	}

	for _, candidate := range []*decimal.Decimal{obj.Value, obj.Amount, obj.Price} {
		if candidate != nil {
			return *candidate, true
		}
	}

	return decimal.Zero, false
}
